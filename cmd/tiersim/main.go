// Command tiersim replays an I/O trace against a tier stack once per
// selected policy and writes the per-tier counters of every run into the
// output folder.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Louis-MariePhD/tiersim/simulator"
	"github.com/Louis-MariePhD/tiersim/traces"
)

var availableTraces = []string{"snia", "augmented-snia", "ibm", "augmented-ibm", "synthetic", "custom"}

// augmentReaccessChance matches the re-access injection rate the augmented
// datasets were generated with.
const augmentReaccessChance = 0.8

func main() {
	os.Exit(run())
}

func run() int {
	var (
		traceKind     string
		traceFile     string
		limitTrace    int
		outputFolder  string
		configFile    string
		seed          int64
		verbose       bool
		noProgressBar bool
		noUI          bool
		strictTrace   bool
		prefetch      bool
	)
	flag.StringVar(&traceKind, "t", "synthetic", "trace adapter: snia, augmented-snia, ibm, augmented-ibm or synthetic")
	flag.StringVar(&traceKind, "trace", "synthetic", "trace adapter: snia, augmented-snia, ibm, augmented-ibm or synthetic")
	flag.StringVar(&traceFile, "trace-file", "", "path to the trace file (snia and ibm adapters)")
	flag.IntVar(&limitTrace, "l", -1, "limit the number of records read from the trace (-1 = no limit)")
	flag.IntVar(&limitTrace, "limit-trace", -1, "limit the number of records read from the trace (-1 = no limit)")
	flag.StringVar(&outputFolder, "o", filepath.Join("logs", "<timestamp>"), "folder for logs, results and a copy of the parameters")
	flag.StringVar(&outputFolder, "output-folder", filepath.Join("logs", "<timestamp>"), "folder for logs, results and a copy of the parameters")
	flag.StringVar(&configFile, "c", "", "JSON config file; created with defaults if the path does not exist")
	flag.StringVar(&configFile, "config-file", "", "JSON config file; created with defaults if the path does not exist")
	flag.Int64Var(&seed, "seed", 0, "override the config seed when non-zero")
	flag.BoolVar(&verbose, "v", false, "enable per-event logging")
	flag.BoolVar(&verbose, "verbose", false, "enable per-event logging")
	flag.BoolVar(&noProgressBar, "p", false, "disable the progress bar")
	flag.BoolVar(&noProgressBar, "no-progress-bar", false, "disable the progress bar")
	flag.BoolVar(&noUI, "n", false, "disable result display at the end of the simulation")
	flag.BoolVar(&noUI, "no-ui", false, "disable result display at the end of the simulation")
	flag.BoolVar(&strictTrace, "strict", false, "fail on accesses to paths with no prior create")
	flag.BoolVar(&prefetch, "prefetch", false, "simulate perfect prefetching back to the default tier")
	flag.Parse()

	policies := flag.Args()
	if len(policies) == 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [flags] policy... (one of %s, or 'all')\n",
			os.Args[0], strings.Join(simulator.PolicyNames(), ", "))
		flag.PrintDefaults()
		return 1
	}
	policies = expandPolicies(policies)
	for _, name := range policies {
		if !knownPolicy(name) {
			fmt.Fprintf(os.Stderr, "unknown policy %q\n", name)
			return 1
		}
	}

	cfg, created, err := loadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}
	if created {
		fmt.Fprintf(os.Stderr, "wrote default config to %s, edit it and re-run\n", configFile)
		return 0
	}
	if seed != 0 {
		cfg.Seed = seed
	}
	cfg.StrictTrace = strictTrace
	cfg.SimulatePerfectPrefetch = prefetch
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	outputFolder = strings.ReplaceAll(outputFolder, "<timestamp>",
		time.Now().Format("Mon_02_Jan_2006_15-04-05"))
	if err := os.MkdirAll(outputFolder, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "creating output folder %q: %v\n", outputFolder, err)
		return 1
	}

	log, logFile, err := setupLogging(outputFolder, verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		return 1
	}
	defer logFile.Close()

	writeParameters(outputFolder, map[string]string{
		"policies":      strings.Join(policies, ","),
		"trace":         traceKind,
		"trace_file":    traceFile,
		"limit_trace":   fmt.Sprint(limitTrace),
		"output_folder": outputFolder,
		"seed":          fmt.Sprint(cfg.Seed),
		"strict":        fmt.Sprint(strictTrace),
		"prefetch":      fmt.Sprint(prefetch),
		"verbose":       fmt.Sprint(verbose),
	}, log)

	trace, err := loadTrace(traceKind, traceFile, limitTrace, cfg.Seed, log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading trace: %v\n", err)
		return 1
	}

	var formatted strings.Builder
	for runIndex, policyName := range policies {
		result, err := runOne(cfg, policyName, trace, log, !noProgressBar)
		if err != nil {
			fmt.Fprintf(os.Stderr, "run %d (%s): %v\n", runIndex, policyName, err)
			return 1
		}
		block := fmt.Sprintf("%s Run N°%d (%s) %s\n%s\n",
			strings.Repeat("#", 10), runIndex, policyName, strings.Repeat("#", 10), result)
		formatted.WriteString(block)
		if !noUI {
			fmt.Print(block)
		}
	}

	resultsPath := filepath.Join(outputFolder, "formatted_results.txt")
	if err := os.WriteFile(resultsPath, []byte(formatted.String()), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "writing %s: %v\n", resultsPath, err)
		return 1
	}
	log.Info().Str("results", resultsPath).Msg("done")
	return 0
}

// runOne replays trace once under policyName over a fresh tier stack.
func runOne(cfg simulator.SimConfig, policyName string, trace simulator.Trace, log zerolog.Logger, progress bool) (string, error) {
	clock := simulator.NewClock()
	tiers := cfg.BuildTiers(log)
	storage := simulator.NewStorageManager(tiers, clock, log)
	rng := rand.New(rand.NewSource(cfg.Seed))

	// Every tier but the last gets the policy; the last tier of the stack
	// has nowhere to drain to.
	for _, tier := range tiers[:len(tiers)-1] {
		policy, err := simulator.CreatePolicy(policyName, tier, storage, trace.Lifetimes(), rng)
		if err != nil {
			return "", err
		}
		if criteria, ok := policy.(*simulator.CriteriaPolicy); ok && cfg.CriteriaWindowSec > 0 {
			criteria.SetWindow(cfg.CriteriaWindowSec)
		}
	}

	sim, err := simulator.NewSimulation([]simulator.Trace{trace}, storage, clock, simulator.SimulationOptions{
		StrictTrace:             cfg.StrictTrace,
		SimulatePerfectPrefetch: cfg.SimulatePerfectPrefetch,
	}, log)
	if err != nil {
		return "", err
	}

	log.Info().Str("policy", policyName).Str("trace", trace.Name()).Msg("starting simulation")
	if !progress {
		return sim.Run()
	}

	_, total := sim.Progress()
	lastPercent := -1
	for {
		more, err := sim.Step()
		if err != nil {
			return "", err
		}
		if !more {
			break
		}
		done, _ := sim.Progress()
		if total > 0 {
			if percent := done * 100 / total; percent != lastPercent {
				lastPercent = percent
				fmt.Fprintf(os.Stderr, "\r[%s] %3d%% (%d/%d records)", policyName, percent, done, total)
			}
		}
	}
	fmt.Fprintln(os.Stderr)
	return sim.FormatResults(), nil
}

func loadTrace(kind, path string, limit int, seed int64, log zerolog.Logger) (simulator.Trace, error) {
	switch kind {
	case "snia", "augmented-snia":
		if path == "" {
			return nil, fmt.Errorf("snia adapter needs -trace-file")
		}
		trace, err := traces.LoadSNIATrace(path, limit, log)
		if err != nil || kind == "snia" {
			return trace, err
		}
		return traces.Augment(trace, augmentReaccessChance, seed), nil
	case "ibm", "augmented-ibm":
		if path == "" {
			return nil, fmt.Errorf("ibm adapter needs -trace-file")
		}
		trace, err := traces.LoadIBMTrace(path, limit, log)
		if err != nil || kind == "ibm" {
			return trace, err
		}
		return traces.Augment(trace, augmentReaccessChance, seed), nil
	case "synthetic", "custom":
		cfg := traces.DefaultSyntheticConfig()
		if limit >= 0 {
			cfg.Records = limit
		}
		return traces.GenerateSyntheticTrace(cfg, seed), nil
	default:
		return nil, fmt.Errorf("unknown trace adapter %q (must be one of %s)", kind, strings.Join(availableTraces, ", "))
	}
}

// loadConfig reads the JSON config at path. An empty path selects the
// defaults; a missing file is created with the defaults and reported so the
// user can edit it first.
func loadConfig(path string) (cfg simulator.SimConfig, created bool, err error) {
	if path == "" {
		return simulator.DefaultConfig(), false, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg = simulator.DefaultConfig()
		data, merr := json.MarshalIndent(cfg, "", "  ")
		if merr != nil {
			return cfg, false, merr
		}
		if werr := os.WriteFile(path, data, 0o644); werr != nil {
			return cfg, false, werr
		}
		return cfg, true, nil
	}
	if err != nil {
		return cfg, false, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, false, err
	}
	return cfg, false, nil
}

func setupLogging(outputFolder string, verbose bool) (zerolog.Logger, io.WriteCloser, error) {
	logFile, err := os.Create(filepath.Join(outputFolder, "latest.log"))
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	console := zerolog.ConsoleWriter{Out: os.Stderr}
	log := zerolog.New(zerolog.MultiLevelWriter(console, logFile)).
		Level(level).
		With().Timestamp().Logger()
	return log, logFile, nil
}

func writeParameters(outputFolder string, params map[string]string, log zerolog.Logger) {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, params[k])
	}
	path := filepath.Join(outputFolder, "commandline_parameters.txt")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		log.Error().Err(err).Str("path", path).Msg("could not persist commandline parameters")
	}
}

func expandPolicies(names []string) []string {
	for _, n := range names {
		if n == "all" {
			return simulator.PolicyNames()
		}
	}
	return names
}

func knownPolicy(name string) bool {
	for _, n := range simulator.PolicyNames() {
		if n == name {
			return true
		}
	}
	return false
}
