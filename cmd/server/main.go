// Command server drives one simulation interactively: a websocket client
// can start, pause, reset and single-step the trace replay and receives
// per-tier counter frames, while /metrics exposes the same counters to
// prometheus.
package main

import (
	"flag"
	"fmt"
	"html/template"
	"log"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Louis-MariePhD/tiersim/simulator"
	"github.com/Louis-MariePhD/tiersim/traces"
)

var indexTemplate *template.Template

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development
		return true
	},
}

// recordsPerTick bounds how many trace records one UI tick replays.
const recordsPerTick = 2000

// ClientMessage is a command from the browser.
type ClientMessage struct {
	Type string `json:"type"`
}

// ServerMessage is one frame to the browser.
type ServerMessage struct {
	Type        string                `json:"type"`
	Running     *bool                 `json:"running,omitempty"`
	Finished    bool                  `json:"finished,omitempty"`
	VirtualTime float64               `json:"virtualTime"`
	Processed   int                   `json:"processed"`
	Total       int                   `json:"total"`
	Policy      string                `json:"policy,omitempty"`
	Stats       []simulator.TierStats `json:"stats,omitempty"`
	Error       string                `json:"error,omitempty"`
}

// simState manages the simulation and UI pacing. All simulator access is
// serialised behind the mutex; the simulator itself is single-threaded.
type simState struct {
	cfg        simulator.SimConfig
	policyName string
	trace      simulator.Trace
	logger     zerolog.Logger

	sim      *simulator.Simulation
	running  bool
	finished bool
	lastErr  error
	mu       sync.Mutex
	stopCh   chan struct{}
}

func newSimState(cfg simulator.SimConfig, policyName string, trace simulator.Trace, logger zerolog.Logger) (*simState, error) {
	s := &simState{
		cfg:        cfg,
		policyName: policyName,
		trace:      trace,
		logger:     logger,
		stopCh:     make(chan struct{}),
	}
	if err := s.rebuild(); err != nil {
		return nil, err
	}
	return s, nil
}

// rebuild creates a fresh tier stack, policy and simulation over the same
// trace.
func (s *simState) rebuild() error {
	clock := simulator.NewClock()
	tiers := s.cfg.BuildTiers(s.logger)
	storage := simulator.NewStorageManager(tiers, clock, s.logger)
	rng := rand.New(rand.NewSource(s.cfg.Seed))
	for _, tier := range tiers[:len(tiers)-1] {
		if _, err := simulator.CreatePolicy(s.policyName, tier, storage, s.trace.Lifetimes(), rng); err != nil {
			return err
		}
	}
	sim, err := simulator.NewSimulation([]simulator.Trace{s.trace}, storage, clock, simulator.SimulationOptions{
		StrictTrace:             s.cfg.StrictTrace,
		SimulatePerfectPrefetch: s.cfg.SimulatePerfectPrefetch,
	}, s.logger)
	if err != nil {
		return err
	}
	s.sim = sim
	s.finished = false
	s.lastErr = nil
	return nil
}

func (s *simState) start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.finished && s.lastErr == nil {
		s.running = true
	}
}

func (s *simState) pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
}

func (s *simState) reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return s.rebuild()
}

func (s *simState) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// step replays up to n records, stopping at stream end or fatal error.
func (s *simState) step(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finished || s.lastErr != nil {
		return
	}
	for i := 0; i < n; i++ {
		more, err := s.sim.Step()
		if err != nil {
			s.lastErr = err
			s.running = false
			return
		}
		if !more {
			s.finished = true
			s.running = false
			return
		}
	}
}

// frame builds a stats frame for the browser.
func (s *simState) frame() ServerMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	processed, total := s.sim.Progress()
	msg := ServerMessage{
		Type:        "stats",
		Finished:    s.finished,
		VirtualTime: s.sim.Clock().Now(),
		Processed:   processed,
		Total:       total,
		Policy:      s.policyName,
		Stats:       s.sim.Stats(),
	}
	if s.lastErr != nil {
		msg.Error = s.lastErr.Error()
	}
	return msg
}

func (s *simState) stop() {
	close(s.stopCh)
}

// safeConn wraps a WebSocket connection with a mutex to prevent concurrent
// writes.
type safeConn struct {
	*websocket.Conn
	writeMu sync.Mutex
}

func (sc *safeConn) WriteJSON(v interface{}) error {
	sc.writeMu.Lock()
	defer sc.writeMu.Unlock()
	return sc.Conn.WriteJSON(v)
}

// uiUpdateLoop periodically replays a batch of records and pushes stats
// frames. Runs in its own goroutine and controls UI pacing.
func uiUpdateLoop(conn *safeConn, state *simState) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-state.stopCh:
			log.Println("UI update loop stopping")
			return

		case <-ticker.C:
			if state.isRunning() {
				state.step(recordsPerTick)
			}
			frame := state.frame()
			updatePrometheusMetrics(frame.Stats)
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("Error sending stats: %v", err)
				return
			}
		}
	}
}

func handleWebSocket(state *simState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("Error upgrading connection: %v", err)
			return
		}
		defer conn.Close()
		sc := &safeConn{Conn: conn}
		log.Println("Client connected")

		running := state.isRunning()
		if err := sc.WriteJSON(ServerMessage{Type: "status", Running: &running, Policy: state.policyName}); err != nil {
			log.Printf("Error sending status: %v", err)
			return
		}

		go uiUpdateLoop(sc, state)

		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("Error reading message: %v", err)
				}
				break
			}
			log.Printf("Received command: %s", msg.Type)

			switch msg.Type {
			case "start":
				state.start()
			case "pause":
				state.pause()
			case "step":
				state.step(1)
			case "reset":
				if err := state.reset(); err != nil {
					log.Printf("Error resetting: %v", err)
				}
			}
			running := state.isRunning()
			if err := sc.WriteJSON(ServerMessage{Type: "status", Running: &running, Policy: state.policyName}); err != nil {
				break
			}
		}

		state.pause()
		log.Println("Client disconnected")
	}
}

func serveHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, nil); err != nil {
		log.Printf("Error executing template: %v", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func main() {
	var (
		addr       string
		policyName string
		traceKind  string
		traceFile  string
		limitTrace int
		seed       int64
	)
	flag.StringVar(&addr, "addr", ":8080", "listen address")
	flag.StringVar(&policyName, "policy", "lru", "placement policy to run")
	flag.StringVar(&traceKind, "t", "synthetic", "trace adapter: snia, ibm or synthetic")
	flag.StringVar(&traceFile, "trace-file", "", "path to the trace file (snia and ibm adapters)")
	flag.IntVar(&limitTrace, "l", -1, "limit the number of records read from the trace")
	flag.Int64Var(&seed, "seed", 1, "seed for random decisions")
	flag.Parse()

	templatePath := filepath.Join("templates", "index.html")
	var err error
	indexTemplate, err = template.ParseFiles(templatePath)
	if err != nil {
		log.Fatalf("Error loading template: %v", err)
	}
	log.Printf("Loaded template: %s", templatePath)

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(zerolog.WarnLevel)
	cfg := simulator.DefaultConfig()
	cfg.Seed = seed

	var trace simulator.Trace
	switch traceKind {
	case "snia":
		trace, err = traces.LoadSNIATrace(traceFile, limitTrace, logger)
	case "ibm":
		trace, err = traces.LoadIBMTrace(traceFile, limitTrace, logger)
	case "synthetic":
		syn := traces.DefaultSyntheticConfig()
		if limitTrace >= 0 {
			syn.Records = limitTrace
		}
		trace = traces.GenerateSyntheticTrace(syn, seed)
	default:
		log.Fatalf("unknown trace adapter %q", traceKind)
	}
	if err != nil {
		log.Fatalf("Error loading trace: %v", err)
	}

	state, err := newSimState(cfg, policyName, trace, logger)
	if err != nil {
		log.Fatalf("Error creating simulation: %v", err)
	}

	initPrometheusMetrics()

	http.HandleFunc("/", serveHome)
	http.HandleFunc("/ws", handleWebSocket(state))
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/quitquitquit", func(w http.ResponseWriter, r *http.Request) {
		log.Println("Shutdown requested via /quitquitquit")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "Server shutting down...")
		go func() {
			time.Sleep(100 * time.Millisecond)
			os.Exit(0)
		}()
	})

	log.Printf("Server starting on http://localhost%s", addr)
	log.Printf("WebSocket endpoint: ws://localhost%s/ws", addr)
	log.Printf("Prometheus endpoint: http://localhost%s/metrics", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}
