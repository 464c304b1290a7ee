package simulator

// DefaultUser is assigned to files whose trace carries no user information.
const DefaultUser = "default_user"

// File is the atomic placement unit: it resides on exactly one tier at a
// time. Identity is the path; everything else is mutable. The tier
// back-reference is a non-owning handle that must always agree with the
// owning tier's content index.
type File struct {
	Path             string
	Size             int64
	CreationTime     float64
	LastModification float64
	LastAccess       float64
	User             string

	tier *Tier
}

// Tier returns the tier currently holding the file.
func (f *File) Tier() *Tier {
	return f.tier
}
