// Package state persists the last pull result per image and guards
// against concurrent pulls.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"
)

const (
	stateFile = "state.json"
	lockFile  = "pull.lock"
)

// ErrLocked is returned by Lock when another pull holds the lock.
var ErrLocked = errors.New("another pull is in progress")

// ImageState is the recorded result of the last pull of an image.
type ImageState struct {
	// PullOK is true when the last pull was confirmed.
	PullOK bool `json:"pull_ok"`
	// SavedAt is when the record was written.
	SavedAt time.Time `json:"saved_at"`
	// PullID identifies the pull that produced the record.
	PullID string `json:"pull_id,omitempty"`
	// Outcome is the outcome status of that pull.
	Outcome string `json:"outcome,omitempty"`
	// Message is the final message of that pull.
	Message string `json:"message,omitempty"`
}

// File is the on-disk state document.
type File struct {
	Images map[string]ImageState `json:"images"`
}

// Entry pairs an image with its state.
type Entry struct {
	Image string
	ImageState
}

// Store reads and writes the state document in a directory.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore creates a store rooted at dir. The directory is created on
// first write.
func NewStore(dir string) *Store {
	return &Store{dir: dir, now: time.Now}
}

// DefaultDir returns $XDG_STATE_HOME/dockpull, falling back to
// ~/.local/state/dockpull.
func DefaultDir() (string, error) {
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "dockpull"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "dockpull"), nil
}

// Dir returns the state directory.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the state document path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, stateFile)
}

// Load reads the state document. A missing file yields an empty document.
func (s *Store) Load() (*File, error) {
	data, err := os.ReadFile(s.Path())
	if errors.Is(err, os.ErrNotExist) {
		return &File{Images: map[string]ImageState{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}

	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse state %s: %w", s.Path(), err)
	}
	if f.Images == nil {
		f.Images = map[string]ImageState{}
	}
	return &f, nil
}

// Get returns the recorded state of an image.
func (s *Store) Get(image string) (ImageState, bool, error) {
	f, err := s.Load()
	if err != nil {
		return ImageState{}, false, err
	}
	st, ok := f.Images[image]
	return st, ok, nil
}

// List returns all records sorted by image.
func (s *Store) List() ([]Entry, error) {
	f, err := s.Load()
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(f.Images))
	for image, st := range f.Images {
		entries = append(entries, Entry{Image: image, ImageState: st})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Image < entries[j].Image })
	return entries, nil
}

// Record stores the state of an image, stamping SavedAt.
// The document is replaced atomically.
func (s *Store) Record(image string, st ImageState) error {
	f, err := s.Load()
	if err != nil {
		return err
	}
	st.SavedAt = s.now().UTC()
	f.Images[image] = st

	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, stateFile+".*")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		return fmt.Errorf("replace state: %w", err)
	}
	return nil
}

// Lock is an exclusive pull lock.
type Lock struct {
	fl *flock.Flock
}

// Lock takes the pull lock without blocking.
// Returns ErrLocked if another process holds it.
func (s *Store) Lock() (*Lock, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	fl := flock.New(filepath.Join(s.dir, lockFile))
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pull lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}
	return &Lock{fl: fl}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.fl.Path()
}

// Close releases the lock.
func (l *Lock) Close() error {
	return l.fl.Unlock()
}
