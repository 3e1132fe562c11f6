// Package storage persists one roster per profile under a data directory.
// Writes replace the file atomically and are serialized across processes
// with a lock file next to the roster.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

var (
	// ErrRosterNotFound indicates the profile has no saved roster.
	ErrRosterNotFound = errors.New("roster not found")

	// ErrInvalidProfile indicates the profile name cannot be used as a directory.
	ErrInvalidProfile = errors.New("invalid profile name")

	// ErrLocked indicates another process holds the roster lock.
	ErrLocked = errors.New("roster is locked by another process")
)

const (
	rosterFile = "roster.json"
	lockFile   = "roster.lock"
)

// LockTimeout bounds how long Save waits for another writer.
var LockTimeout = 5 * time.Second

var profileName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidProfile reports whether name can be used as a profile.
func ValidProfile(name string) bool {
	return profileName.MatchString(name) && len(name) <= 64
}

// Manager reads and writes profile rosters under a root directory.
type Manager struct {
	mu     sync.Mutex
	root   string
	logger *slog.Logger
}

// NewManager creates a Manager rooted at dir. A nil logger discards output.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{root: dir, logger: logger}
}

// Root returns the data directory.
func (m *Manager) Root() string {
	return m.root
}

// ProfileDir returns the directory holding a profile's files.
func (m *Manager) ProfileDir(profile string) string {
	return filepath.Join(m.root, "profiles", profile)
}

// RosterPath returns the roster file of a profile.
func (m *Manager) RosterPath(profile string) string {
	return filepath.Join(m.ProfileDir(profile), rosterFile)
}

func checkProfile(profile string) error {
	if !ValidProfile(profile) {
		return fmt.Errorf("%w: %q", ErrInvalidProfile, profile)
	}
	return nil
}

// Load reads a profile's roster.
func (m *Manager) Load(profile string) (*roster.Roster, error) {
	if err := checkProfile(profile); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loadLocked(profile)
}

func (m *Manager) loadLocked(profile string) (*roster.Roster, error) {
	path := m.RosterPath(profile)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRosterNotFound, profile)
		}
		return nil, fmt.Errorf("reading roster: %w", err)
	}

	var r roster.Roster
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing roster %s: %w", path, err)
	}
	if r.Version > roster.CurrentVersion {
		return nil, fmt.Errorf("roster %s has version %d, newer than supported %d", path, r.Version, roster.CurrentVersion)
	}
	r.Version = roster.CurrentVersion
	return &r, nil
}

// LoadOrCreate loads a profile's roster or returns a new empty one with
// system group sets in place. The new roster is not saved.
func (m *Manager) LoadOrCreate(profile string) (*roster.Roster, error) {
	r, err := m.Load(profile)
	if err == nil {
		return r, nil
	}
	if !errors.Is(err, ErrRosterNotFound) {
		return nil, err
	}
	r = roster.New()
	roster.EnsureSystemGroupSets(r)
	return r, nil
}

// Save writes a profile's roster. The file is replaced atomically: a
// reader sees either the old or the new roster, never a partial write.
func (m *Manager) Save(profile string, r *roster.Roster) error {
	if err := checkProfile(profile); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	unlock, err := m.lockProfile(profile)
	if err != nil {
		return err
	}
	defer unlock()
	return m.saveLocked(profile, r)
}

// Update loads a profile's roster, applies fn and saves the result while
// holding both the in-process mutex and the file lock, so concurrent
// updates never overwrite each other. If fn returns an error nothing is
// written. A missing roster is ErrRosterNotFound.
func (m *Manager) Update(profile string, fn func(*roster.Roster) error) error {
	return m.update(profile, false, fn)
}

// UpdateOrCreate is Update for a profile that may not exist yet. A new
// roster starts empty with system group sets in place.
func (m *Manager) UpdateOrCreate(profile string, fn func(*roster.Roster) error) error {
	return m.update(profile, true, fn)
}

func (m *Manager) update(profile string, create bool, fn func(*roster.Roster) error) error {
	if err := checkProfile(profile); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !create {
		if _, err := os.Stat(m.RosterPath(profile)); errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrRosterNotFound, profile)
		}
	}
	unlock, err := m.lockProfile(profile)
	if err != nil {
		return err
	}
	defer unlock()

	r, err := m.loadLocked(profile)
	switch {
	case err == nil:
	case create && errors.Is(err, ErrRosterNotFound):
		r = roster.New()
		roster.EnsureSystemGroupSets(r)
	default:
		return err
	}
	if err := fn(r); err != nil {
		return err
	}
	return m.saveLocked(profile, r)
}

// lockProfile creates the profile directory and takes its file lock.
func (m *Manager) lockProfile(profile string) (func(), error) {
	dir := m.ProfileDir(profile)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating profile directory: %w", err)
	}
	return m.lock(dir)
}

func (m *Manager) saveLocked(profile string, r *roster.Roster) error {
	r.Version = roster.CurrentVersion
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding roster: %w", err)
	}
	if err := writeAtomic(m.RosterPath(profile), data); err != nil {
		return fmt.Errorf("writing roster: %w", err)
	}
	m.logger.Debug("roster saved", "profile", profile, "students", len(r.Students), "staff", len(r.Staff))
	return nil
}

func (m *Manager) lock(dir string) (func(), error) {
	fl := flock.New(filepath.Join(dir, lockFile))
	deadline := time.Now().Add(LockTimeout)
	for {
		ok, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("locking roster: %w", err)
		}
		if ok {
			return func() { _ = fl.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrLocked
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

// Profiles lists profiles that have a saved roster, sorted by name.
func (m *Manager) Profiles() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.root, "profiles"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	names := []string{}
	for _, e := range entries {
		if !e.IsDir() || !ValidProfile(e.Name()) {
			continue
		}
		if _, err := os.Stat(m.RosterPath(e.Name())); err == nil {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes a profile and all of its files.
func (m *Manager) Delete(profile string) error {
	if err := checkProfile(profile); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := m.ProfileDir(profile)
	if _, err := os.Stat(filepath.Join(dir, rosterFile)); errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrRosterNotFound, profile)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("deleting profile %s: %w", profile, err)
	}
	return nil
}
