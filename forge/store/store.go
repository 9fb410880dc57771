package store

import (
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/keyforge/keyforge/logging"
)

// FallbackBaseName is used when sanitization leaves nothing usable.
const FallbackBaseName = "keystore"

var unsafeRunes = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// Sanitize reduces a requested project name to a safe file system
// token: alphanumerics, dot, underscore and hyphen survive, every
// other run of characters collapses to a single underscore. The
// result is never empty and sanitization is idempotent.
func Sanitize(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeRunes.ReplaceAllString(name, "_")
	if len(name) == 0 {
		return FallbackBaseName
	}
	return name
}

// Project is the path set of one artifact project, relative to the
// store's filesystem root.
type Project struct {
	Base        string
	Dir         string
	Keystore    string
	Certificate string
	Summary     string
	Requester   string
}

// RequesterInfo records who asked for the artifacts. Persisted
// best-effort; a failure here never aborts delivery.
type RequesterInfo struct {
	UserID      string
	Username    string
	FullName    string
	RequestedAt time.Time
}

func orDash(s string) string {
	if len(s) == 0 {
		return "-"
	}
	return s
}

func (r RequesterInfo) String() string {
	return fmt.Sprintf("user_id: %s\nusername: %s\nfull_name: %s\nrequested_at: %s\n",
		orDash(r.UserID),
		orDash(r.Username),
		orDash(r.FullName),
		r.RequestedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
}

// Store manages project directories under a generated root and moves
// superseded sets into a sibling root. All operations on the same
// base name must go through [Store.Lock] when they mutate.
type Store struct {
	filesystem    Filesystem
	generatedDir  string
	supersededDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store over the given filesystem and root directories.
func New(filesystem Filesystem, generatedDir, supersededDir string) *Store {
	return &Store{
		filesystem:    filesystem,
		generatedDir:  generatedDir,
		supersededDir: supersededDir,
		locks:         make(map[string]*sync.Mutex, 16),
	}
}

// Lock serializes mutating access per base name and returns the
// unlock function. Requests for different projects stay concurrent;
// two generations for the same name would otherwise race the
// archive-then-write sequence.
func (s *Store) Lock(base string) func() {
	s.mu.Lock()
	m, ok := s.locks[base]
	if !ok {
		m = &sync.Mutex{}
		s.locks[base] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Project returns the path set for a sanitized base name.
func (s *Store) Project(base string) Project {
	dir := path.Join(s.generatedDir, base)
	return Project{
		Base:        base,
		Dir:         dir,
		Keystore:    path.Join(dir, base+".jks"),
		Certificate: path.Join(dir, base+".pem"),
		Summary:     path.Join(dir, "info.txt"),
		Requester:   path.Join(dir, "user.txt"),
	}
}

func (s *Store) exists(name string) bool {
	_, err := s.filesystem.Stat(name)
	return err == nil
}

// Complete reports whether both keystore and certificate exist for
// the base name.
func (s *Store) Complete(base string) bool {
	p := s.Project(base)
	return s.exists(p.Keystore) && s.exists(p.Certificate)
}

// Partial reports whether at least one artifact exists. A partial set
// is archived before regeneration just like a complete one, so a
// half-written state can never be mistaken for a fresh directory.
func (s *Store) Partial(base string) bool {
	p := s.Project(base)
	return s.exists(p.Keystore) || s.exists(p.Certificate)
}

// EnsureProjectDir creates the project directory.
func (s *Store) EnsureProjectDir(base string) error {
	if err := s.filesystem.MkdirAll(s.Project(base).Dir); err != nil {
		return fmt.Errorf("store: can't create project dir for '%s': %v", base, err)
	}
	return nil
}

// nextSupersededDir finds a free slot under the superseded root,
// appending -1, -2, ... when earlier archives of the same name exist.
func (s *Store) nextSupersededDir(base string) string {
	candidate := path.Join(s.supersededDir, base)
	if !s.exists(candidate) {
		return candidate
	}
	for idx := 1; ; idx++ {
		candidate = path.Join(s.supersededDir, fmt.Sprintf("%s-%d", base, idx))
		if !s.exists(candidate) {
			return candidate
		}
	}
}

// Archive moves the current project directory into the superseded
// root. It is a move, not a copy, and never overwrites an earlier
// archive. Archiving a non-existing project is a no-op.
func (s *Store) Archive(base string) error {
	p := s.Project(base)
	if !s.exists(p.Dir) {
		return nil
	}

	if err := s.filesystem.MkdirAll(s.supersededDir); err != nil {
		return fmt.Errorf("store: can't create superseded root: %v", err)
	}

	target := s.nextSupersededDir(base)
	if err := s.filesystem.Rename(p.Dir, target); err != nil {
		return fmt.Errorf("store: can't archive '%s' to '%s': %v", p.Dir, target, err)
	}

	logging.Infof("archived project '%s' to '%s'", base, target)
	return nil
}

// ReadFile reads any file relative to the store root.
func (s *Store) ReadFile(name string) ([]byte, error) {
	return fs.ReadFile(s.filesystem.FS(), name)
}

// WriteKeystore ingests uploaded keystore bytes into the project's
// keystore slot.
func (s *Store) WriteKeystore(base string, content []byte) error {
	if err := s.EnsureProjectDir(base); err != nil {
		return err
	}
	if err := s.filesystem.WriteFile(s.Project(base).Keystore, content); err != nil {
		return fmt.Errorf("store: can't write keystore for '%s': %v", base, err)
	}
	return nil
}

// ReadSummary returns the persisted identity summary, trimmed.
func (s *Store) ReadSummary(base string) (string, error) {
	content, err := s.ReadFile(s.Project(base).Summary)
	if err != nil {
		return "", fmt.Errorf("store: can't read summary for '%s': %v", base, err)
	}
	return strings.TrimSpace(string(content)), nil
}

// WriteSummary persists the identity summary next to the artifacts.
func (s *Store) WriteSummary(base, summary string) error {
	err := s.filesystem.WriteFile(s.Project(base).Summary, []byte(summary+"\n"))
	if err != nil {
		return fmt.Errorf("store: can't write summary for '%s': %v", base, err)
	}
	return nil
}

// WriteRequesterInfo persists requester metadata.
func (s *Store) WriteRequesterInfo(base string, info RequesterInfo) error {
	err := s.filesystem.WriteFile(s.Project(base).Requester, []byte(info.String()))
	if err != nil {
		return fmt.Errorf("store: can't write requester info for '%s': %v", base, err)
	}
	return nil
}

// ExternalPath translates a store-relative name for external
// processes and delivery.
func (s *Store) ExternalPath(name string) string {
	return s.filesystem.ExternalPath(name)
}
