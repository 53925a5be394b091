package record

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/reelcron/reelcron/internal/tz"
	"github.com/reelcron/reelcron/pkg/logger"
	"github.com/spf13/afero"
)

const (
	// AllPattern selects every record in the store.
	AllPattern = "*.json"
	// ReadyPattern selects records written by media ingestion.
	ReadyPattern = "reel_*.json"
	// DraftPattern selects records written by the content-planning sync.
	DraftPattern = "notion_*.json"

	lockName = ".publish.lock"
	fileMode = 0o644
)

// Store is a directory of record documents.
type Store struct {
	fs   afero.Fs
	dir  string
	zone tz.Zone
	log  logger.Logger
}

// NewStore returns a store rooted at dir on fs. A nil fs means the OS
// filesystem.
func NewStore(fs afero.Fs, dir string, zone tz.Zone, l logger.Logger) *Store {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if l == nil {
		l = logger.NewNopLogger()
	}
	return &Store{fs: fs, dir: dir, zone: zone, log: l}
}

// Dir returns the store directory.
func (s *Store) Dir() string { return s.dir }

// Zone returns the reference zone used to decode timestamps.
func (s *Store) Zone() tz.Zone { return s.zone }

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id)
}

// ScanResult holds the outcome of a directory scan.
type ScanResult struct {
	// Records are the decoded records in file-name order.
	Records []*Record
	// Malformed maps the id of every skipped file to its decode error.
	Malformed map[string]error
}

// Scan decodes every record whose file name matches pattern. Malformed
// files are reported and skipped; a missing directory yields no records.
func (s *Store) Scan(pattern string) (*ScanResult, error) {
	if pattern == "" {
		pattern = AllPattern
	}
	if _, err := filepath.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	res := &ScanResult{Malformed: make(map[string]error)}

	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Debug("record directory %s does not exist", s.dir)
			return res, nil
		}
		return nil, fmt.Errorf("read record directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if ok, _ := filepath.Match(pattern, e.Name()); !ok {
			continue
		}
		rec, err := s.Load(e.Name())
		if err != nil {
			s.log.Warning("Skipping %s: %v", e.Name(), err)
			res.Malformed[e.Name()] = err
			continue
		}
		res.Records = append(res.Records, rec)
	}
	return res, nil
}

// Load reads and decodes one record.
func (s *Store) Load(id string) (*Record, error) {
	data, err := afero.ReadFile(s.fs, s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	return Decode(id, data, s.zone)
}

// Create writes rec under a new id built from prefix, the creation time
// and name. It never overwrites an existing record.
func (s *Store) Create(prefix, name string, rec *Record, now time.Time) (string, error) {
	id := fmt.Sprintf("%s_%s_%s.json", prefix, s.zone.In(now).Format("20060102_150405"), Slug(name))
	exists, err := afero.Exists(s.fs, s.path(id))
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("record %s already exists", id)
	}
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("create record directory: %w", err)
	}
	rec.ID = id
	if err := s.Save(rec); err != nil {
		return "", err
	}
	return id, nil
}

// Save atomically rewrites the record document.
func (s *Store) Save(rec *Record) error {
	if rec.ID == "" {
		return errors.New("record has no id")
	}
	data, err := rec.Encode(s.zone)
	if err != nil {
		return fmt.Errorf("encode %s: %w", rec.ID, err)
	}

	tmp, err := afero.TempFile(s.fs, s.dir, "."+rec.ID+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", rec.ID, err)
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.fs.Chmod(tmpPath, fileMode); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("set permissions: %w", err)
	}
	if err := s.fs.Rename(tmpPath, s.path(rec.ID)); err != nil {
		s.fs.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", rec.ID, err)
	}
	return nil
}

// MarkPosted performs the one-way posted transition. The document is re-read
// first so a record posted by a concurrent writer is never marked twice.
func (s *Store) MarkPosted(id string, at time.Time) (*Record, error) {
	rec, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if rec.Posted {
		return rec, fmt.Errorf("%w: %s", ErrAlreadyPosted, id)
	}
	if rec.Kind() != KindReady {
		return nil, fmt.Errorf("%w: %s is a %s", ErrMalformed, id, rec.Kind())
	}
	rec.Posted = true
	rec.PostedAt = s.zone.In(at)
	if err := s.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a record. Ready records must be posted first.
func (s *Store) Delete(id string) error {
	rec, err := s.Load(id)
	switch {
	case errors.Is(err, ErrNotFound):
		return err
	case err == nil && rec.Pending():
		return fmt.Errorf("%w: %s", ErrUnposted, id)
	}
	// malformed documents may still be removed
	if err := s.fs.Remove(s.path(id)); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// Lock takes the exclusive publish lock of the store. The returned function
// releases it.
func (s *Store) Lock(now time.Time) (func() error, error) {
	if err := s.fs.MkdirAll(s.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	p := s.path(lockName)
	f, err := s.fs.OpenFile(p, os.O_CREATE|os.O_EXCL|os.O_WRONLY, fileMode)
	if err != nil {
		if os.IsExist(err) || errors.Is(err, os.ErrExist) {
			holder, _ := afero.ReadFile(s.fs, p)
			return nil, fmt.Errorf("%w (%s: %s)", ErrLocked, p, strings.TrimSpace(string(holder)))
		}
		return nil, fmt.Errorf("create lock: %w", err)
	}
	fmt.Fprintf(f, "pid=%s since=%s\n", strconv.Itoa(os.Getpid()), s.zone.Format(now))
	if err := f.Close(); err != nil {
		s.fs.Remove(p)
		return nil, fmt.Errorf("write lock: %w", err)
	}
	return func() error {
		if err := s.fs.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("release lock: %w", err)
		}
		return nil
	}, nil
}

// Slug turns an arbitrary name (typically a file stem) into a safe id fragment.
func Slug(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "post"
	}
	return b.String()
}
