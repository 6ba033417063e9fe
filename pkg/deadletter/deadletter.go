// Package deadletter persists records that failed transformation or
// loading so they can be inspected and reprocessed after the batch
// that produced them has moved on.
package deadletter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
)

// Entry is one dead-lettered record.
type Entry struct {
	// Timestamp is when the failure was recorded, RFC3339.
	Timestamp string `json:"timestamp"`

	// JobID identifies the migration run that produced the failure.
	JobID string `json:"job_id"`

	// TableName is the logical source table of the record.
	TableName string `json:"table_name"`

	// RecordData is the original source row.
	RecordData map[string]any `json:"record_data"`

	// ErrorMessage describes why the record failed.
	ErrorMessage string `json:"error_message"`

	// RetryCount is how many reprocessing attempts have been made.
	RetryCount int `json:"retry_count"`

	// file is the backing filename, set when loaded from the store.
	file string
}

// Store is a file-backed dead-letter store: one JSON file per entry
// under a base directory, named <table>_<timestamp>.json.
type Store struct {
	fs  afero.Fs
	dir string
	log hclog.Logger
	seq int
	now func() time.Time
}

// StoreOption adjusts store construction.
type StoreOption func(*Store)

// WithFs overrides the backing filesystem. Tests use afero.NewMemMapFs.
func WithFs(fs afero.Fs) StoreOption {
	return func(s *Store) { s.fs = fs }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore opens a dead-letter store rooted at dir, creating it if
// needed. A nil logger is replaced with a no-op logger.
func NewStore(dir string, log hclog.Logger, opts ...StoreOption) (*Store, error) {
	if log == nil {
		log = hclog.NewNullLogger()
	}
	s := &Store{
		fs:  afero.NewOsFs(),
		dir: dir,
		log: log.Named("deadletter"),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create dead-letter directory: %w", err)
	}
	return s, nil
}

// Record persists a failed record. It never returns an error: a store
// that cannot persist logs the failure and drops the entry rather than
// failing the migration batch that called it.
func (s *Store) Record(jobID, table string, record map[string]any, cause error) {
	now := s.now().UTC()
	entry := Entry{
		Timestamp:    now.Format(time.RFC3339),
		JobID:        jobID,
		TableName:    table,
		RecordData:   record,
		ErrorMessage: cause.Error(),
	}

	data, err := json.MarshalIndent(&entry, "", "  ")
	if err != nil {
		s.log.Error("failed to encode dead-letter entry", "table", table, "error", err)
		return
	}

	// Sequence suffix keeps same-second failures from clobbering
	// each other.
	s.seq++
	name := fmt.Sprintf("%s_%s_%06d.json", table, now.Format("20060102T150405"), s.seq)
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, name), data, 0o644); err != nil {
		s.log.Error("failed to persist dead-letter entry", "table", table, "error", err)
		return
	}
	s.log.Debug("dead-lettered record", "table", table, "job_id", jobID, "file", name)
}

// List returns entries, newest last, optionally filtered to one table.
func (s *Store) List(table string) ([]Entry, error) {
	infos, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read dead-letter directory: %w", err)
	}

	var entries []Entry
	for _, info := range infos {
		if info.IsDir() || !strings.HasSuffix(info.Name(), ".json") {
			continue
		}
		if table != "" && !strings.HasPrefix(info.Name(), table+"_") {
			continue
		}
		data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, info.Name()))
		if err != nil {
			s.log.Warn("failed to read dead-letter entry", "file", info.Name(), "error", err)
			continue
		}
		var e Entry
		if err := json.Unmarshal(data, &e); err != nil {
			s.log.Warn("skipping malformed dead-letter entry", "file", info.Name(), "error", err)
			continue
		}
		e.file = info.Name()
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].file < entries[j].file })
	return entries, nil
}

// Remove deletes an entry's backing file. Removing an entry that no
// longer exists is not an error.
func (s *Store) Remove(e Entry) error {
	if e.file == "" {
		return nil
	}
	err := s.fs.Remove(filepath.Join(s.dir, e.file))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove dead-letter entry: %w", err)
	}
	return nil
}

// MarkRetried rewrites an entry with an incremented retry count.
func (s *Store) MarkRetried(e Entry) error {
	if e.file == "" {
		return nil
	}
	e.RetryCount++
	data, err := json.MarshalIndent(&e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode dead-letter entry: %w", err)
	}
	if err := afero.WriteFile(s.fs, filepath.Join(s.dir, e.file), data, 0o644); err != nil {
		return fmt.Errorf("failed to rewrite dead-letter entry: %w", err)
	}
	return nil
}
