package jobstore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// Store is the per-source raw record store. The whole CSV is read into
// memory on Open, mutated through Upsert/MarkAbsent, and rewritten
// atomically on Flush. Records are never physically deleted, inactive
// jobs stay around for historical stats.
//
// A store file is owned by exactly one scraper process at a time. The
// atomic rename protects against corruption from a racing writer but not
// against its updates being overwritten.
type Store struct {
	path    string
	source  Source
	records map[string]Record

	// overridable for tests
	Now func() time.Time
}

// Open reads the store at path, treating a missing or unreadable file as
// an empty store. Corruption is reported through the returned store's
// LoadErr-style warning log rather than an error: a cold start is always
// preferable to a dead pipeline.
func Open(path string, source Source) (*Store, error) {
	s := &Store{
		path:    path,
		source:  source,
		records: map[string]Record{},
		Now:     time.Now,
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		slog.Warn(
			"raw store unreadable, starting cold",
			"source", source, "path", path, "err", err,
		)
		return s, nil
	}
	defer file.Close()

	if err := s.load(file); err != nil {
		slog.Warn(
			"raw store corrupt, starting cold",
			"source", source, "path", path,
			"err", fmt.Errorf("%w: %w", ErrStoreCorruption, err),
		)
		s.records = map[string]Record{}
	}
	return s, nil
}

// Load reads records from r. Exposed separately from Open so the combiner
// can read foreign store files without taking ownership of them.
func Load(r io.Reader) ([]Record, error) {
	s := &Store{records: map[string]Record{}}
	if err := s.load(r); err != nil {
		return nil, err
	}
	return s.Records(), nil
}

func (s *Store) load(r io.Reader) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	if len(header) != len(csvHeader) {
		return fmt.Errorf("expected %d columns, got %d", len(csvHeader), len(header))
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		rec, err := unmarshalRow(row)
		if err != nil {
			return err
		}
		s.records[rec.IdentityKey] = rec
	}
	return nil
}

// Upsert inserts rec or merges it onto the existing record with the same
// IdentityKey. On merge every field except FirstSeen is overwritten,
// LastSeen is refreshed and the record flips (back) to active. Within a
// run, repeated keys resolve last-write-wins.
func (s *Store) Upsert(rec Record) {
	now := s.Now()
	rec.Source = s.source
	rec.Active = true
	rec.LastSeen = now

	if existing, ok := s.records[rec.IdentityKey]; ok {
		rec.FirstSeen = existing.FirstSeen
	} else {
		rec.FirstSeen = now
	}
	s.records[rec.IdentityKey] = rec
}

// MarkAbsent flips Active to false for every stored record whose key is
// not in seen, and returns how many were flipped. Callers must only
// invoke this after a run that completed successfully: a partial scrape
// must never be mistaken for confirmed absence.
func (s *Store) MarkAbsent(seen map[string]struct{}) int {
	flipped := 0
	for key, rec := range s.records {
		if _, ok := seen[key]; ok {
			continue
		}
		if rec.Active {
			rec.Active = false
			s.records[key] = rec
			flipped++
		}
	}
	return flipped
}

// Get returns the stored record for key, if any.
func (s *Store) Get(key string) (Record, bool) {
	rec, ok := s.records[key]
	return rec, ok
}

// Len reports the number of distinct identity keys in the store.
func (s *Store) Len() int {
	return len(s.records)
}

// ActiveLen reports the number of records currently marked active.
func (s *Store) ActiveLen() int {
	n := 0
	for _, rec := range s.records {
		if rec.Active {
			n++
		}
	}
	return n
}

// Records returns all records sorted by identity key. The ordering is
// deterministic so that rewriting an unchanged store produces identical
// bytes.
func (s *Store) Records() []Record {
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].IdentityKey < out[j].IdentityKey
	})
	return out
}

// WriteAll writes records to w in the store's CSV schema, header
// included. Callers are responsible for ordering.
func WriteAll(w io.Writer, records []Record) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		if err := writer.Write(rec.marshalRow()); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Flush rewrites the store file atomically: the full table is written to
// a temp file in the same directory which is then renamed over the
// previous file, so a crash mid-write leaves the old file intact.
func (s *Store) Flush() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".jobstore-*.csv")
	if err != nil {
		return fmt.Errorf("create temp store: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteAll(tmp, s.Records()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}

	slog.Info(
		"raw store flushed",
		"source", s.source,
		"path", s.path,
		"records", s.Len(),
		"active", s.ActiveLen(),
	)
	return nil
}
