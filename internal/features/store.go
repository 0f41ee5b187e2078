package features

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodsort/internal/models"
	"github.com/desertthunder/moodsort/internal/shared"
	"github.com/gofrs/flock"
)

// Key columns follow the feature columns in every row.
const (
	ColumnArtist = "artist"
	ColumnTrack  = "track"
	ColumnLabel  = "label"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Store is the feature cache used by the orchestrator and the gatherer.
type Store interface {
	// Lookup returns the features recorded for the exact (artist, title) pair.
	Lookup(artist, title string) (models.FeatureVector, bool)
	// Append durably writes a record. It does not check for existing keys.
	Append(record models.FeatureRecord) error
	// Has reports whether any record exists for the pair.
	Has(artist, title string) bool
	// Len returns the number of distinct keys.
	Len() int
}

// CSVStore is a [Store] backed by a CSV file.
type CSVStore struct {
	mu      sync.RWMutex
	path    string
	file    *os.File
	writer  *csv.Writer
	lock    *flock.Flock
	header  []string
	index   map[string]models.FeatureRecord
	rows    int
	logger  *log.Logger
	columns map[string]int
}

// Open loads the store at path, creating it with the schema header when missing or empty.
func Open(path string, schema models.FeatureSchema, logger *log.Logger) (*CSVStore, error) {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create store directory: %v", shared.ErrPersistence, err)
		}
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock %s: %v", shared.ErrPersistence, path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", shared.ErrStoreLocked, path)
	}

	s := &CSVStore{
		path:   path,
		lock:   lock,
		index:  make(map[string]models.FeatureRecord),
		logger: logger,
	}
	if err := s.load(schema); err != nil {
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *CSVStore) load(schema models.FeatureSchema) error {
	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %v", shared.ErrPersistence, s.path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: failed to stat %s: %v", shared.ErrPersistence, s.path, err)
	}

	s.file = f
	s.writer = csv.NewWriter(f)

	if info.Size() == 0 {
		s.setHeader(append(append([]string{}, schema.Names...), ColumnArtist, ColumnTrack, ColumnLabel))
		if err := s.writeRow(s.header); err != nil {
			f.Close()
			return err
		}
		s.logger.Debug("created feature store", "path", s.path, "schema", schema.Version, "columns", len(s.header))
		return nil
	}

	if err := s.readExisting(); err != nil {
		f.Close()
		return err
	}
	if err := s.terminateLastLine(info.Size()); err != nil {
		f.Close()
		return err
	}
	s.logger.Debug("loaded feature store", "path", s.path, "rows", s.rows, "keys", len(s.index))
	return nil
}

func (s *CSVStore) readExisting() error {
	r, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", shared.ErrPersistence, s.path, err)
	}
	defer r.Close()

	reader := csv.NewReader(skipBOM(r))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return fmt.Errorf("%w: failed to read header of %s: %v", shared.ErrPersistence, s.path, err)
	}
	s.setHeader(header)

	for _, col := range []string{ColumnArtist, ColumnTrack} {
		if _, ok := s.columns[col]; !ok {
			return fmt.Errorf("%w: %s has no %q column", shared.ErrPersistence, s.path, col)
		}
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: failed to parse %s: %v", shared.ErrPersistence, s.path, err)
		}
		s.rows++
		rec := s.decode(row)
		key := shared.TrackKey(rec.Artist, rec.Title)
		if _, seen := s.index[key]; !seen {
			s.index[key] = rec
		}
	}
	return nil
}

// terminateLastLine appends a newline when an interrupted writer left the final row unterminated.
func (s *CSVStore) terminateLastLine(size int64) error {
	last := make([]byte, 1)
	if _, err := s.file.ReadAt(last, size-1); err != nil {
		return fmt.Errorf("%w: failed to read %s: %v", shared.ErrPersistence, s.path, err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := s.file.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("%w: failed to repair %s: %v", shared.ErrPersistence, s.path, err)
	}
	return nil
}

func (s *CSVStore) setHeader(header []string) {
	s.header = header
	s.columns = make(map[string]int, len(header))
	for i, name := range header {
		s.columns[name] = i
	}
}

func (s *CSVStore) decode(row []string) models.FeatureRecord {
	rec := models.FeatureRecord{Features: make(models.FeatureVector)}
	for i, name := range s.header {
		if i >= len(row) {
			break
		}
		cell := row[i]
		switch name {
		case ColumnArtist:
			rec.Artist = cell
		case ColumnTrack:
			rec.Title = cell
		case ColumnLabel:
			rec.Label = cell
		default:
			if cell == "" {
				continue
			}
			v, err := strconv.ParseFloat(cell, 64)
			if err != nil {
				s.logger.Debug("ignoring non-numeric feature", "column", name, "value", cell)
				continue
			}
			rec.Features[name] = v
		}
	}
	return rec
}

func (s *CSVStore) encode(rec models.FeatureRecord) []string {
	row := make([]string, len(s.header))
	for i, name := range s.header {
		switch name {
		case ColumnArtist:
			row[i] = rec.Artist
		case ColumnTrack:
			row[i] = rec.Title
		case ColumnLabel:
			row[i] = rec.Label
		default:
			if v, ok := rec.Features[name]; ok {
				row[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
	}
	for name := range rec.Features {
		if _, ok := s.columns[name]; !ok {
			s.logger.Debug("dropping feature outside store header", "feature", name)
		}
	}
	return row
}

func (s *CSVStore) writeRow(row []string) error {
	if err := s.writer.Write(row); err != nil {
		return fmt.Errorf("%w: failed to write row: %v", shared.ErrPersistence, err)
	}
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return fmt.Errorf("%w: failed to flush row: %v", shared.ErrPersistence, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("%w: failed to sync %s: %v", shared.ErrPersistence, s.path, err)
	}
	return nil
}

// Lookup returns a copy of the earliest vector recorded for the pair.
func (s *CSVStore) Lookup(artist, title string) (models.FeatureVector, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.index[shared.TrackKey(artist, title)]
	if !ok {
		return nil, false
	}
	return rec.Features.Clone(), true
}

// Append writes the record as one CSV row and syncs it to disk before returning.
func (s *CSVStore) Append(record models.FeatureRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("%w: store is closed", shared.ErrPersistence)
	}
	if err := s.writeRow(s.encode(record)); err != nil {
		return err
	}
	s.rows++

	key := shared.TrackKey(record.Artist, record.Title)
	if _, seen := s.index[key]; !seen {
		stored := record
		stored.Features = s.decode(s.encode(record)).Features
		s.index[key] = stored
	}
	return nil
}

// Has reports whether the pair has been recorded.
func (s *CSVStore) Has(artist, title string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[shared.TrackKey(artist, title)]
	return ok
}

// Len returns the number of distinct (artist, title) keys.
func (s *CSVStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.index)
}

// Rows returns the number of data rows, duplicates included.
func (s *CSVStore) Rows() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rows
}

// Header returns the column order rows are written in.
func (s *CSVStore) Header() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string{}, s.header...)
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

// Close flushes the writer, closes the file and releases the lock.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.file != nil {
		s.writer.Flush()
		errs = append(errs, s.writer.Error(), s.file.Close())
		s.file = nil
	}
	if s.lock != nil {
		errs = append(errs, s.lock.Unlock())
		s.lock = nil
	}
	return errors.Join(errs...)
}

// skipBOM drops a leading UTF-8 byte order mark.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}
