package features

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/desertthunder/moodsort/internal/shared"
)

// CleanResult counts the rows kept and removed by [CleanASCII].
type CleanResult struct {
	Kept    int
	Removed int
}

// CleanASCII copies the rows of src whose artist and track are pure ASCII to dst.
//
// The header is copied unchanged. dst is written without a byte order mark.
func CleanASCII(src, dst string) (CleanResult, error) {
	var result CleanResult

	in, err := os.Open(src)
	if err != nil {
		return result, fmt.Errorf("%w: failed to open %s: %v", shared.ErrPersistence, src, err)
	}
	defer in.Close()

	reader := csv.NewReader(skipBOM(in))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return result, fmt.Errorf("%w: failed to read header of %s: %v", shared.ErrPersistence, src, err)
	}
	artistCol, trackCol := -1, -1
	for i, name := range header {
		switch name {
		case ColumnArtist:
			artistCol = i
		case ColumnTrack:
			trackCol = i
		}
	}
	if artistCol < 0 || trackCol < 0 {
		return result, fmt.Errorf("%w: %s has no artist/track columns", shared.ErrInvalidInput, src)
	}

	out, err := os.Create(dst)
	if err != nil {
		return result, fmt.Errorf("%w: failed to create %s: %v", shared.ErrPersistence, dst, err)
	}
	defer out.Close()

	writer := csv.NewWriter(out)
	if err := writer.Write(header); err != nil {
		return result, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return result, fmt.Errorf("%w: failed to parse %s: %v", shared.ErrPersistence, src, err)
		}
		if !isASCII(cell(row, artistCol)) || !isASCII(cell(row, trackCol)) {
			result.Removed++
			continue
		}
		if err := writer.Write(row); err != nil {
			return result, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
		result.Kept++
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return result, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	return result, out.Sync()
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}

// LabelCount is the number of rows recorded under a label.
type LabelCount struct {
	Label string
	Rows  int
}

// Stats summarizes the contents of a store.
type Stats struct {
	Rows    int
	Keys    int
	Columns int
	Labels  []LabelCount
}

// Stats scans the backing file and counts rows per label, sorted by label.
func (s *CSVStore) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Stats{Rows: s.rows, Keys: len(s.index), Columns: len(s.header)}

	f, err := os.Open(s.path)
	if err != nil {
		return st, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}
	defer f.Close()

	reader := csv.NewReader(skipBOM(f))
	reader.FieldsPerRecord = -1
	if _, err := reader.Read(); err != nil {
		return st, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
	}

	labelCol, hasLabel := s.columns[ColumnLabel]
	counts := make(map[string]int)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return st, fmt.Errorf("%w: %v", shared.ErrPersistence, err)
		}
		label := ""
		if hasLabel {
			label = cell(row, labelCol)
		}
		counts[label]++
	}

	for label, n := range counts {
		st.Labels = append(st.Labels, LabelCount{Label: label, Rows: n})
	}
	sort.Slice(st.Labels, func(i, j int) bool { return st.Labels[i].Label < st.Labels[j].Label })
	return st, nil
}
