package etl

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// rawTable is one raw extract loaded in memory: a header index plus the
// rows in file order. The official files switch between ';' and ','
// separators across years, so the separator is sniffed from the header
// line.
type rawTable struct {
	path   string
	header map[string]int
	rows   [][]string
}

func readRawTable(path string) (*rawTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	sep, err := sniffSeparator(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}

	r := csv.NewReader(f)
	r.Comma = sep
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse %s: empty file", path)
	}

	header := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}

	return &rawTable{path: path, header: header, rows: records[1:]}, nil
}

// sniffSeparator picks ';' or ',' based on which occurs more often in
// the first line.
func sniffSeparator(f *os.File) (rune, error) {
	buf := make([]byte, 8192)
	n, err := f.Read(buf)
	if n == 0 && err != nil {
		return 0, err
	}
	line := string(buf[:n])
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if strings.Count(line, ";") >= strings.Count(line, ",") {
		return ';', nil
	}
	return ',', nil
}

// col resolves a column by its canonical name or any known alias.
// The extracts renamed columns across vintages (Num_Acc vs Accident_Id).
func (t *rawTable) col(names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := t.header[name]; ok {
			return i, true
		}
	}
	return -1, false
}

// requireCol is col for columns whose absence is a structural input
// error: the stage aborts rather than guessing.
func (t *rawTable) requireCol(names ...string) (int, error) {
	if i, ok := t.col(names...); ok {
		return i, nil
	}
	return -1, fmt.Errorf("%s: missing required column %q", t.path, names[0])
}

// field returns the trimmed cell value, empty when the row is short.
func field(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// missing reports whether a raw value is one of the sentinel encodings
// of "no data" used by the extracts.
func missing(v string) bool {
	switch v {
	case "", "-1", ".", "N/A":
		return true
	}
	return false
}
