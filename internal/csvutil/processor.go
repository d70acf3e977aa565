// Package csvutil reads CSV exports whose columns are addressed by header
// name rather than position.
package csvutil

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// ErrSkip is returned by a parser to drop a row silently, e.g. a TV series
// in a movie export.
var ErrSkip = errors.New("skip row")

// ProcessorOptions configures CSV processing behavior.
type ProcessorOptions struct {
	// Required lists header names that must be present.
	Required []string

	// SkipInvalid controls whether to skip invalid records or return an error.
	SkipInvalid bool
}

// Row is one CSV record. Lookups use the header name, case-insensitively.
type Row struct {
	Line   int
	header map[string]int
	record []string
}

// Get returns the trimmed value of column name, or "" when the column is
// missing.
func (r Row) Get(name string) string {
	i, ok := r.header[strings.ToLower(name)]
	if !ok || i >= len(r.record) {
		return ""
	}
	return strings.TrimSpace(r.record[i])
}

// Int parses column name as an integer. An empty value is 0.
func (r Row) Int(name string) (int, error) {
	v := r.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return n, nil
}

// Float parses column name as a float. An empty value is 0.
func (r Row) Float(name string) (float64, error) {
	v := r.Get(name)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("column %q: %w", name, err)
	}
	return f, nil
}

// ProcessCSV reads a CSV file and parses each record into type T.
// The first record is the header; a leading byte order mark is dropped.
func ProcessCSV[T any](filename string, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	csvFile, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = csvFile.Close() }()

	// File existence check
	if fi, err := csvFile.Stat(); err != nil || fi.Size() == 0 {
		return nil, fmt.Errorf("CSV file is empty or cannot be read")
	}

	return Process(csvFile, parser, opts)
}

// Process is ProcessCSV for an already open reader.
func Process[T any](r io.Reader, parser func(Row) (T, error), opts ProcessorOptions) ([]T, error) {
	reader := csv.NewReader(transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder())))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	names, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	header := make(map[string]int, len(names))
	for i, name := range names {
		header[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, name := range opts.Required {
		if _, ok := header[strings.ToLower(name)]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	var items []T

	for line := 2; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("Error reading record", "line", line, "error", err)
			continue
		}

		item, err := parser(Row{Line: line, header: header, record: record})
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			if opts.SkipInvalid {
				slog.Warn("Skipping invalid record", "line", line, "error", err)
				continue
			}
			return nil, fmt.Errorf("invalid record on line %d: %w", line, err)
		}

		items = append(items, item)
	}

	return items, nil
}
