package exporter

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"churnpulse/internal/config"
)

// utf8BOM is prepended to every fresh file so Excel detects the encoding.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVWriter writes derived tables and summary files into the data tree.
// Callers pass file names, not absolute paths; resolvePath maps them onto
// the configured layout.
type CSVWriter struct {
	paths *config.Paths
}

// NewCSVWriter returns a writer bound to the given data layout.
func NewCSVWriter(paths *config.Paths) *CSVWriter {
	return &CSVWriter{paths: paths}
}

// WriteSimpleCSV replaces the target file with a header row followed by
// the given records.
func (w *CSVWriter) WriteSimpleCSV(name string, headers []string, records [][]string) error {
	file, err := w.open(name, false)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			file.Close()
			return fmt.Errorf("write header row: %w", err)
		}
	}
	if err := cw.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("write records: %w", err)
	}
	// WriteAll flushes, so only the close remains.
	return file.Close()
}

// AppendToCSV adds records to an existing file without touching its header.
func (w *CSVWriter) AppendToCSV(name string, records [][]string) error {
	file, err := w.open(name, true)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(file)
	if err := cw.WriteAll(records); err != nil {
		file.Close()
		return fmt.Errorf("append records: %w", err)
	}
	return file.Close()
}

// StreamWriter emits one row at a time so the full derived table never has
// to sit in memory.
type StreamWriter struct {
	file *os.File
	cw   *csv.Writer
}

// CreateStreamWriter opens name for streaming and writes the header row.
// The caller owns the stream and must Close it to flush buffered rows.
func (w *CSVWriter) CreateStreamWriter(name string, headers []string) (*StreamWriter, error) {
	file, err := w.open(name, false)
	if err != nil {
		return nil, err
	}

	cw := csv.NewWriter(file)
	if len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			file.Close()
			return nil, fmt.Errorf("write header row: %w", err)
		}
	}
	return &StreamWriter{file: file, cw: cw}, nil
}

// WriteRecord appends a single row to the stream.
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.cw.Write(record)
}

// Close flushes buffered rows and closes the underlying file.
func (s *StreamWriter) Close() error {
	s.cw.Flush()
	if err := s.cw.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// open resolves name, creates the parent directory and opens the target.
// Fresh files start with the UTF-8 BOM; appends leave the existing bytes
// alone.
func (w *CSVWriter) open(name string, appendMode bool) (*os.File, error) {
	target := w.resolvePath(name)

	slog.Debug("writing csv",
		slog.String("name", name),
		slog.String("path", target),
		slog.Bool("append", appendMode))

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if appendMode {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	file, err := os.OpenFile(target, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", target, err)
	}

	if !appendMode {
		if _, err := file.Write(utf8BOM); err != nil {
			file.Close()
			return nil, fmt.Errorf("write BOM: %w", err)
		}
	}
	return file, nil
}

// resolvePath maps a file name onto the data tree. Absolute paths pass
// through, raw/ and summaries/ prefixes pick their directories, and
// everything else lands in the derived directory.
func (w *CSVWriter) resolvePath(name string) string {
	switch {
	case filepath.IsAbs(name):
		return name
	case strings.HasPrefix(name, "raw/"):
		return w.paths.GetRawPath(strings.TrimPrefix(name, "raw/"))
	case strings.HasPrefix(name, "summaries/"):
		return filepath.Join(w.paths.SummariesDir, strings.TrimPrefix(name, "summaries/"))
	default:
		return w.paths.GetDerivedPath(name)
	}
}
