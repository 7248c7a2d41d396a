package stats

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
)

// CSVSink appends "generation,best,mean,stdev" lines without a header.
type CSVSink struct {
	f *os.File
	w *csv.Writer
}

// OpenCSV opens path for appending, creating it when needed.
func OpenCSV(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("stats: cannot open %s: %w", path, err)
	}
	return &CSVSink{f: f, w: csv.NewWriter(f)}, nil
}

func (s *CSVSink) Append(_ context.Context, r Record) error {
	row := []string{
		strconv.Itoa(r.Generation),
		formatFloat(r.Best),
		formatFloat(r.Mean),
		formatFloat(r.Stdev),
	}
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("stats: cannot write generation %d: %w", r.Generation, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("stats: cannot write generation %d: %w", r.Generation, err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	return s.f.Close()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
