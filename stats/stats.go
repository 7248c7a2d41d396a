// Package stats persists one summary row per evaluated generation.
package stats

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Record is the fitness summary of one generation.
type Record struct {
	RunID      string
	Generation int
	Best       float64
	Mean       float64
	Stdev      float64
	RecordedAt time.Time
}

// Sink stores records. Appends are ordered by generation within a run.
type Sink interface {
	Append(ctx context.Context, r Record) error
	Close() error
}

// NewRunID returns a fresh identifier for a training run.
func NewRunID() string {
	return uuid.NewString()
}

type multi []Sink

// Multi fans every append out to all sinks.
func Multi(sinks ...Sink) Sink {
	return multi(sinks)
}

func (m multi) Append(ctx context.Context, r Record) error {
	var errs []error
	for _, s := range m {
		if err := s.Append(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
