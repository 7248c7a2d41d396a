package stats

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	ctx := context.Background()

	s, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, Record{Generation: 0, Best: 92.5, Mean: 10, Stdev: 3.25}))
	require.NoError(t, s.Close())

	s, err = OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, Record{Generation: 1, Best: -50, Mean: -12.5, Stdev: 0}))
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "0,92.5,10,3.25\n1,-50,-12.5,0\n", string(data))
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "stats.db")
	ctx := context.Background()

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	defer s.Close()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	runA, runB := NewRunID(), NewRunID()
	assert.NotEqual(t, runA, runB)

	require.NoError(t, s.Append(ctx, Record{RunID: runA, Generation: 1, Best: 20, Mean: 2, Stdev: 1, RecordedAt: at.Add(time.Minute)}))
	require.NoError(t, s.Append(ctx, Record{RunID: runA, Generation: 0, Best: 10, Mean: 1, Stdev: 0.5, RecordedAt: at}))
	require.NoError(t, s.Append(ctx, Record{RunID: runB, Generation: 0, Best: 5, Mean: 5, Stdev: 0, RecordedAt: at.Add(time.Hour)}))
	// resumed runs rewrite the generation they restart from
	require.NoError(t, s.Append(ctx, Record{RunID: runA, Generation: 1, Best: 25, Mean: 3, Stdev: 1, RecordedAt: at.Add(2 * time.Minute)}))

	recs, err := s.Records(ctx, runA)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, 0, recs[0].Generation)
	assert.Equal(t, 10.0, recs[0].Best)
	assert.True(t, at.Equal(recs[0].RecordedAt))
	assert.Equal(t, 25.0, recs[1].Best)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, runB, runs[0].RunID)
	assert.Equal(t, runA, runs[1].RunID)
	assert.Equal(t, 2, runs[1].Generations)
	assert.Equal(t, 25.0, runs[1].Best)
}

type failingSink struct{ appended int }

func (f *failingSink) Append(context.Context, Record) error {
	f.appended++
	return errors.New("disk full")
}
func (f *failingSink) Close() error { return nil }

func TestMultiAppendsToAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.csv")
	csvSink, err := OpenCSV(path)
	require.NoError(t, err)
	bad := &failingSink{}

	m := Multi(bad, csvSink)
	err = m.Append(context.Background(), Record{Generation: 3, Best: 1, Mean: 1, Stdev: 0})
	require.ErrorContains(t, err, "disk full")
	require.NoError(t, m.Close())

	assert.Equal(t, 1, bad.appended)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3,1,1,0\n", string(data))
}
