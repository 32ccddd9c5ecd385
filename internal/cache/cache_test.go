package cache

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type section struct {
	RunID  string          `json:"run_id"`
	Amount decimal.Decimal `json:"amount"`
	At     time.Time       `json:"at"`
	Counts map[string]int  `json:"counts"`
}

func sample() section {
	return section{
		RunID:  "run-1",
		Amount: decimal.RequireFromString("1234.56"),
		At:     time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		Counts: map[string]int{"received": 3, "pending": 1},
	}
}

func storeRoundTrip(t *testing.T, s Store) {
	ctx := context.Background()

	var missing section
	ok, err := s.Load(ctx, "metadata", &missing)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "metadata", sample()))

	var got section
	ok, err = s.Load(ctx, "metadata", &got)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", got.RunID)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("1234.56")))
	assert.True(t, got.At.Equal(sample().At))
	assert.Equal(t, 3, got.Counts["received"])

	require.NoError(t, s.ClearAll(ctx))
	ok, err = s.Load(ctx, "metadata", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)
	storeRoundTrip(t, s)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Save(context.Background(), "cashflow", sample()))
	require.NoError(t, s.Save(context.Background(), "cashflow", sample()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cashflow.json", entries[0].Name())
}

func TestFileStoreClearKeepsForeignFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("keep"), 0o600))
	require.NoError(t, s.Save(context.Background(), "releases", sample()))

	require.NoError(t, s.ClearAll(context.Background()))

	_, err = os.Stat(filepath.Join(dir, "notes.txt"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "releases.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestRedisStoreRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore(mr.Addr(), "test", 0)
	require.NoError(t, err)
	defer s.Close()

	storeRoundTrip(t, s)
	assert.False(t, mr.Exists("test:sections"))
}

func TestRedisStoreAppliesTTL(t *testing.T) {
	mr := miniredis.RunT(t)
	s, err := NewRedisStore("redis://"+mr.Addr(), "", 2*time.Hour)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(context.Background(), "settlement", sample()))
	assert.True(t, mr.Exists("reconciler:section:settlement"))
	assert.Equal(t, 2*time.Hour, mr.TTL("reconciler:section:settlement"))
}

func TestParseRedisURL(t *testing.T) {
	opts, err := parseRedisURL("redis:6379")
	require.NoError(t, err)
	assert.Equal(t, "redis:6379", opts.Addr)

	opts, err = parseRedisURL("redis://:secret@localhost:6380")
	require.NoError(t, err)
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)

	_, err = parseRedisURL(" ")
	assert.Error(t, err)
}

type awkward struct {
	Ratio   float64            `json:"ratio"`
	Values  []float64          `json:"values"`
	Signal  chan int           `json:"signal"`
	Hook    func()             `json:"hook,omitempty"`
	Phase   complex128         `json:"phase"`
	Amount  decimal.Decimal    `json:"amount"`
	Nested  map[string]float64 `json:"nested"`
	Skipped string             `json:"-"`
	hidden  int
}

func TestSaveCoercesUnencodableValues(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	v := awkward{
		Ratio:   math.NaN(),
		Values:  []float64{1.5, math.Inf(1)},
		Signal:  make(chan int),
		Phase:   complex(1, 2),
		Amount:  decimal.RequireFromString("10.50"),
		Nested:  map[string]float64{"x": math.Inf(-1)},
		Skipped: "gone",
		hidden:  1,
	}
	require.NoError(t, s.Save(context.Background(), "reconciliation", v))

	var got map[string]interface{}
	ok, err := s.Load(context.Background(), "reconciliation", &got)
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, "NaN", got["ratio"])
	assert.Equal(t, []interface{}{1.5, "+Inf"}, got["values"])
	assert.IsType(t, "", got["signal"])
	assert.Equal(t, "(1+2i)", got["phase"])
	assert.Equal(t, "10.5", got["amount"])
	assert.Equal(t, map[string]interface{}{"x": "-Inf"}, got["nested"])
	assert.NotContains(t, got, "hook")
	assert.NotContains(t, got, "Skipped")
	assert.NotContains(t, got, "hidden")
}
