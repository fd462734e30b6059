package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_SampleRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	temp := 62.5
	samples := []Sample{
		{TS: 100, Host: "a", CPUPct: 30, MemPct: 40, SwapPct: 5, DiskReadBPS: 1e5, DiskWriteBPS: 2e5, NetUpBPS: 1e6, NetDownBPS: 5e6, ProcCount: 200, CPUTemp: &temp},
		{TS: 101, Host: "a", CPUPct: 31, MemPct: 41},
		{TS: 102, Host: "b", CPUPct: 90, MemPct: 80},
	}

	n, err := s.WriteSamples(ctx, samples)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got, err := s.ReadSamples(ctx, 100, 102, "a")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(100), got[0].TS)
	assert.Equal(t, int64(101), got[1].TS, "samples come back in ascending ts order")
	require.NotNil(t, got[0].CPUTemp)
	assert.Equal(t, 62.5, *got[0].CPUTemp)
	assert.Nil(t, got[1].CPUTemp)

	all, err := s.ReadSamples(ctx, 100, 102, "")
	require.NoError(t, err)
	assert.Len(t, all, 3, "empty host matches all hosts")

	empty, err := s.ReadSamples(ctx, 500, 600, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSQLiteStore_WriteSamplesEmpty(t *testing.T) {
	s := openTestStore(t)
	n, err := s.WriteSamples(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteStore_PruneSamples(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	old := time.Now().UTC().AddDate(0, 0, -10).Unix()
	recent := time.Now().UTC().Unix()
	_, err := s.WriteSamples(ctx, []Sample{
		{TS: old, Host: "a"},
		{TS: recent, Host: "a"},
	})
	require.NoError(t, err)

	removed, err := s.PruneSamples(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	kept, err := s.ReadSamples(ctx, 0, recent+1, "")
	require.NoError(t, err)
	require.Len(t, kept, 1)
	assert.Equal(t, recent, kept[0].TS)
}

func TestSQLiteStore_ModelUpsert(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	missing, err := s.LoadModel(ctx, "isolation_forest")
	require.NoError(t, err)
	assert.Nil(t, missing, "absent model is nil, nil")

	require.NoError(t, s.SaveModel(ctx, &ModelRecord{
		Name:    "isolation_forest",
		Algo:    "isolation_forest",
		Version: "v1",
		Meta:    `{"threshold":-0.6}`,
		Blob:    []byte("first"),
	}))
	require.NoError(t, s.SaveModel(ctx, &ModelRecord{
		Name:    "isolation_forest",
		Algo:    "isolation_forest",
		Version: "v2",
		Blob:    []byte("second"),
	}))

	rec, err := s.LoadModel(ctx, "isolation_forest")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "v2", rec.Version, "save replaces the previous row wholesale")
	assert.Equal(t, []byte("second"), rec.Blob)
	assert.False(t, rec.TrainedAt.IsZero())
}

func TestSQLiteStore_SaveModelsIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveModels(ctx,
		&ModelRecord{Name: "feature_pipeline", Algo: "feature_pipeline", Version: "v1", Blob: []byte("p1")},
		&ModelRecord{Name: "isolation_forest", Algo: "isolation_forest", Version: "v1", Blob: []byte("s1")},
	))

	// A nil blob violates the NOT NULL constraint; the whole set must roll
	// back, leaving the matched v1 pair in place.
	err := s.SaveModels(ctx,
		&ModelRecord{Name: "feature_pipeline", Algo: "feature_pipeline", Version: "v2", Blob: []byte("p2")},
		&ModelRecord{Name: "isolation_forest", Algo: "isolation_forest", Version: "v2"},
	)
	require.Error(t, err)

	pipeline, err := s.LoadModel(ctx, "feature_pipeline")
	require.NoError(t, err)
	require.NotNil(t, pipeline)
	scorer, err := s.LoadModel(ctx, "isolation_forest")
	require.NoError(t, err)
	require.NotNil(t, scorer)

	assert.Equal(t, "v1", pipeline.Version, "failed set must not partially replace")
	assert.Equal(t, "v1", scorer.Version)
	assert.Equal(t, []byte("p1"), pipeline.Blob)
}

func TestSQLiteStore_Events(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	id1, err := s.WriteEvent(ctx, &EventRecord{TS: 100, Type: "anomaly", Score: -0.8, MetricTags: "cpu_pct", Explanation: "x"})
	require.NoError(t, err)
	id2, err := s.WriteEvent(ctx, &EventRecord{TS: 200, Type: "forecast", Score: 0, MetricTags: "mem_pct", Explanation: "y"})
	require.NoError(t, err)
	assert.NotEqual(t, id1, id2)

	events, err := s.ReadEvents(ctx, 0, 300, "")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(200), events[0].TS, "events come back newest first")

	anomalies, err := s.ReadEvents(ctx, 0, 300, "anomaly")
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	assert.Equal(t, "cpu_pct", anomalies[0].MetricTags)
}

func TestSQLiteStore_Ping(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}
