package metrics

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/ezdb/dialect"
	"github.com/syssam/ezdb/dialect/sql"
	"github.com/syssam/ezdb/schema/field"
)

func TestBackendMetrics(t *testing.T) {
	inner, err := sql.OpenBackend("sqlite", ":memory:")
	require.NoError(t, err)
	reg := prometheus.NewPedanticRegistry()
	b, err := New(inner, WithRegisterer(reg), WithNamespace("test"))
	require.NoError(t, err)
	ctx := context.Background()

	fields := []field.Descriptor{
		field.Int("id").AutoIncrement().Descriptor(),
		field.Varchar("name", 32).Descriptor(),
	}
	require.NoError(t, b.CreateTable(ctx, "user", fields, []string{"id"}, nil))
	for _, name := range []string{"Ann", "Bob"} {
		_, err := b.Insert(ctx, "user", dialect.Values{"name": name})
		require.NoError(t, err)
	}
	_, err = b.Insert(ctx, "missing", dialect.Values{"name": "x"})
	require.Error(t, err)

	rows, err := b.Select(ctx, "user", nil, nil, nil, 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NoError(t, b.Close())

	assert.Equal(t, 1.0, testutil.ToFloat64(b.calls.WithLabelValues(OpCreateTable, "user", ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.calls.WithLabelValues(OpInsert, "user", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.calls.WithLabelValues(OpInsert, "missing", ResultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(b.calls.WithLabelValues(OpClose, "", ResultOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(b.rows.WithLabelValues("user")))

	n, err := testutil.GatherAndCount(reg, "test_backend_calls_total", "test_backend_call_duration_seconds")
	require.NoError(t, err)
	// Counters: create_table, insert ok, insert error, select, close.
	// Histograms: create_table, insert, select, close.
	assert.Equal(t, 5+4, n)
	assert.Same(t, inner, b.Unwrap())
}

func TestNewReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := New(nil, WithRegisterer(reg))
	require.NoError(t, err)
	second, err := New(nil, WithRegisterer(reg))
	require.NoError(t, err)
	assert.Same(t, first.calls, second.calls)
	assert.Same(t, first.duration, second.duration)

	// A collector with the same name but other labels conflicts.
	clash := prometheus.NewCounter(prometheus.CounterOpts{Name: "other_backend_calls_total", Help: "clash"})
	require.NoError(t, reg.Register(clash))
	_, err = New(nil, WithRegisterer(reg), WithNamespace("other"))
	require.Error(t, err)
}
