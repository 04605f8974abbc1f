package metrics_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/kvapi"
	"github.com/QuenKar/databend/memkv"
	"github.com/QuenKar/databend/metrics"
)

type fakeCounter struct {
	count int
}

func (c *fakeCounter) Inc() {
	c.count++
}

type fakeFactory struct {
	counters map[string]*fakeCounter
}

func (f *fakeFactory) CreateCounter(name string, description string) (metrics.Counter, error) {
	counter := &fakeCounter{}
	f.counters[name] = counter
	return counter, nil
}

func (f *fakeFactory) Start() error { return nil }

func (f *fakeFactory) Stop() error { return nil }

func TestInstrumentedKVCountsAndForwards(t *testing.T) {
	factory := &fakeFactory{counters: map[string]*fakeCounter{}}
	store := memkv.NewStore()
	instrumented, err := metrics.NewInstrumentedKV(store, factory)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = instrumented.UpsertKV(ctx, kvapi.NewUpsertRequest("k", []byte("v")))
	require.NoError(t, err)
	_, err = instrumented.GetKV(ctx, "k")
	require.NoError(t, err)
	_, err = instrumented.GetKV(ctx, "k")
	require.NoError(t, err)
	_, err = instrumented.PrefixListKV(ctx, "")
	require.NoError(t, err)

	require.Equal(t, 1, factory.counters["kv_upserts_total"].count)
	require.Equal(t, 2, factory.counters["kv_gets_total"].count)
	require.Equal(t, 1, factory.counters["kv_prefix_lists_total"].count)
	require.Equal(t, 0, factory.counters["kv_transactions_total"].count)

	// the wrapped store saw the writes - instrumentation changes nothing
	got, err := store.GetKV(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got.Value))

	// errors pass through untransformed
	_, errDirect := store.PrefixListKV(ctx, "café")
	_, errWrapped := instrumented.PrefixListKV(ctx, "café")
	require.Equal(t, errDirect, errWrapped)
}
