package memkv_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/kvapi"
	"github.com/QuenKar/databend/kvtest"
	"github.com/QuenKar/databend/memkv"
)

func TestConformance(t *testing.T) {
	kvtest.Run(t, memkv.NewBuilder())
}

func TestConcurrentUpserts(t *testing.T) {
	store := memkv.NewStore()
	ctx := context.Background()

	numWriters := 10
	writesPerWriter := 100
	var wg sync.WaitGroup
	wg.Add(numWriters)
	for w := 0; w < numWriters; w++ {
		go func(w int) {
			defer wg.Done()
			for i := 0; i < writesPerWriter; i++ {
				key := fmt.Sprintf("w%02d/%03d", w, i)
				_, err := store.UpsertKV(ctx, kvapi.NewUpsertRequest(key, []byte(key)))
				require.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	list, err := store.PrefixListKV(ctx, "")
	require.NoError(t, err)
	require.Len(t, list, numWriters*writesPerWriter)

	// seqs are unique, the highest equals the number of writes
	seen := make(map[uint64]struct{}, len(list))
	var highest uint64
	for _, pair := range list {
		_, dup := seen[pair.Value.Seq]
		require.False(t, dup, "duplicate seq %d", pair.Value.Seq)
		seen[pair.Value.Seq] = struct{}{}
		if pair.Value.Seq > highest {
			highest = pair.Value.Seq
		}
	}
	require.Equal(t, uint64(numWriters*writesPerWriter), highest)
}

func TestRepliesDoNotAliasStoreState(t *testing.T) {
	store := memkv.NewStore()
	ctx := context.Background()

	_, err := store.UpsertKV(ctx, kvapi.NewUpsertRequest("k", []byte("value")))
	require.NoError(t, err)

	got, err := store.GetKV(ctx, "k")
	require.NoError(t, err)
	got.Value[0] = 'X'

	again, err := store.GetKV(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "value", string(again.Value))
}
