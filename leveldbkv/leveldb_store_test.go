package leveldbkv_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/errors"
	"github.com/QuenKar/databend/kvapi"
	"github.com/QuenKar/databend/kvtest"
	"github.com/QuenKar/databend/leveldbkv"
)

func TestConformance(t *testing.T) {
	kvtest.Run(t, leveldbkv.NewBuilder(t.TempDir()))
}

func TestSeqSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := leveldbkv.NewStore(dir)
	require.NoError(t, err)
	_, err = store.UpsertKV(ctx, kvapi.NewUpsertRequest("a", []byte("1")))
	require.NoError(t, err)
	_, err = store.UpsertKV(ctx, kvapi.NewUpsertRequest("b", []byte("2")))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	store, err = leveldbkv.NewStore(dir)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, store.Close())
	}()

	got, err := store.GetKV(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, uint64(2), got.Seq)

	reply, err := store.UpsertKV(ctx, kvapi.NewUpsertRequest("c", []byte("3")))
	require.NoError(t, err)
	require.Equal(t, uint64(3), reply.Result.Seq)
}

func TestClosedStore(t *testing.T) {
	store, err := leveldbkv.NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = store.GetKV(context.Background(), "k")
	var metaErr errors.MetaError
	require.True(t, errors.As(err, &metaErr))
	require.Equal(t, errors.StoreClosed, metaErr.Code)
}
