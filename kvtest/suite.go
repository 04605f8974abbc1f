// Package kvtest is a conformance suite for kvapi.KVApi implementations.
// A store package runs it against its builder from a normal Go test:
//
//	func TestConformance(t *testing.T) {
//	    kvtest.Run(t, memkv.NewBuilder())
//	}
//
// Builders must yield empty, independent stores.
package kvtest

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/errors"
	"github.com/QuenKar/databend/kvapi"
)

// Run exercises every operation of the contract against stores built by
// builder.
func Run(t *testing.T, builder kvapi.ApiBuilder) {
	t.Helper()
	t.Run("UpsertGet", func(t *testing.T) { testUpsertGet(t, builder) })
	t.Run("UpsertCompareAndSwap", func(t *testing.T) { testCompareAndSwap(t, builder) })
	t.Run("UpsertDelete", func(t *testing.T) { testUpsertDelete(t, builder) })
	t.Run("MGet", func(t *testing.T) { testMGet(t, builder) })
	t.Run("PrefixList", func(t *testing.T) { testPrefixList(t, builder) })
	t.Run("TxnThenBranch", func(t *testing.T) { testTxnThenBranch(t, builder) })
	t.Run("TxnElseBranch", func(t *testing.T) { testTxnElseBranch(t, builder) })
	t.Run("TxnDeleteByPrefix", func(t *testing.T) { testTxnDeleteByPrefix(t, builder) })
	t.Run("TxnSeesOwnWrites", func(t *testing.T) { testTxnSeesOwnWrites(t, builder) })
	t.Run("AsciiKeysOnly", func(t *testing.T) { testAsciiKeysOnly(t, builder) })
	t.Run("DelegationTransparency", func(t *testing.T) { testDelegation(t, builder) })
	t.Run("CapabilityProjection", func(t *testing.T) { testProjection(t, builder) })
	t.Run("Cluster", func(t *testing.T) { testCluster(t, builder) })
	t.Run("Cancellation", func(t *testing.T) { testCancellation(t, builder) })
}

func build(t *testing.T, builder kvapi.ApiBuilder) kvapi.KVApi {
	t.Helper()
	store, err := builder.BuildOne(context.Background())
	require.NoError(t, err)
	closeOnCleanup(t, store)
	return store
}

func closeOnCleanup(t *testing.T, store kvapi.KVApi) {
	t.Helper()
	if closer, ok := store.(io.Closer); ok {
		t.Cleanup(func() {
			require.NoError(t, closer.Close())
		})
	}
}

func put(t *testing.T, store kvapi.KVApi, key string, value string) kvapi.UpsertReply {
	t.Helper()
	reply, err := store.UpsertKV(context.Background(), kvapi.NewUpsertRequest(key, []byte(value)))
	require.NoError(t, err)
	return reply
}

func testUpsertGet(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	reply := put(t, store, "somekey", "somevalue")
	require.Nil(t, reply.Prev)
	require.NotNil(t, reply.Result)
	require.Equal(t, uint64(1), reply.Result.Seq)
	require.Equal(t, "somevalue", string(reply.Result.Value))
	require.True(t, reply.Applied())

	got, err := store.GetKV(ctx, "somekey")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, uint64(1), got.Seq)
	require.Equal(t, "somevalue", string(got.Value))

	// missing key is not an error
	got, err = store.GetKV(ctx, "otherkey")
	require.NoError(t, err)
	require.Nil(t, got)

	// overwrite bumps the seq
	reply = put(t, store, "somekey", "newvalue")
	require.Equal(t, uint64(1), reply.Prev.Seq)
	require.Equal(t, uint64(2), reply.Result.Seq)
	require.Equal(t, "newvalue", string(reply.Result.Value))
}

func testCompareAndSwap(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	first := put(t, store, "k1", "v1")

	// matching seq - the write happens
	reply, err := store.UpsertKV(ctx, kvapi.UpsertRequest{
		Key:   "k1",
		Seq:   kvapi.MatchSeqExact(first.Result.Seq),
		Value: kvapi.PutValue([]byte("v2")),
	})
	require.NoError(t, err)
	require.True(t, reply.Applied())
	require.Equal(t, "v2", string(reply.Result.Value))

	// stale seq - no write, reply shows the unchanged current state
	reply, err = store.UpsertKV(ctx, kvapi.UpsertRequest{
		Key:   "k1",
		Seq:   kvapi.MatchSeqExact(first.Result.Seq),
		Value: kvapi.PutValue([]byte("v3")),
	})
	require.NoError(t, err)
	require.False(t, reply.Applied())
	require.Equal(t, "v2", string(reply.Result.Value))
	require.Equal(t, reply.Prev, reply.Result)

	got, err := store.GetKV(ctx, "k1")
	require.NoError(t, err)
	require.Equal(t, "v2", string(got.Value))

	// MatchSeqExact(0) is insert-only
	reply, err = store.UpsertKV(ctx, kvapi.UpsertRequest{
		Key:   "k1",
		Seq:   kvapi.MatchSeqExact(0),
		Value: kvapi.PutValue([]byte("v4")),
	})
	require.NoError(t, err)
	require.False(t, reply.Applied())

	reply, err = store.UpsertKV(ctx, kvapi.UpsertRequest{
		Key:   "k2",
		Seq:   kvapi.MatchSeqExact(0),
		Value: kvapi.PutValue([]byte("v1")),
	})
	require.NoError(t, err)
	require.True(t, reply.Applied())
}

func testUpsertDelete(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	put(t, store, "doomed", "value")

	reply, err := store.UpsertKV(ctx, kvapi.UpsertRequest{Key: "doomed", Value: kvapi.DeleteValue()})
	require.NoError(t, err)
	require.NotNil(t, reply.Prev)
	require.Nil(t, reply.Result)
	require.True(t, reply.Applied())

	got, err := store.GetKV(ctx, "doomed")
	require.NoError(t, err)
	require.Nil(t, got)

	// deleting a missing key is a no-op, not an error
	reply, err = store.UpsertKV(ctx, kvapi.UpsertRequest{Key: "doomed", Value: kvapi.DeleteValue()})
	require.NoError(t, err)
	require.Nil(t, reply.Prev)
	require.Nil(t, reply.Result)
	require.False(t, reply.Applied())
}

func testMGet(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	put(t, store, "a", "1")
	put(t, store, "b", "2")
	put(t, store, "c", "3")

	reply, err := store.MGetKV(ctx, []string{"c", "missing", "a"})
	require.NoError(t, err)
	require.Len(t, reply, 3)
	require.Equal(t, "3", string(reply[0].Value))
	require.Nil(t, reply[1])
	require.Equal(t, "1", string(reply[2].Value))
}

func testPrefixList(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	// "users" shares the first four bytes with "user/" but not the prefix
	put(t, store, "user/2", "u2")
	put(t, store, "users", "all")
	put(t, store, "user/1", "u1")
	put(t, store, "zz", "z")

	reply, err := store.PrefixListKV(ctx, "user/")
	require.NoError(t, err)
	require.Len(t, reply, 2)
	require.Equal(t, "user/1", reply[0].Key)
	require.Equal(t, "u1", string(reply[0].Value.Value))
	require.Equal(t, "user/2", reply[1].Key)
	require.Equal(t, "u2", string(reply[1].Value.Value))

	// empty prefix lists everything, ordered by key
	reply, err = store.PrefixListKV(ctx, "")
	require.NoError(t, err)
	require.Len(t, reply, 4)
	require.Equal(t, []string{"user/1", "user/2", "users", "zz"}, keysOf(reply))

	// no matches is an empty reply, not an error
	reply, err = store.PrefixListKV(ctx, "nothing/")
	require.NoError(t, err)
	require.Empty(t, reply)

	// non-ASCII prefix violates the contract
	_, err = store.PrefixListKV(ctx, "café")
	requireAsciiError(t, err)
}

func testTxnThenBranch(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	put(t, store, "balance", "100")

	reply, err := store.Transaction(ctx, kvapi.TxnRequest{
		Condition: []kvapi.TxnCondition{
			kvapi.ValueCondition("balance", kvapi.TxnExpectEQ, []byte("100")),
			kvapi.KeyAbsent("lock"),
		},
		IfThen: []kvapi.TxnOp{
			kvapi.TxnPut("balance", []byte("90")),
			kvapi.TxnPut("lock", []byte("held")),
			kvapi.TxnGet("balance"),
		},
		Else: []kvapi.TxnOp{
			kvapi.TxnGet("balance"),
		},
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.Len(t, reply.Responses, 3)

	// put responses carry the previous record
	require.Equal(t, kvapi.TxnOpPut, reply.Responses[0].Kind)
	require.Equal(t, "100", string(reply.Responses[0].Value.Value))
	require.Nil(t, reply.Responses[1].Value)

	// the get sees the branch's own write
	require.Equal(t, kvapi.TxnOpGet, reply.Responses[2].Kind)
	require.Equal(t, "90", string(reply.Responses[2].Value.Value))

	got, err := store.GetKV(ctx, "balance")
	require.NoError(t, err)
	require.Equal(t, "90", string(got.Value))
	got, err = store.GetKV(ctx, "lock")
	require.NoError(t, err)
	require.Equal(t, "held", string(got.Value))
}

func testTxnElseBranch(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	put(t, store, "balance", "50")

	reply, err := store.Transaction(ctx, kvapi.TxnRequest{
		Condition: []kvapi.TxnCondition{
			kvapi.ValueCondition("balance", kvapi.TxnExpectEQ, []byte("100")),
		},
		IfThen: []kvapi.TxnOp{
			kvapi.TxnPut("balance", []byte("90")),
		},
		Else: []kvapi.TxnOp{
			kvapi.TxnGet("balance"),
		},
	})
	require.NoError(t, err)

	// a failed condition is a normal outcome, not an error
	require.False(t, reply.Success)
	require.Len(t, reply.Responses, 1)
	require.Equal(t, "50", string(reply.Responses[0].Value.Value))

	// nothing from the then-branch was applied
	got, err := store.GetKV(ctx, "balance")
	require.NoError(t, err)
	require.Equal(t, "50", string(got.Value))
}

func testTxnDeleteByPrefix(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	put(t, store, "user/1", "u1")
	put(t, store, "user/2", "u2")
	put(t, store, "users", "all")

	reply, err := store.Transaction(ctx, kvapi.TxnRequest{
		IfThen: []kvapi.TxnOp{
			kvapi.TxnDeleteByPrefix("user/"),
		},
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.Equal(t, uint64(2), reply.Responses[0].Count)

	list, err := store.PrefixListKV(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"users"}, keysOf(list))
}

func testTxnSeesOwnWrites(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	reply, err := store.Transaction(ctx, kvapi.TxnRequest{
		IfThen: []kvapi.TxnOp{
			kvapi.TxnPut("tmp/a", []byte("a")),
			kvapi.TxnPut("tmp/b", []byte("b")),
			kvapi.TxnDeleteByPrefix("tmp/"),
			kvapi.TxnGet("tmp/a"),
		},
	})
	require.NoError(t, err)
	require.True(t, reply.Success)
	require.Equal(t, uint64(2), reply.Responses[2].Count)
	require.Nil(t, reply.Responses[3].Value)

	list, err := store.PrefixListKV(ctx, "tmp/")
	require.NoError(t, err)
	require.Empty(t, list)
}

func testAsciiKeysOnly(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	_, err := store.UpsertKV(ctx, kvapi.NewUpsertRequest("café", []byte("x")))
	requireAsciiError(t, err)

	_, err = store.Transaction(ctx, kvapi.TxnRequest{
		IfThen: []kvapi.TxnOp{kvapi.TxnPut("café", []byte("x"))},
	})
	requireAsciiError(t, err)
}

func testDelegation(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	handle := kvapi.NewKVHandle(store)
	ctx := context.Background()

	// a write through the handle is indistinguishable from a direct write
	reply, err := handle.UpsertKV(ctx, kvapi.NewUpsertRequest("k", []byte("v")))
	require.NoError(t, err)
	require.True(t, reply.Applied())

	direct, err := store.GetKV(ctx, "k")
	require.NoError(t, err)
	viaHandle, err := handle.GetKV(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, direct, viaHandle)

	directList, err := store.PrefixListKV(ctx, "")
	require.NoError(t, err)
	handleList, err := handle.PrefixListKV(ctx, "")
	require.NoError(t, err)
	require.Equal(t, directList, handleList)

	// errors pass through untransformed, at any indirection depth
	_, directErr := store.PrefixListKV(ctx, "café")
	_, handleErr := kvapi.NewKVHandle(kvapi.NewKVHandle(handle)).PrefixListKV(ctx, "café")
	require.Equal(t, directErr, handleErr)
}

func testProjection(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx := context.Background()

	asApi, ok := store.(kvapi.AsKVApi)
	require.True(t, ok, "store does not implement kvapi.AsKVApi")

	// the projected handle is the same store
	api := asApi.AsKVApi()
	_, err := api.UpsertKV(ctx, kvapi.NewUpsertRequest("k", []byte("v")))
	require.NoError(t, err)
	got, err := store.GetKV(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(got.Value))
}

func testCluster(t *testing.T, builder kvapi.ApiBuilder) {
	ctx := context.Background()
	stores, err := builder.BuildMany(ctx, 3)
	require.NoError(t, err)
	require.Len(t, stores, 3)
	for _, store := range stores {
		closeOnCleanup(t, store)
	}

	// each member is independently usable
	for i, store := range stores {
		_, err := store.UpsertKV(ctx, kvapi.NewUpsertRequest("node", []byte{byte('0' + i)}))
		require.NoError(t, err)
	}
	for i, store := range stores {
		got, err := store.GetKV(ctx, "node")
		require.NoError(t, err)
		require.Equal(t, []byte{byte('0' + i)}, got.Value)
	}
}

func testCancellation(t *testing.T, builder kvapi.ApiBuilder) {
	store := build(t, builder)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetKV(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
	_, err = store.UpsertKV(ctx, kvapi.NewUpsertRequest("k", []byte("v")))
	require.ErrorIs(t, err, context.Canceled)
}

func requireAsciiError(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	var metaErr errors.MetaError
	require.True(t, errors.As(err, &metaErr))
	require.Equal(t, errors.OnlySupportAsciiChars, metaErr.Code)
}

func keysOf(list kvapi.ListReply) []string {
	keys := make([]string, len(list))
	for i, pair := range list {
		keys[i] = pair.Key
	}
	return keys
}
