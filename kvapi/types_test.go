package kvapi

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchSeq(t *testing.T) {
	require.True(t, MatchSeqAny().Matches(0))
	require.True(t, MatchSeqAny().Matches(42))

	// zero value matches anything
	var m MatchSeq
	require.True(t, m.Matches(0))
	require.True(t, m.Matches(7))

	require.True(t, MatchSeqExact(3).Matches(3))
	require.False(t, MatchSeqExact(3).Matches(4))
	require.False(t, MatchSeqExact(3).Matches(0))

	// exact 0 means "must not exist"
	require.True(t, MatchSeqExact(0).Matches(0))
	require.False(t, MatchSeqExact(0).Matches(1))

	require.True(t, MatchSeqGE(1).Matches(1))
	require.True(t, MatchSeqGE(1).Matches(100))
	require.False(t, MatchSeqGE(1).Matches(0))
}

func TestUpsertReplyApplied(t *testing.T) {
	seqv1 := &SeqV{Seq: 1, Value: []byte("v")}
	seqv2 := &SeqV{Seq: 2, Value: []byte("v2")}

	require.True(t, UpsertReply{Prev: nil, Result: seqv1}.Applied())
	require.True(t, UpsertReply{Prev: seqv1, Result: seqv2}.Applied())
	require.True(t, UpsertReply{Prev: seqv1, Result: nil}.Applied())
	require.False(t, UpsertReply{}.Applied())
	require.False(t, UpsertReply{Prev: seqv1, Result: seqv1}.Applied())
}

func TestTxnConditionEval(t *testing.T) {
	cur := &SeqV{Seq: 5, Value: []byte("bbb")}

	require.True(t, SeqCondition("k", TxnExpectEQ, 5).Eval(cur))
	require.False(t, SeqCondition("k", TxnExpectEQ, 4).Eval(cur))
	require.True(t, SeqCondition("k", TxnExpectGT, 4).Eval(cur))
	require.True(t, SeqCondition("k", TxnExpectLE, 5).Eval(cur))
	require.False(t, SeqCondition("k", TxnExpectLT, 5).Eval(cur))

	require.True(t, ValueCondition("k", TxnExpectEQ, []byte("bbb")).Eval(cur))
	require.True(t, ValueCondition("k", TxnExpectGT, []byte("aaa")).Eval(cur))
	require.True(t, ValueCondition("k", TxnExpectLT, []byte("ccc")).Eval(cur))
	require.False(t, ValueCondition("k", TxnExpectNE, []byte("bbb")).Eval(cur))

	// a missing key has seq 0 and nil value
	require.True(t, KeyAbsent("k").Eval(nil))
	require.False(t, KeyExists("k").Eval(nil))
	require.True(t, KeyExists("k").Eval(cur))
	require.True(t, ValueCondition("k", TxnExpectLT, []byte("a")).Eval(nil))
}
