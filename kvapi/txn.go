package kvapi

import (
	"bytes"
)

// TxnExpect is the comparison applied by a transaction condition.
type TxnExpect int

const (
	TxnExpectEQ TxnExpect = iota
	TxnExpectNE
	TxnExpectLT
	TxnExpectLE
	TxnExpectGT
	TxnExpectGE
)

type txnTargetKind int

const (
	targetSeq txnTargetKind = iota
	targetValue
)

// TxnCondition compares the current state of one key against an expected seq
// or an expected value. A key that does not exist has seq 0 and a nil value.
type TxnCondition struct {
	Key    string
	Expect TxnExpect

	target txnTargetKind
	seq    uint64
	value  []byte
}

// SeqCondition compares the key's current seq against seq.
func SeqCondition(key string, expect TxnExpect, seq uint64) TxnCondition {
	return TxnCondition{Key: key, Expect: expect, target: targetSeq, seq: seq}
}

// ValueCondition compares the key's current value bytes against value.
func ValueCondition(key string, expect TxnExpect, value []byte) TxnCondition {
	return TxnCondition{Key: key, Expect: expect, target: targetValue, value: value}
}

// KeyExists is shorthand for "the key has been written at least once".
func KeyExists(key string) TxnCondition {
	return SeqCondition(key, TxnExpectGE, 1)
}

// KeyAbsent is shorthand for "the key does not exist".
func KeyAbsent(key string) TxnCondition {
	return SeqCondition(key, TxnExpectEQ, 0)
}

// Eval returns whether the condition holds for the key's current record.
// Pass nil for a key that does not exist. Every store implementation
// evaluates conditions through this method so the comparison semantics
// cannot drift between backends.
func (c TxnCondition) Eval(cur *SeqV) bool {
	if c.target == targetSeq {
		var curSeq uint64
		if cur != nil {
			curSeq = cur.Seq
		}
		return compareInt(curSeq, c.seq, c.Expect)
	}
	var curValue []byte
	if cur != nil {
		curValue = cur.Value
	}
	return compareOrdering(bytes.Compare(curValue, c.value), c.Expect)
}

func compareInt(cur uint64, expected uint64, expect TxnExpect) bool {
	switch {
	case cur < expected:
		return compareOrdering(-1, expect)
	case cur > expected:
		return compareOrdering(1, expect)
	default:
		return compareOrdering(0, expect)
	}
}

func compareOrdering(ord int, expect TxnExpect) bool {
	switch expect {
	case TxnExpectEQ:
		return ord == 0
	case TxnExpectNE:
		return ord != 0
	case TxnExpectLT:
		return ord < 0
	case TxnExpectLE:
		return ord <= 0
	case TxnExpectGT:
		return ord > 0
	case TxnExpectGE:
		return ord >= 0
	default:
		return false
	}
}

// TxnOpKind identifies one operation inside a transaction branch.
type TxnOpKind int

const (
	TxnOpGet TxnOpKind = iota
	TxnOpPut
	TxnOpDelete
	TxnOpDeleteByPrefix
)

// TxnOp is one operation of a transaction branch. Key is the target key, or
// the prefix for TxnOpDeleteByPrefix. Value is only set for TxnOpPut.
type TxnOp struct {
	Kind  TxnOpKind
	Key   string
	Value []byte
}

func TxnGet(key string) TxnOp {
	return TxnOp{Kind: TxnOpGet, Key: key}
}

func TxnPut(key string, value []byte) TxnOp {
	return TxnOp{Kind: TxnOpPut, Key: key, Value: value}
}

func TxnDelete(key string) TxnOp {
	return TxnOp{Kind: TxnOpDelete, Key: key}
}

func TxnDeleteByPrefix(prefix string) TxnOp {
	return TxnOp{Kind: TxnOpDeleteByPrefix, Key: prefix}
}

// TxnRequest is a batch of conditioned operations applied as one atomic unit.
// If every condition holds the IfThen operations are applied, otherwise the
// Else operations. Whichever branch runs, all of its operations take effect
// together or not at all.
type TxnRequest struct {
	Condition []TxnCondition
	IfThen    []TxnOp
	Else      []TxnOp
}

// TxnOpResponse is the outcome of one branch operation. For a get, Value is
// the current record. For a put or delete, Value is the record as it was
// before the operation. For a delete-by-prefix, Count is the number of
// records removed.
type TxnOpResponse struct {
	Kind  TxnOpKind
	Key   string
	Value *SeqV
	Count uint64
}

// TxnReply reports which branch ran and the per-operation outcomes of that
// branch, in operation order.
type TxnReply struct {
	Success   bool
	Responses []TxnOpResponse
}
