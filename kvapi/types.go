package kvapi

import (
	"fmt"
)

// SeqV is a sequence-versioned value. Seq is unique within a store and
// increases with every successful write, so it doubles as a cheap version
// number for compare-and-swap.
type SeqV struct {
	Seq   uint64
	Value []byte
}

// KVPair is one (key, record) entry of a prefix list reply.
type KVPair struct {
	Key   string
	Value SeqV
}

// GetReply is the result of a single key lookup. Nil means the key does not
// exist.
type GetReply = *SeqV

// MGetReply holds one entry per requested key, in request order.
type MGetReply = []*SeqV

// ListReply holds the entries of a prefix scan, ordered by byte value of the
// key.
type ListReply = []KVPair

type matchSeqKind int

const (
	matchSeqAny matchSeqKind = iota
	matchSeqExact
	matchSeqGE
)

// MatchSeq is a precondition on the current seq of a record. The seq of a
// record that does not exist is 0, so MatchSeqExact(0) means "must not exist"
// and MatchSeqGE(1) means "must exist".
//
// The zero value matches any seq.
type MatchSeq struct {
	kind matchSeqKind
	seq  uint64
}

// MatchSeqAny matches any state of the record, including absent.
func MatchSeqAny() MatchSeq {
	return MatchSeq{kind: matchSeqAny}
}

// MatchSeqExact matches only a record whose current seq is exactly seq.
func MatchSeqExact(seq uint64) MatchSeq {
	return MatchSeq{kind: matchSeqExact, seq: seq}
}

// MatchSeqGE matches a record whose current seq is at least seq.
func MatchSeqGE(seq uint64) MatchSeq {
	return MatchSeq{kind: matchSeqGE, seq: seq}
}

// Matches returns whether a record with current seq curSeq satisfies the
// precondition. Pass 0 for a record that does not exist.
func (m MatchSeq) Matches(curSeq uint64) bool {
	switch m.kind {
	case matchSeqExact:
		return curSeq == m.seq
	case matchSeqGE:
		return curSeq >= m.seq
	default:
		return true
	}
}

func (m MatchSeq) String() string {
	switch m.kind {
	case matchSeqExact:
		return fmt.Sprintf("== %d", m.seq)
	case matchSeqGE:
		return fmt.Sprintf(">= %d", m.seq)
	default:
		return "any"
	}
}

type valueOpKind int

const (
	valueOpPut valueOpKind = iota
	valueOpDelete
)

// ValueOp says what an upsert does to the record: store a new value or remove
// the record.
type ValueOp struct {
	kind  valueOpKind
	value []byte
}

// PutValue stores value as the record's new value.
func PutValue(value []byte) ValueOp {
	return ValueOp{kind: valueOpPut, value: value}
}

// DeleteValue removes the record.
func DeleteValue() ValueOp {
	return ValueOp{kind: valueOpDelete}
}

func (o ValueOp) IsDelete() bool {
	return o.kind == valueOpDelete
}

func (o ValueOp) Bytes() []byte {
	return o.value
}

// UpsertRequest asks a store to create, overwrite or delete one record,
// guarded by an optional seq precondition.
type UpsertRequest struct {
	Key   string
	Seq   MatchSeq
	Value ValueOp
}

// NewUpsertRequest is the common case: unconditionally store value under key.
func NewUpsertRequest(key string, value []byte) UpsertRequest {
	return UpsertRequest{Key: key, Seq: MatchSeqAny(), Value: PutValue(value)}
}

// UpsertReply reports the record before and after the upsert. Nil means the
// record did not exist on that side. If the precondition failed, Prev and
// Result both describe the unchanged current record.
type UpsertReply struct {
	Prev   *SeqV
	Result *SeqV
}

// Applied returns whether the write took effect. A precondition failure or a
// delete of a missing key leaves the state unchanged.
func (r UpsertReply) Applied() bool {
	if r.Prev == nil && r.Result == nil {
		return false
	}
	if r.Prev == nil || r.Result == nil {
		return true
	}
	return r.Prev.Seq != r.Result.Seq
}
