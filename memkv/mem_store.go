package memkv

import (
	"context"
	"sync"

	"github.com/google/btree"

	"github.com/QuenKar/databend/kvapi"
)

// Store is an in-memory kvapi.KVApi implementation backed by a btree. It is
// used for tests and as the reference for the contract's semantics. All
// operations, including transactions, run under a single store-wide lock so
// they are trivially atomic.
type Store struct {
	mu   sync.RWMutex
	tree *btree.BTree
	seq  uint64
}

func NewStore() *Store {
	return &Store{tree: btree.New(3)}
}

type kvItem struct {
	key  string
	seqv kvapi.SeqV
}

func (i *kvItem) Less(than btree.Item) bool {
	other := than.(*kvItem) // nolint: forcetypeassert
	return i.key < other.key
}

func (s *Store) UpsertKV(ctx context.Context, req kvapi.UpsertRequest) (kvapi.UpsertReply, error) {
	if err := ctx.Err(); err != nil {
		return kvapi.UpsertReply{}, err
	}
	if err := kvapi.CheckAscii(req.Key); err != nil {
		return kvapi.UpsertReply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(req), nil
}

func (s *Store) upsertLocked(req kvapi.UpsertRequest) kvapi.UpsertReply {
	prev := s.getLocked(req.Key)
	if !req.Seq.Matches(seqOf(prev)) {
		// precondition failed - reply shows the unchanged current state
		return kvapi.UpsertReply{Prev: prev, Result: prev}
	}
	if req.Value.IsDelete() {
		if prev != nil {
			s.tree.Delete(&kvItem{key: req.Key})
		}
		return kvapi.UpsertReply{Prev: prev}
	}
	s.seq++
	seqv := kvapi.SeqV{Seq: s.seq, Value: copyBytes(req.Value.Bytes())}
	s.tree.ReplaceOrInsert(&kvItem{key: req.Key, seqv: seqv})
	result := seqv
	return kvapi.UpsertReply{Prev: prev, Result: &result}
}

func (s *Store) GetKV(ctx context.Context, key string) (kvapi.GetReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(key), nil
}

func (s *Store) MGetKV(ctx context.Context, keys []string) (kvapi.MGetReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	reply := make(kvapi.MGetReply, len(keys))
	for i, key := range keys {
		reply[i] = s.getLocked(key)
	}
	return reply, nil
}

func (s *Store) PrefixListKV(ctx context.Context, prefix string) (kvapi.ListReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start, end, err := kvapi.StartAndEndOfPrefix(prefix)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var reply kvapi.ListReply
	s.tree.AscendRange(&kvItem{key: start}, &kvItem{key: end}, func(i btree.Item) bool {
		item := i.(*kvItem) // nolint: forcetypeassert
		reply = append(reply, kvapi.KVPair{
			Key:   item.key,
			Value: kvapi.SeqV{Seq: item.seqv.Seq, Value: copyBytes(item.seqv.Value)},
		})
		return true
	})
	return reply, nil
}

func (s *Store) Transaction(ctx context.Context, txn kvapi.TxnRequest) (kvapi.TxnReply, error) {
	if err := ctx.Err(); err != nil {
		return kvapi.TxnReply{}, err
	}
	if err := checkTxnKeys(txn); err != nil {
		return kvapi.TxnReply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	success := true
	for _, cond := range txn.Condition {
		if !cond.Eval(s.getLocked(cond.Key)) {
			success = false
			break
		}
	}
	ops := txn.IfThen
	if !success {
		ops = txn.Else
	}
	responses := make([]kvapi.TxnOpResponse, 0, len(ops))
	for _, op := range ops {
		responses = append(responses, s.applyLocked(op))
	}
	return kvapi.TxnReply{Success: success, Responses: responses}, nil
}

func (s *Store) applyLocked(op kvapi.TxnOp) kvapi.TxnOpResponse {
	resp := kvapi.TxnOpResponse{Kind: op.Kind, Key: op.Key}
	switch op.Kind {
	case kvapi.TxnOpGet:
		resp.Value = s.getLocked(op.Key)
	case kvapi.TxnOpPut:
		reply := s.upsertLocked(kvapi.NewUpsertRequest(op.Key, op.Value))
		resp.Value = reply.Prev
	case kvapi.TxnOpDelete:
		reply := s.upsertLocked(kvapi.UpsertRequest{Key: op.Key, Value: kvapi.DeleteValue()})
		resp.Value = reply.Prev
	case kvapi.TxnOpDeleteByPrefix:
		// range bounds already validated by checkTxnKeys
		start, end, _ := kvapi.StartAndEndOfPrefix(op.Key)
		var doomed []string
		s.tree.AscendRange(&kvItem{key: start}, &kvItem{key: end}, func(i btree.Item) bool {
			doomed = append(doomed, i.(*kvItem).key) // nolint: forcetypeassert
			return true
		})
		for _, key := range doomed {
			s.tree.Delete(&kvItem{key: key})
		}
		resp.Count = uint64(len(doomed))
	}
	return resp
}

func (s *Store) getLocked(key string) *kvapi.SeqV {
	item := s.tree.Get(&kvItem{key: key})
	if item == nil {
		return nil
	}
	found := item.(*kvItem) // nolint: forcetypeassert
	return &kvapi.SeqV{Seq: found.seqv.Seq, Value: copyBytes(found.seqv.Value)}
}

func (s *Store) AsKVApi() kvapi.KVApi {
	return s
}

// checkTxnKeys validates every key and prefix of the request up front, so a
// branch can never fail part way through being applied.
func checkTxnKeys(txn kvapi.TxnRequest) error {
	for _, cond := range txn.Condition {
		if err := kvapi.CheckAscii(cond.Key); err != nil {
			return err
		}
	}
	for _, ops := range [][]kvapi.TxnOp{txn.IfThen, txn.Else} {
		for _, op := range ops {
			if err := kvapi.CheckAscii(op.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func seqOf(seqv *kvapi.SeqV) uint64 {
	if seqv == nil {
		return 0
	}
	return seqv.Seq
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
