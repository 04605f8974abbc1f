package pebblekv

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"
	log "github.com/sirupsen/logrus"

	"github.com/QuenKar/databend/common"
	"github.com/QuenKar/databend/errors"
	"github.com/QuenKar/databend/kvapi"
)

// On disk, user records live under dataPrefix and the seq counter under
// seqKey, so internal state can never leak into a user prefix scan.
const (
	dataPrefix = "kv/"
	seqKey     = "sm/seq"
)

// Store is a kvapi.KVApi implementation backed by a local pebble instance.
// Records are encoded as a little-endian seq followed by the raw value bytes.
// A store-wide mutex serializes writes, which is what makes compare-and-swap
// and transaction branches atomic; each write batch is applied with sync so a
// branch is also all-or-nothing across restarts.
type Store struct {
	mu     sync.RWMutex
	db     *pebble.DB
	seq    uint64
	closed bool
}

func NewStore(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &Store{db: db}
	if err := s.loadSeq(); err != nil {
		// best effort close, the open itself failed logically
		if cerr := db.Close(); cerr != nil {
			log.Errorf("failed to close pebble after bad open %v", cerr)
		}
		return nil, err
	}
	log.Debugf("Opened pebble kv store at %s, seq %d", dir, s.seq)
	return s, nil
}

func (s *Store) loadSeq() error {
	v, closer, err := s.db.Get([]byte(seqKey))
	if err == pebble.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}
	s.seq, _ = common.ReadUint64FromBufferLE(v, 0)
	return errors.WithStack(closer.Close())
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.WithStack(s.db.Close())
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
	if s.closed {
		return kvapi.UpsertReply{}, errors.NewStoreClosedError("pebble")
	}
	prev, err := s.get(req.Key)
	if err != nil {
		return kvapi.UpsertReply{}, err
	}
	if !req.Seq.Matches(seqOf(prev)) {
		return kvapi.UpsertReply{Prev: prev, Result: prev}, nil
	}
	batch := s.db.NewBatch()
	defer closeBatch(batch)
	if req.Value.IsDelete() {
		if prev == nil {
			return kvapi.UpsertReply{}, nil
		}
		if err := batch.Delete(dataKey(req.Key), nil); err != nil {
			return kvapi.UpsertReply{}, errors.WithStack(err)
		}
		if err := s.db.Apply(batch, pebble.Sync); err != nil {
			return kvapi.UpsertReply{}, errors.WithStack(err)
		}
		return kvapi.UpsertReply{Prev: prev}, nil
	}
	seqv := kvapi.SeqV{Seq: s.seq + 1, Value: req.Value.Bytes()}
	if err := batch.Set(dataKey(req.Key), encodeSeqV(seqv), nil); err != nil {
		return kvapi.UpsertReply{}, errors.WithStack(err)
	}
	if err := batch.Set([]byte(seqKey), common.AppendUint64ToBufferLE(nil, seqv.Seq), nil); err != nil {
		return kvapi.UpsertReply{}, errors.WithStack(err)
	}
	if err := s.db.Apply(batch, pebble.Sync); err != nil {
		return kvapi.UpsertReply{}, errors.WithStack(err)
	}
	s.seq = seqv.Seq
	result := seqv
	return kvapi.UpsertReply{Prev: prev, Result: &result}, nil
}

func (s *Store) GetKV(ctx context.Context, key string) (kvapi.GetReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.NewStoreClosedError("pebble")
	}
	return s.get(key)
}

func (s *Store) MGetKV(ctx context.Context, keys []string) (kvapi.MGetReply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.NewStoreClosedError("pebble")
	}
	reply := make(kvapi.MGetReply, len(keys))
	for i, key := range keys {
		seqv, err := s.get(key)
		if err != nil {
			return nil, err
		}
		reply[i] = seqv
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
	if s.closed {
		return nil, errors.NewStoreClosedError("pebble")
	}
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: dataKey(start),
		UpperBound: dataKey(end),
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	var reply kvapi.ListReply
	for iter.First(); iter.Valid(); iter.Next() {
		key := string(iter.Key()[len(dataPrefix):])
		seqv, err := decodeSeqV(iter.Value())
		if err != nil {
			closeIter(iter)
			return nil, err
		}
		reply = append(reply, kvapi.KVPair{Key: key, Value: seqv})
	}
	if err := iter.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return reply, nil
}

func (s *Store) Transaction(ctx context.Context, txn kvapi.TxnRequest) (kvapi.TxnReply, error) {
	if err := ctx.Err(); err != nil {
		return kvapi.TxnReply{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return kvapi.TxnReply{}, errors.NewStoreClosedError("pebble")
	}
	run := txnRun{store: s, pending: map[string]*kvapi.SeqV{}}
	return run.execute(txn)
}

// txnRun accumulates one transaction branch into a single write batch.
// Reads during the branch consult pending before the database, so a later
// operation sees the effect of an earlier one, while nothing reaches disk
// until the whole branch is applied in one sync batch.
type txnRun struct {
	store   *Store
	batch   *pebble.Batch
	seq     uint64
	pending map[string]*kvapi.SeqV // nil entry = deleted in this branch
}

func (r *txnRun) execute(txn kvapi.TxnRequest) (kvapi.TxnReply, error) {
	if err := checkTxnKeys(txn); err != nil {
		return kvapi.TxnReply{}, err
	}
	success := true
	for _, cond := range txn.Condition {
		cur, err := r.store.get(cond.Key)
		if err != nil {
			return kvapi.TxnReply{}, err
		}
		if !cond.Eval(cur) {
			success = false
			break
		}
	}
	ops := txn.IfThen
	if !success {
		ops = txn.Else
	}
	r.batch = r.store.db.NewBatch()
	defer closeBatch(r.batch)
	r.seq = r.store.seq
	responses := make([]kvapi.TxnOpResponse, 0, len(ops))
	for _, op := range ops {
		resp, err := r.apply(op)
		if err != nil {
			return kvapi.TxnReply{}, err
		}
		responses = append(responses, resp)
	}
	if !r.batch.Empty() {
		if r.seq != r.store.seq {
			if err := r.batch.Set([]byte(seqKey), common.AppendUint64ToBufferLE(nil, r.seq), nil); err != nil {
				return kvapi.TxnReply{}, errors.WithStack(err)
			}
		}
		if err := r.store.db.Apply(r.batch, pebble.Sync); err != nil {
			return kvapi.TxnReply{}, errors.WithStack(err)
		}
		r.store.seq = r.seq
	}
	return kvapi.TxnReply{Success: success, Responses: responses}, nil
}

func (r *txnRun) apply(op kvapi.TxnOp) (kvapi.TxnOpResponse, error) {
	resp := kvapi.TxnOpResponse{Kind: op.Kind, Key: op.Key}
	switch op.Kind {
	case kvapi.TxnOpGet:
		cur, err := r.get(op.Key)
		if err != nil {
			return resp, err
		}
		resp.Value = cur
	case kvapi.TxnOpPut:
		prev, err := r.get(op.Key)
		if err != nil {
			return resp, err
		}
		r.seq++
		seqv := &kvapi.SeqV{Seq: r.seq, Value: op.Value}
		if err := r.batch.Set(dataKey(op.Key), encodeSeqV(*seqv), nil); err != nil {
			return resp, errors.WithStack(err)
		}
		r.pending[op.Key] = seqv
		resp.Value = prev
	case kvapi.TxnOpDelete:
		prev, err := r.get(op.Key)
		if err != nil {
			return resp, err
		}
		if prev != nil {
			if err := r.batch.Delete(dataKey(op.Key), nil); err != nil {
				return resp, errors.WithStack(err)
			}
			r.pending[op.Key] = nil
		}
		resp.Value = prev
	case kvapi.TxnOpDeleteByPrefix:
		count, err := r.deleteByPrefix(op.Key)
		if err != nil {
			return resp, err
		}
		resp.Count = count
	}
	return resp, nil
}

func (r *txnRun) get(key string) (*kvapi.SeqV, error) {
	if seqv, ok := r.pending[key]; ok {
		return seqv, nil
	}
	return r.store.get(key)
}

func (r *txnRun) deleteByPrefix(prefix string) (uint64, error) {
	start, end, err := kvapi.StartAndEndOfPrefix(prefix)
	if err != nil {
		return 0, err
	}
	doomed := map[string]struct{}{}
	iter, err := r.store.db.NewIter(&pebble.IterOptions{
		LowerBound: dataKey(start),
		UpperBound: dataKey(end),
	})
	if err != nil {
		return 0, errors.WithStack(err)
	}
	for iter.First(); iter.Valid(); iter.Next() {
		doomed[string(iter.Key()[len(dataPrefix):])] = struct{}{}
	}
	if err := iter.Close(); err != nil {
		return 0, errors.WithStack(err)
	}
	// include keys written earlier in this branch, drop keys it deleted
	for key, seqv := range r.pending {
		if key < start || key >= end {
			continue
		}
		if seqv == nil {
			delete(doomed, key)
		} else {
			doomed[key] = struct{}{}
		}
	}
	for key := range doomed {
		if err := r.batch.Delete(dataKey(key), nil); err != nil {
			return 0, errors.WithStack(err)
		}
		r.pending[key] = nil
	}
	return uint64(len(doomed)), nil
}

func (s *Store) AsKVApi() kvapi.KVApi {
	return s
}

func (s *Store) get(key string) (*kvapi.SeqV, error) {
	v, closer, err := s.db.Get(dataKey(key))
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	seqv, err := decodeSeqV(v)
	if err != nil {
		return nil, err
	}
	if err := closer.Close(); err != nil {
		return nil, errors.WithStack(err)
	}
	return &seqv, nil
}

func dataKey(key string) []byte {
	return append([]byte(dataPrefix), key...)
}

func encodeSeqV(seqv kvapi.SeqV) []byte {
	buff := common.AppendUint64ToBufferLE(make([]byte, 0, 8+len(seqv.Value)), seqv.Seq)
	return append(buff, seqv.Value...)
}

func decodeSeqV(buff []byte) (kvapi.SeqV, error) {
	if len(buff) < 8 {
		return kvapi.SeqV{}, errors.Errorf("corrupt kv record, %d bytes", len(buff))
	}
	seq, offset := common.ReadUint64FromBufferLE(buff, 0)
	value := make([]byte, len(buff)-offset)
	copy(value, buff[offset:])
	return kvapi.SeqV{Seq: seq, Value: value}, nil
}

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

func closeBatch(batch *pebble.Batch) {
	if err := batch.Close(); err != nil {
		log.Errorf("failed to close pebble batch %v", err)
	}
}

func closeIter(iter *pebble.Iterator) {
	if err := iter.Close(); err != nil {
		log.Errorf("failed to close pebble iterator %v", err)
	}
}
