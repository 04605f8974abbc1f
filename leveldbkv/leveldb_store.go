package leveldbkv

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/QuenKar/databend/common"
	"github.com/QuenKar/databend/errors"
	"github.com/QuenKar/databend/kvapi"
)

const (
	dataPrefix = "kv/"
	seqKey     = "sm/seq"
)

var syncWrite = &opt.WriteOptions{Sync: true}

// Store is a kvapi.KVApi implementation backed by a local leveldb instance.
// It uses the same record encoding and keyspace layout as the pebble store:
// user records under dataPrefix, seq counter under seqKey, values prefixed
// with a little-endian seq. Writes are serialized by a store-wide mutex and
// each transaction branch goes to disk as one sync batch.
type Store struct {
	mu     sync.RWMutex
	db     *leveldb.DB
	seq    uint64
	closed bool
}

func NewStore(dir string) (*Store, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	s := &Store{db: db}
	if err := s.loadSeq(); err != nil {
		if cerr := db.Close(); cerr != nil {
			log.Errorf("failed to close leveldb after bad open %v", cerr)
		}
		return nil, err
	}
	log.Debugf("Opened leveldb kv store at %s, seq %d", dir, s.seq)
	return s, nil
}

func (s *Store) loadSeq() error {
	v, err := s.db.Get([]byte(seqKey), nil)
	if err == leveldb.ErrNotFound {
		return nil
	}
	if err != nil {
		return errors.WithStack(err)
	}
	s.seq, _ = common.ReadUint64FromBufferLE(v, 0)
	return nil
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
		return kvapi.UpsertReply{}, errors.NewStoreClosedError("leveldb")
	}
	prev, err := s.get(req.Key)
	if err != nil {
		return kvapi.UpsertReply{}, err
	}
	if !req.Seq.Matches(seqOf(prev)) {
		return kvapi.UpsertReply{Prev: prev, Result: prev}, nil
	}
	if req.Value.IsDelete() {
		if prev == nil {
			return kvapi.UpsertReply{}, nil
		}
		if err := s.db.Delete(dataKey(req.Key), syncWrite); err != nil {
			return kvapi.UpsertReply{}, errors.WithStack(err)
		}
		return kvapi.UpsertReply{Prev: prev}, nil
	}
	seqv := kvapi.SeqV{Seq: s.seq + 1, Value: req.Value.Bytes()}
	batch := new(leveldb.Batch)
	batch.Put(dataKey(req.Key), encodeSeqV(seqv))
	batch.Put([]byte(seqKey), common.AppendUint64ToBufferLE(nil, seqv.Seq))
	if err := s.db.Write(batch, syncWrite); err != nil {
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
		return nil, errors.NewStoreClosedError("leveldb")
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
		return nil, errors.NewStoreClosedError("leveldb")
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
		return nil, errors.NewStoreClosedError("leveldb")
	}
	iter := s.db.NewIterator(&util.Range{Start: dataKey(start), Limit: dataKey(end)}, nil)
	defer iter.Release()
	var reply kvapi.ListReply
	for iter.Next() {
		key := string(iter.Key()[len(dataPrefix):])
		seqv, err := decodeSeqV(iter.Value())
		if err != nil {
			return nil, err
		}
		reply = append(reply, kvapi.KVPair{Key: key, Value: seqv})
	}
	if err := iter.Error(); err != nil {
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
		return kvapi.TxnReply{}, errors.NewStoreClosedError("leveldb")
	}
	run := txnRun{store: s, batch: new(leveldb.Batch), pending: map[string]*kvapi.SeqV{}}
	return run.execute(txn)
}

// txnRun mirrors the pebble store's transaction runner: branch operations
// accumulate into one batch, reads consult pending writes first, and the
// batch is written sync once the whole branch has been applied.
type txnRun struct {
	store   *Store
	batch   *leveldb.Batch
	seq     uint64
	dirty   bool
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
	r.seq = r.store.seq
	responses := make([]kvapi.TxnOpResponse, 0, len(ops))
	for _, op := range ops {
		resp, err := r.apply(op)
		if err != nil {
			return kvapi.TxnReply{}, err
		}
		responses = append(responses, resp)
	}
	if r.dirty {
		if r.seq != r.store.seq {
			r.batch.Put([]byte(seqKey), common.AppendUint64ToBufferLE(nil, r.seq))
		}
		if err := r.store.db.Write(r.batch, syncWrite); err != nil {
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
		r.batch.Put(dataKey(op.Key), encodeSeqV(*seqv))
		r.pending[op.Key] = seqv
		r.dirty = true
		resp.Value = prev
	case kvapi.TxnOpDelete:
		prev, err := r.get(op.Key)
		if err != nil {
			return resp, err
		}
		if prev != nil {
			r.batch.Delete(dataKey(op.Key))
			r.pending[op.Key] = nil
			r.dirty = true
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
	iter := r.store.db.NewIterator(&util.Range{Start: dataKey(start), Limit: dataKey(end)}, nil)
	for iter.Next() {
		doomed[string(iter.Key()[len(dataPrefix):])] = struct{}{}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, errors.WithStack(err)
	}
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
		r.batch.Delete(dataKey(key))
		r.pending[key] = nil
		r.dirty = true
	}
	return uint64(len(doomed)), nil
}

func (s *Store) AsKVApi() kvapi.KVApi {
	return s
}

func (s *Store) get(key string) (*kvapi.SeqV, error) {
	v, err := s.db.Get(dataKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WithStack(err)
	}
	seqv, err := decodeSeqV(v)
	if err != nil {
		return nil, err
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
