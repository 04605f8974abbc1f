package metrics

import (
	"context"

	"github.com/QuenKar/databend/kvapi"
)

// InstrumentedKV wraps a KVApi and counts operations. It forwards every call
// unchanged, so results and errors are identical to calling the wrapped store
// directly - instrumenting a store never changes its behaviour.
type InstrumentedKV struct {
	kv      kvapi.KVApi
	upserts Counter
	gets    Counter
	mgets   Counter
	lists   Counter
	txns    Counter
}

func NewInstrumentedKV(kv kvapi.KVApi, factory Factory) (*InstrumentedKV, error) {
	i := &InstrumentedKV{kv: kv}
	var err error
	if i.upserts, err = factory.CreateCounter("kv_upserts_total", "Number of upsert operations"); err != nil {
		return nil, err
	}
	if i.gets, err = factory.CreateCounter("kv_gets_total", "Number of get operations"); err != nil {
		return nil, err
	}
	if i.mgets, err = factory.CreateCounter("kv_mgets_total", "Number of multi-get operations"); err != nil {
		return nil, err
	}
	if i.lists, err = factory.CreateCounter("kv_prefix_lists_total", "Number of prefix list operations"); err != nil {
		return nil, err
	}
	if i.txns, err = factory.CreateCounter("kv_transactions_total", "Number of transactions"); err != nil {
		return nil, err
	}
	return i, nil
}

func (i *InstrumentedKV) UpsertKV(ctx context.Context, req kvapi.UpsertRequest) (kvapi.UpsertReply, error) {
	i.upserts.Inc()
	return i.kv.UpsertKV(ctx, req)
}

func (i *InstrumentedKV) GetKV(ctx context.Context, key string) (kvapi.GetReply, error) {
	i.gets.Inc()
	return i.kv.GetKV(ctx, key)
}

func (i *InstrumentedKV) MGetKV(ctx context.Context, keys []string) (kvapi.MGetReply, error) {
	i.mgets.Inc()
	return i.kv.MGetKV(ctx, keys)
}

func (i *InstrumentedKV) PrefixListKV(ctx context.Context, prefix string) (kvapi.ListReply, error) {
	i.lists.Inc()
	return i.kv.PrefixListKV(ctx, prefix)
}

func (i *InstrumentedKV) Transaction(ctx context.Context, txn kvapi.TxnRequest) (kvapi.TxnReply, error) {
	i.txns.Inc()
	return i.kv.Transaction(ctx, txn)
}

func (i *InstrumentedKV) AsKVApi() kvapi.KVApi {
	return i
}
