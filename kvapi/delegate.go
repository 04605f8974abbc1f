package kvapi

import (
	"context"
)

// KVHandle is a shared handle to a KVApi. It forwards every operation
// unchanged to the store it wraps, so a handle is behaviorally
// indistinguishable from the wrapped store: results and errors pass through
// with zero transformation regardless of indirection depth. Use it where a
// store instance must be handed around without exposing its concrete type.
type KVHandle struct {
	kv KVApi
}

func NewKVHandle(kv KVApi) *KVHandle {
	return &KVHandle{kv: kv}
}

func (h *KVHandle) UpsertKV(ctx context.Context, req UpsertRequest) (UpsertReply, error) {
	return h.kv.UpsertKV(ctx, req)
}

func (h *KVHandle) GetKV(ctx context.Context, key string) (GetReply, error) {
	return h.kv.GetKV(ctx, key)
}

func (h *KVHandle) MGetKV(ctx context.Context, keys []string) (MGetReply, error) {
	return h.kv.MGetKV(ctx, keys)
}

func (h *KVHandle) PrefixListKV(ctx context.Context, prefix string) (ListReply, error) {
	return h.kv.PrefixListKV(ctx, prefix)
}

func (h *KVHandle) Transaction(ctx context.Context, txn TxnRequest) (TxnReply, error) {
	return h.kv.Transaction(ctx, txn)
}

func (h *KVHandle) AsKVApi() KVApi {
	return h
}
