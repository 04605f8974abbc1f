package kvapi

import (
	"context"
)

// KVApi is the API of a key-value store used to hold metadata records.
//
// Implementations decide where the records live - an in-memory btree, a local
// disk engine, or a remote cluster - and return their own error kinds. E.g. a
// remote implementation returns network or remote storage errors, a local one
// just returns storage errors. Errors are always passed through unchanged so
// callers can inspect the original kind with errors.As regardless of how many
// wrappers sit in between.
//
// All methods are safe for concurrent use. Serializing conflicting writes is
// the implementation's job, not the caller's.
type KVApi interface {

	// UpsertKV updates or inserts a key-value record. If the request carries a
	// seq precondition and the current record does not match it, nothing is
	// written and the reply reflects the unchanged state.
	UpsertKV(ctx context.Context, req UpsertRequest) (UpsertReply, error)

	// GetKV gets a key-value record by key. A missing key is not an error, the
	// reply is nil.
	GetKV(ctx context.Context, key string) (GetReply, error)

	// MGetKV gets several key-value records by key. The reply has one entry
	// per requested key, in request order, nil for keys that do not exist.
	MGetKV(ctx context.Context, keys []string) (MGetReply, error)

	// PrefixListKV lists all records whose key starts with prefix, ordered by
	// byte value of the key. The scan range is [prefix, PrefixOfString(prefix)).
	PrefixListKV(ctx context.Context, prefix string) (ListReply, error)

	// Transaction applies the request's then-branch operations atomically if
	// every condition holds, otherwise the else-branch operations. A failed
	// condition is a normal outcome reported in the reply, not an error.
	Transaction(ctx context.Context, txn TxnRequest) (TxnReply, error)
}

// AsKVApi is implemented by anything that can present itself as a KVApi.
// It is how heterogeneous store implementations are kept behind one abstract
// handle, e.g. in a registry keyed by engine name.
type AsKVApi interface {
	AsKVApi() KVApi
}
