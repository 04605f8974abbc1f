package kvapi

import (
	"context"
)

// ApiBuilder constructs store instances without the caller knowing which
// concrete implementation is built. Construction may block while the store
// is provisioned or connected, so both operations take a context.
type ApiBuilder interface {

	// BuildOne constructs and returns one running store instance.
	BuildOne(ctx context.Context) (KVApi, error)

	// BuildMany constructs n store instances forming a cluster topology, e.g.
	// for testing multi-node behaviour. Each element is independently usable
	// and independently satisfies the contract. No ordering is implied beyond
	// the sequence returned.
	BuildMany(ctx context.Context, n int) ([]KVApi, error)
}
