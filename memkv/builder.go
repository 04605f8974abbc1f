package memkv

import (
	"context"

	"github.com/QuenKar/databend/kvapi"
)

// Builder builds independent in-memory stores.
type Builder struct {
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) BuildOne(ctx context.Context) (kvapi.KVApi, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewStore(), nil
}

func (b *Builder) BuildMany(ctx context.Context, n int) ([]kvapi.KVApi, error) {
	stores := make([]kvapi.KVApi, n)
	for i := range stores {
		store, err := b.BuildOne(ctx)
		if err != nil {
			return nil, err
		}
		stores[i] = store
	}
	return stores, nil
}
