package leveldbkv

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/QuenKar/databend/kvapi"
)

// Builder builds leveldb stores under dataDir, one subdirectory per build.
type Builder struct {
	mu      sync.Mutex
	dataDir string
	count   int
}

func NewBuilder(dataDir string) *Builder {
	return &Builder{dataDir: dataDir}
}

func (b *Builder) BuildOne(ctx context.Context) (kvapi.KVApi, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	dir := filepath.Join(b.dataDir, fmt.Sprintf("store-%04d", b.count))
	b.count++
	b.mu.Unlock()
	return NewStore(dir)
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
