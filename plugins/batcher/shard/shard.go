package shard

import (
	"context"
	"fmt"

	"spanproj/pkg/contract"
	"spanproj/pkg/lineio"
)

// Options 为分片 Batcher 的可选配置。
type Options struct {
	// MinShard: 单个分片的最少句数；批次较小时减少分片数。<=0 视为 1。
	MinShard int `json:"min_shard"`
}

// Batcher 将一个批次按句序切为至多 n 个连续分片。
type Batcher struct {
	minShard int
}

// New 创建分片 Batcher。
func New(opts *Options) *Batcher {
	m := 1
	if opts != nil && opts.MinShard > 1 {
		m = opts.MinShard
	}
	return &Batcher{minShard: m}
}

var _ contract.Batcher = (*Batcher)(nil)

// Make 以 ceil(len/n) 为分片长度顺序切分：
// - 分片间不重叠、不重排、不丢失；
// - Item.Index 须连续严格递增；
// - 最后一个分片可能较短，分片数可能少于 n。
func (b *Batcher) Make(ctx context.Context, items []contract.Item, n int) ([]contract.Shard, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: shard count must be > 0, got %d", contract.ErrInvalidInput, n)
	}
	l := len(items)
	if l == 0 {
		return nil, nil
	}
	for i := 1; i < l; i++ {
		if items[i].Index != items[i-1].Index+1 {
			return nil, fmt.Errorf("%w: item index must be contiguous, got %d after %d", contract.ErrInvalidInput, items[i].Index, items[i-1].Index)
		}
	}
	p := (l + n - 1) / n
	if p < b.minShard {
		p = b.minShard
	}
	shards := make([]contract.Shard, 0, (l+p-1)/p)
	for from := 0; from < l; from += p {
		if err := lineio.CtxErr(ctx); err != nil {
			return nil, err
		}
		to := min(from+p, l)
		shards = append(shards, contract.Shard{ShardIndex: len(shards), Items: items[from:to:to]})
	}
	return shards, nil
}
