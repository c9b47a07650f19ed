package embedcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/clausea/clausea/internal/ai"
	"github.com/clausea/clausea/internal/pkg/logutil"
)

// WrapLRU memoizes embeddings in an in-process expirable LRU keyed by
// model, input type and content hash. Only cache misses reach the wrapped
// provider; hits and misses are merged back in input order.
func WrapLRU(next ai.IEmbedProvider, size int, ttl time.Duration) ai.IEmbedProvider {
	if next == nil || size <= 0 || ttl <= 0 {
		return next
	}
	return &lruEmbedder{
		next:  next,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

type lruEmbedder struct {
	next  ai.IEmbedProvider
	cache *expirable.LRU[string, []float32]
}

func (l *lruEmbedder) Name() string {
	return l.next.Name()
}

func (l *lruEmbedder) Embed(ctx context.Context, model string, texts []string, inputType string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vectors := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int
	for i, t := range texts {
		if cached, ok := l.cache.Get(cacheKey(model, inputType, t)); ok {
			vectors[i] = cloneEmbedding(cached)
			continue
		}
		missTexts = append(missTexts, t)
		missIdx = append(missIdx, i)
	}
	if len(missTexts) == 0 {
		logutil.GetLogger(ctx).Debug("embedding cache hit", zap.Int("count", len(texts)))
		return vectors, nil
	}
	fresh, err := l.next.Embed(ctx, model, missTexts, inputType)
	if err != nil {
		return nil, err
	}
	for j, idx := range missIdx {
		vectors[idx] = fresh[j]
		l.cache.Add(cacheKey(model, inputType, missTexts[j]), cloneEmbedding(fresh[j]))
	}
	return vectors, nil
}

func cacheKey(model, inputType, text string) string {
	hash := sha256.Sum256([]byte(text))
	return "embed:" + model + ":" + inputType + ":" + hex.EncodeToString(hash[:])
}

func cloneEmbedding(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	clone := make([]float32, len(values))
	copy(clone, values)
	return clone
}
