package skill

import (
	"context"
	"hash/fnv"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Encoder encodes skill commands into fixed size embeddings. Encoding
// the same text must always produce the same embedding.
type Encoder interface {
	Encode(ctx context.Context, text string) ([]float64, error)
	Dim() int
}

// HashEncoder is a deterministic Encoder which maps each text to a
// pseudo-random unit vector seeded by a hash of the text. It stands in
// for a pretrained text encoder.
type HashEncoder struct {
	dim int
}

// NewHashEncoder returns a HashEncoder producing embeddings of size dim
func NewHashEncoder(dim int) (*HashEncoder, error) {
	if dim <= 0 {
		return nil, errors.Errorf("newHashEncoder: dimension must be "+
			"positive, have %v", dim)
	}
	return &HashEncoder{dim: dim}, nil
}

// Encode returns the embedding of text
func (h *HashEncoder) Encode(_ context.Context, text string) ([]float64,
	error) {
	hash := fnv.New64a()
	hash.Write([]byte(text))

	normal := distuv.Normal{
		Mu:    0,
		Sigma: 1,
		Src:   rand.NewSource(hash.Sum64()),
	}
	emb := make([]float64, h.dim)
	for i := range emb {
		emb[i] = normal.Rand()
	}

	norm := floats.Norm(emb, 2)
	if norm == 0 {
		return emb, nil
	}
	floats.Scale(1/norm, emb)
	return emb, nil
}

// Dim returns the size of embeddings
func (h *HashEncoder) Dim() int {
	return h.dim
}

// CachedEncoder caches the embeddings of an underlying Encoder
type CachedEncoder struct {
	Encoder
	cache *lru.Cache[string, []float64]
}

// NewCachedEncoder wraps enc with a least recently used cache of size
// entries
func NewCachedEncoder(enc Encoder, size int) (*CachedEncoder, error) {
	cache, err := lru.New[string, []float64](size)
	if err != nil {
		return nil, errors.Wrap(err, "newCachedEncoder")
	}
	return &CachedEncoder{Encoder: enc, cache: cache}, nil
}

// Encode returns a copy of the cached embedding of text, encoding text
// if it is not cached
func (c *CachedEncoder) Encode(ctx context.Context, text string) ([]float64,
	error) {
	if emb, ok := c.cache.Get(text); ok {
		return append([]float64{}, emb...), nil
	}

	emb, err := c.Encoder.Encode(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, append([]float64{}, emb...))
	return emb, nil
}

// Len returns the number of cached embeddings
func (c *CachedEncoder) Len() int {
	return c.cache.Len()
}
