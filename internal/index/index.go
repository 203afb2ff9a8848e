package index

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"

	"github.com/liliang-cn/docqa/internal/domain"
	"github.com/philippgille/chromem-go"
)

const collectionName = "session"

var errQueryNotPrecomputed = errors.New("index only accepts precomputed query embeddings")

// Index is an immutable in-memory similarity index over one document's chunks
type Index struct {
	coll      *chromem.Collection
	dimension int
}

// Build loads chunk/vector pairs into a new cosine-similarity collection.
// vectors[i] must be the embedding of chunks[i].
func Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) (*Index, error) {
	if len(chunks) != len(vectors) {
		return nil, fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))
	}
	if len(chunks) == 0 {
		return nil, domain.ErrEmptyDocument
	}

	dimension := len(vectors[0])
	if dimension == 0 {
		return nil, errors.New("empty embedding vector")
	}

	db := chromem.NewDB()
	coll, err := db.CreateCollection(collectionName, nil, func(context.Context, string) ([]float32, error) {
		return nil, errQueryNotPrecomputed
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, want %d", i, len(vectors[i]), dimension)
		}
		metadata := make(map[string]string, len(c.Metadata)+1)
		for k, v := range c.Metadata {
			metadata[k] = v
		}
		metadata[domain.MetadataKeyChunk] = strconv.Itoa(c.Index)

		docs[i] = chromem.Document{
			ID:        strconv.Itoa(c.Index),
			Metadata:  metadata,
			Embedding: vectors[i],
			Content:   c.Text,
		}
	}

	if err := coll.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return nil, fmt.Errorf("failed to add documents: %w", err)
	}
	return &Index{coll: coll, dimension: dimension}, nil
}

// Len returns the number of indexed chunks
func (x *Index) Len() int {
	return x.coll.Count()
}

// Dimension returns the embedding dimension
func (x *Index) Dimension() int {
	return x.dimension
}

// Query returns up to k chunks most similar to vector, best first
func (x *Index) Query(ctx context.Context, vector []float32, k int) ([]domain.RetrievedChunk, error) {
	if len(vector) != x.dimension {
		return nil, fmt.Errorf("query vector has dimension %d, want %d", len(vector), x.dimension)
	}
	n := min(k, x.coll.Count())
	if n <= 0 {
		return nil, nil
	}

	results, err := x.coll.QueryEmbedding(ctx, vector, n, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("similarity query failed: %w", err)
	}

	chunks := make([]domain.RetrievedChunk, len(results))
	for i, r := range results {
		idx, _ := strconv.Atoi(r.ID)
		chunks[i] = domain.RetrievedChunk{
			Chunk: domain.Chunk{
				Index:    idx,
				Text:     r.Content,
				Metadata: r.Metadata,
			},
			Similarity: r.Similarity,
		}
	}
	return chunks, nil
}
