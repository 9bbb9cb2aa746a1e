// Package rag builds and serves the hybrid semantic+lexical code retrieval
// index: a Qdrant-backed vector store of CodeChunk payloads, populated by
// streaming JSONL ingest and queried with a dense-search-plus-lexical-rerank
// pipeline.
package rag

import "time"

// Distance is the vector similarity metric a collection is created with.
type Distance string

const (
	DistanceCosine    Distance = "cosine"
	DistanceDot       Distance = "dot"
	DistanceEuclidean Distance = "euclidean"
)

// Config carries the retrieval and ingest knobs: connection, collection
// shape, chunking, and the fallback boost; the rerank weights are constants
// in retrieval.go.
type Config struct {
	// Connection.
	QdrantHost string `mapstructure:"qdrant_host"`
	QdrantPort int    `mapstructure:"qdrant_port"`
	APIKey     string `mapstructure:"api_key"`

	// Collection.
	Collection     string   `mapstructure:"collection"`
	Dimensionality int      `mapstructure:"dimensionality"`
	Distance       Distance `mapstructure:"distance"`

	// Ingest.
	UpsertBatchSize   int `mapstructure:"upsert_batch_size"`
	EmbedSnippetBound int `mapstructure:"embed_snippet_bound"`   // chars kept in embedding text
	PreviewBound      int `mapstructure:"preview_snippet_bound"` // chars kept in VectorPayload.Preview
	MaxTopImports     int `mapstructure:"max_top_imports"`
	MaxSearchTerms    int `mapstructure:"max_search_terms"`

	// Retrieval.
	TopK             int     `mapstructure:"top_k"`
	MinScore         float64 `mapstructure:"min_score"` // 0 disables the floor
	PrimaryPoolCap   int     `mapstructure:"primary_pool_cap"`
	ScrollMultiplier int     `mapstructure:"scroll_multiplier"`
	ScrollCap        int     `mapstructure:"scroll_cap"`
	FallbackBoost    float64 `mapstructure:"fallback_boost"`
	TakePerTarget    int     `mapstructure:"take_per_target"`
	EmbedTimeout     time.Duration `mapstructure:"embed_timeout"`
	SearchTimeout    time.Duration `mapstructure:"search_timeout"`
}

// DefaultConfig mirrors the reference defaults: top_k'=8·top_k capped at
// 400, scroll capped at 80·top_k capped at 4000, and a 0.15 fallback
// boost applied to search-term hits merged in from the scroll pass.
func DefaultConfig() Config {
	return Config{
		QdrantHost:        "localhost",
		QdrantPort:        6334,
		Collection:        "mrsentry_chunks",
		Dimensionality:    768,
		Distance:          DistanceCosine,
		UpsertBatchSize:   128,
		EmbedSnippetBound: 2000,
		PreviewBound:      400,
		MaxTopImports:     8,
		MaxSearchTerms:    32,
		TopK:              8,
		MinScore:          0,
		PrimaryPoolCap:    400,
		ScrollMultiplier:  80,
		ScrollCap:         4000,
		FallbackBoost:     0.15,
		TakePerTarget:     5,
		EmbedTimeout:      30 * time.Second,
		SearchTimeout:     10 * time.Second,
	}
}

// PrimaryPoolSize returns the primary vector search pool size: top_k'
// = min(8·top_k, 400), never less than top_k.
func (c Config) PrimaryPoolSize() int {
	pool := c.TopK * 8
	if pool > c.PrimaryPoolCap {
		pool = c.PrimaryPoolCap
	}
	if pool < c.TopK {
		pool = c.TopK
	}
	return pool
}

// ScrollLimit returns the fallback scroll page size: min(80·top_k, 4000).
func (c Config) ScrollLimit() int {
	limit := c.TopK * c.ScrollMultiplier
	if limit > c.ScrollCap {
		limit = c.ScrollCap
	}
	return limit
}
