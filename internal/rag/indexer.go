package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/corvid-labs/mrsentry/internal/errs"
	"github.com/corvid-labs/mrsentry/internal/model"
)

// IngestStats totals a single ingest run.
type IngestStats struct {
	Indexed int
	Skipped int
}

// Indexer streams CodeChunk JSONL, builds (external_id, embedding_text,
// VectorPayload) triples, and batches upserts into Store.
type Indexer struct {
	store    *Store
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

func NewIndexer(store *Store, embedder Embedder, cfg Config, logger *slog.Logger) *Indexer {
	return &Indexer{store: store, embedder: embedder, cfg: cfg, logger: logger}
}

type ingestTriple struct {
	externalID string
	embedText  string
	payload    model.VectorPayload
}

// IngestJSONL reads one CodeChunk per line from r, skipping invalid or
// empty lines, embeds each chunk's text, and upserts in batches of
// cfg.UpsertBatchSize. Batches are embedded and upserted one after another;
// IngestMany runs several readers concurrently.
func (idx *Indexer) IngestJSONL(ctx context.Context, r io.Reader) (IngestStats, error) {
	var stats IngestStats
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var batch []ingestTriple
	flushAll := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := idx.flush(ctx, batch); err != nil {
			return err
		}
		stats.Indexed += len(batch)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var chunk model.CodeChunk
		if err := json.Unmarshal(line, &chunk); err != nil {
			idx.logger.Warn("skipping invalid chunk line", "error", err)
			stats.Skipped++
			continue
		}
		if chunk.ID == "" {
			stats.Skipped++
			continue
		}
		payload := BuildPayload(chunk, idx.cfg)
		batch = append(batch, ingestTriple{
			externalID: chunk.ID,
			embedText:  BuildEmbeddingText(chunk, idx.cfg),
			payload:    payload,
		})
		if len(batch) >= idx.cfg.UpsertBatchSize {
			if err := flushAll(); err != nil {
				return stats, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, errs.Wrap(errs.Parse, "rag.indexer", "scan jsonl", err)
	}
	if err := flushAll(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (idx *Indexer) flush(ctx context.Context, batch []ingestTriple) error {
	texts := make([]string, len(batch))
	for i, t := range batch {
		texts[i] = t.embedText
	}
	vectors, err := idx.embedder.Embed(ctx, texts)
	if err != nil {
		return errs.Wrap(errs.Storage, "rag.indexer", "embed batch", err)
	}
	if len(vectors) != len(batch) {
		return errs.New(errs.Storage, "rag.indexer", "embedder returned mismatched vector count")
	}

	ids := make([]string, len(batch))
	payloads := make([]model.VectorPayload, len(batch))
	for i, t := range batch {
		ids[i] = t.externalID
		payloads[i] = t.payload
	}
	return idx.store.UpsertBatch(ctx, ids, vectors, payloads)
}

// IngestMany fans out IngestJSONL over several readers concurrently,
// bounded to maxConcurrency, and sums their stats.
func IngestMany(ctx context.Context, idx *Indexer, readers []io.Reader, maxConcurrency int) (IngestStats, error) {
	var total IngestStats
	results := make([]IngestStats, len(readers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, r := range readers {
		i, r := i, r
		g.Go(func() error {
			stats, err := idx.IngestJSONL(gctx, r)
			results[i] = stats
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}
	for _, s := range results {
		total.Indexed += s.Indexed
		total.Skipped += s.Skipped
	}
	return total, nil
}
