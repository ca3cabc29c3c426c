package index

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"

	"diver/internal/chunker"
	"diver/internal/store"
	"diver/internal/walker"

	"golang.org/x/sync/errgroup"
)

// pendingChunk is a chunk waiting for its embedding.
type pendingChunk struct {
	id     string
	source string
	seq    int
	text   string
}

// runPipeline streams chunks from a producer (walk, read, chunk) to a
// consumer that embeds and upserts one batch at a time. Batching only
// groups calls; the stored entries are the same for any batch size.
func (ix *Indexer) runPipeline(ctx context.Context, root string) (*Stats, error) {
	var stats Stats
	var queued atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	pending := make(chan pendingChunk, ix.batchSize)

	// Stage 1: walk + read + chunk.
	g.Go(func() error {
		defer close(pending)

		files, walkErrs := walker.Walk(gctx, root, walker.Options{
			Extensions:  ix.extensions,
			MaxFileSize: ix.maxFileSize,
		})
		for fi := range files {
			stats.FilesTotal++

			src, err := os.ReadFile(fi.Path)
			if err != nil {
				// Unreadable files count as empty.
				ix.logger.Debug("skipping unreadable file", "path", fi.RelPath, "err", err)
				stats.FilesSkipped++
				continue
			}
			ix.logOutline(gctx, fi.RelPath, src)

			produced := 0
			for seq, text := range chunker.Lines(string(src), ix.chunkLines) {
				if strings.TrimSpace(text) == "" {
					continue
				}
				c := pendingChunk{id: ChunkID(fi.RelPath, text), source: fi.RelPath, seq: seq, text: text}
				select {
				case pending <- c:
				case <-gctx.Done():
					return gctx.Err()
				}
				produced++
				queued.Add(1)
			}
			if produced == 0 {
				stats.FilesSkipped++
			} else {
				stats.FilesIndexed++
			}
		}
		if err := <-walkErrs; err != nil {
			return fmt.Errorf("walk %s: %w", root, err)
		}
		return nil
	})

	// Stage 2: embed + store, one call each per batch.
	var chunksStored, batches int
	g.Go(func() error {
		batch := make([]pendingChunk, 0, ix.batchSize)
		flush := func() error {
			if len(batch) == 0 {
				return nil
			}
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.text
			}
			vecs, err := ix.embedder.Embed(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding failed: %w", err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedding failed: expected %d vectors, got %d", len(batch), len(vecs))
			}

			entries := make([]store.Entry, len(batch))
			for i, c := range batch {
				entries[i] = store.Entry{ID: c.id, Source: c.source, Seq: c.seq, Text: c.text, Vector: vecs[i]}
			}
			if err := ix.store.Upsert(gctx, entries); err != nil {
				return fmt.Errorf("storage failed: %w", err)
			}

			chunksStored += len(batch)
			batches++
			ix.logger.Debug("stored batch", "batch", batches, "chunks", len(batch))
			if ix.onProgress != nil {
				ix.onProgress("Embedding chunks...", chunksStored, int(queued.Load()))
			}
			batch = batch[:0]
			return nil
		}

		for c := range pending {
			batch = append(batch, c)
			if len(batch) >= ix.batchSize {
				if err := flush(); err != nil {
					return err
				}
			}
		}
		return flush()
	})

	err := g.Wait()
	stats.ChunksTotal = chunksStored
	stats.Batches = batches
	return &stats, err
}

func (ix *Indexer) logOutline(ctx context.Context, path string, src []byte) {
	if ix.outliner == nil || !ix.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	syms, err := ix.outliner.Outline(ctx, path, src)
	if err != nil {
		ix.logger.Debug("outline failed", "path", path, "err", err)
		return
	}
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.Name
	}
	ix.logger.Debug("file definitions", "path", path, "count", len(syms), "names", names)
}
