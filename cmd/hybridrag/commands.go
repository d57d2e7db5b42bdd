package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/hybridrag/core"
	"github.com/poiesic/hybridrag/extract"
	"github.com/poiesic/hybridrag/reembed"
	"github.com/poiesic/hybridrag/search"
	"github.com/urfave/cli/v2"
)

func ingestCommand(c *cli.Context) error {
	ctx := context.Background()

	if c.NArg() == 0 {
		return errors.New("at least one file is required")
	}

	// Extract before opening the database so bad files fail fast
	inputs := make([]*core.DocumentInput, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		reader, err := extract.ForFile(path)
		if err != nil {
			return err
		}
		input, err := reader.ReadFile(ctx, path)
		if err != nil {
			return err
		}
		inputs = append(inputs, input)
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	embedder, err := createEmbedder(engine.Config())
	if err != nil {
		return err
	}

	pipeline, err := engine.NewIngestionPipeline(embedder)
	if err != nil {
		return err
	}
	defer pipeline.Release()

	receipt, err := pipeline.Ingest(ctx, c.String("session"), inputs...)
	if receipt == nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Session: %s\n", receipt.SessionID)
	for _, doc := range receipt.Documents {
		fmt.Fprintf(out, "  %s: %d pages, %d chunks\n", doc.Filename, doc.PageCount, doc.ChunkCount)
	}
	if err != nil {
		return fmt.Errorf("ingestion incomplete: %w", err)
	}
	return nil
}

func askCommand(c *cli.Context) error {
	ctx := context.Background()

	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	embedder, err := createEmbedder(engine.Config())
	if err != nil {
		return err
	}
	retriever, err := engine.NewRetriever(embedder)
	if err != nil {
		return err
	}

	result, err := retriever.Retrieve(ctx, question, queryOptions(c, engine.Config().Query.BM25Weight, engine.Config().Query.EmbeddingWeight)...)
	if err != nil {
		return err
	}

	out := c.App.Writer
	if result.Empty() {
		fmt.Fprintln(out, "No relevant passages found.")
		return nil
	}
	for i, citation := range result.Citations {
		fmt.Fprintf(out, "[%d] %s, page %d (score %.3f, bm25 %.3f, embedding %.3f)\n",
			i+1, citation.Filename, citation.PageNumber, citation.Score, citation.SparseScore, citation.DenseScore)
		fmt.Fprintf(out, "    %s\n\n", citation.Text)
	}
	return nil
}

// queryOptions turns the ask flags into query options. Unset weights keep
// their configured values.
func queryOptions(c *cli.Context, bm25, embedding float64) []search.QueryOption {
	var opts []search.QueryOption
	if c.IsSet("top-k") {
		opts = append(opts, search.WithTopK(c.Int("top-k")))
	}
	if c.IsSet("bm25-weight") || c.IsSet("embedding-weight") {
		if c.IsSet("bm25-weight") {
			bm25 = c.Float64("bm25-weight")
		}
		if c.IsSet("embedding-weight") {
			embedding = c.Float64("embedding-weight")
		}
		opts = append(opts, search.WithWeights(bm25, embedding))
	}
	if session := c.String("session"); session != "" {
		opts = append(opts, search.WithSession(session))
	}
	if docs := c.StringSlice("document"); len(docs) > 0 {
		opts = append(opts, search.WithDocuments(docs...))
	}
	return opts
}

func documentsCommand(c *cli.Context) error {
	ctx := context.Background()

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILENAME\tPAGES\tCHUNKS\tSESSION\tINGESTED")

	if session := c.String("session"); session != "" {
		docs, err := engine.SessionDocuments(ctx, session)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			writeDocument(w, doc)
		}
		return w.Flush()
	}

	docs, err := engine.Documents(ctx)
	if err != nil {
		return err
	}
	for _, stats := range docs {
		writeDocument(w, stats.Document)
	}
	return w.Flush()
}

func writeDocument(w *tabwriter.Writer, doc *core.Document) {
	fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%s\t%s\n",
		doc.ID, doc.Filename, doc.PageCount, doc.ChunkCount, doc.SessionID,
		doc.IngestedAt.Local().Format("2006-01-02 15:04:05"))
}

func sessionsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SESSION\tCHUNKS\tSEALED\tCREATED")
	for _, s := range engine.Sessions() {
		fmt.Fprintf(w, "%s\t%d\t%t\t%s\n",
			s.ID, len(s.ChunkIDs), s.Sealed, s.CreatedAt.Local().Format("2006-01-02 15:04:05"))
	}
	return w.Flush()
}

func statsCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(context.Background())
	if err != nil {
		return err
	}

	out := c.App.Writer
	fmt.Fprintf(out, "Database: %s\n", c.String("db"))
	fmt.Fprintf(out, "Documents: %d\n", stats.Documents)
	fmt.Fprintf(out, "Chunks: %d\n", stats.Chunks)
	fmt.Fprintf(out, "Sessions: %d\n", stats.Sessions)
	fmt.Fprintf(out, "Keyword index: %d chunks, %d terms, %.1f average tokens\n",
		stats.SparseSize, stats.VocabularySize, stats.AverageChunkLen)
	fmt.Fprintf(out, "Embedding index: %d chunks, %d dimensions\n", stats.DenseSize, stats.Dimensions)
	return nil
}

func clearCommand(c *cli.Context) error {
	if !c.Bool("yes") {
		return errors.New("refusing to clear the corpus without --yes")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if err := engine.Clear(context.Background()); err != nil {
		return fmt.Errorf("clear failed: %w", err)
	}
	fmt.Fprintln(c.App.Writer, "Corpus cleared.")
	return nil
}

func reembedCommand(c *cli.Context) error {
	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}

	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	embedder, err := createEmbedder(engine.Config())
	if err != nil {
		return err
	}

	progress := c.App.ErrWriter
	fmt.Fprintf(progress, "Database: %s\n", c.String("db"))
	fmt.Fprintf(progress, "Embedding host: %s\n", engine.Config().Embedding.EmbeddingHost)
	fmt.Fprintf(progress, "Embedding model: %s\n", engine.Config().Embedding.EmbeddingModel)
	fmt.Fprintln(progress)

	if _, err := engine.Reembed(context.Background(), embedder, reembedConfig, progress); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}
