package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/poiesic/lexmap"
	"github.com/poiesic/lexmap/ai"
	"github.com/poiesic/lexmap/complaint"
	"github.com/poiesic/lexmap/core"
	"github.com/poiesic/lexmap/corpus"
	"github.com/poiesic/lexmap/search"
	"github.com/urfave/cli/v2"
)

// openAssistant opens the store and embedding provider named by the flags.
// Tests replace it to avoid a live embedding service.
var openAssistant = func(c *cli.Context, opts ...lexmap.Option) (*lexmap.Assistant, error) {
	aiConfig := ai.NewConfig(
		ai.WithEmbeddingHost(c.String("embedding-host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
	)
	if err := aiConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	opts = append([]lexmap.Option{lexmap.WithAIConfig(aiConfig)}, opts...)
	return lexmap.Open(c.String("db"), opts...)
}

func corpusOptions(c *cli.Context) ([]corpus.Option, error) {
	field, err := corpus.ParseTextField(c.String("text-field"))
	if err != nil {
		return nil, err
	}
	opts := []corpus.Option{
		corpus.WithTextField(field),
		corpus.WithBatchSize(c.Int("batch-size")),
	}
	if workers := c.Int("workers"); workers > 0 {
		opts = append(opts, corpus.WithPoolSize(workers))
	}
	return opts, nil
}

func embedCommand(c *cli.Context) error {
	opts, err := corpusOptions(c)
	if err != nil {
		return err
	}
	opts = append(opts, corpus.WithProgress(c.App.ErrWriter, corpus.DefaultProgressInterval))

	assistant, err := openAssistant(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer assistant.Close()

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", c.String("db"))
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", assistant.Embedder().Model())

	if c.Bool("refresh") {
		n, err := assistant.ClearEmbeddingCache(c.Context)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.App.Writer, "Cleared %d cached vectors\n", n)
	}

	idx, err := assistant.LoadCorpus(c.Context, c.String("offenses"), c.String("successors"), opts...)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Embedded %d offenses (%d successors) with %s, dimension %d\n",
		idx.Len(), len(idx.Successors()), idx.Model(), idx.Dimension())
	return nil
}

func matchCommand(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return errors.New("an incident description is required")
	}
	k := c.Int("top-k")
	if k < 1 {
		return fmt.Errorf("top-k must be at least 1")
	}

	opts, err := corpusOptions(c)
	if err != nil {
		return err
	}

	matcherOpts := []search.Option{search.WithTopK(k)}
	if c.Bool("verbose") {
		matcherOpts = append(matcherOpts, search.WithMonitor(&traceMonitor{w: c.App.ErrWriter}))
	}
	assistant, err := openAssistant(c, lexmap.WithMatcherOptions(matcherOpts...))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer assistant.Close()

	if _, err := assistant.LoadCorpus(c.Context, c.String("offenses"), c.String("successors"), opts...); err != nil {
		return err
	}

	s, err := assistant.NewSession()
	if err != nil {
		return err
	}
	result, err := s.Submit(c.Context, query)
	if err != nil {
		if errors.Is(err, core.ErrEmbedding) {
			return fmt.Errorf("embedding service unavailable: %w", err)
		}
		return err
	}

	return printResult(c.App.Writer, result, c.Bool("draft"), c.String("details"))
}

func printResult(w io.Writer, result *core.MatchResult, draft bool, details string) error {
	rows, err := complaint.Summary(result)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Best match: %s (score %.3f)\n\n", result.Label(), result.Score)
	fmt.Fprint(w, complaint.FormatSummary(rows))
	if result.Fallback {
		fmt.Fprintln(w, "\nNo direct successor found; showing the general provision.")
	}

	if len(result.Alternatives) > 1 {
		fmt.Fprintln(w, "\nCandidates:")
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, candidate := range result.Alternatives {
			fmt.Fprintf(tw, "%d.\t%s\t%s\t%.3f\n",
				candidate.Rank, candidate.Offense.Section, candidate.Offense.Offense, candidate.Score)
		}
		tw.Flush()
	}

	if draft {
		text, err := complaint.Draft(result, details)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "\nComplaint draft:\n%s\n", text)
	}
	return nil
}

func xrefCommand(c *cli.Context) error {
	section := strings.TrimSpace(c.Args().First())
	if section == "" {
		return errors.New("a section identifier is required")
	}

	idx, err := corpus.LoadFiles(c.String("offenses"), c.String("successors"))
	if err != nil {
		return err
	}

	fallbackRef := c.String("fallback")
	if strings.TrimSpace(fallbackRef) == "" {
		return fmt.Errorf("fallback reference cannot be empty")
	}
	resolver := search.NewResolver(idx.Successors(), search.FallbackRef(fallbackRef))
	successor, ref, fallback := resolver.Resolve(section)

	label := "IPC " + section
	if offense, ok := idx.Offense(section); ok {
		label = fmt.Sprintf("IPC %s (%s)", offense.Section, offense.Offense)
	}
	fmt.Fprintf(c.App.Writer, "%s -> %s\n", label, ref)
	if !fallback && successor.Description != "" {
		fmt.Fprintf(c.App.Writer, "  %s\n", successor.Description)
	}
	return nil
}

func historyCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit < 1 {
		return fmt.Errorf("limit must be at least 1")
	}

	assistant, err := openAssistant(c)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer assistant.Close()

	entries, err := assistant.RecentHistory(c.Context, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintln(c.App.Writer, "No searches yet.")
		return nil
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "When\tMatch\tSuccessor\tQuery")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s (Sec %s)\t%s\t%s\n",
			entry.Timestamp.Local().Format("2006-01-02 15:04"),
			entry.Offense, entry.Section, entry.SuccessorRef, entry.Query)
	}
	return tw.Flush()
}
