// Package summary builds the daily summary of one subject-day from its
// transcript fragments and caches it as {summaryRoot}/{subjectId}/{date}/_summary.json.
package summary

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/eternnoir/elderlisten/pkg/logger"
	"github.com/eternnoir/elderlisten/pkg/providers"
	"github.com/eternnoir/elderlisten/pkg/store"
)

var (
	// ErrMalformedOutput is returned when no JSON object can be extracted from model output
	ErrMalformedOutput = errors.New("model output is not a valid JSON object")

	// ErrProvider wraps failures reported by the summarization provider
	ErrProvider = errors.New("summarization provider failed")
)

// Result messages
const (
	MessageCached    = "cached"
	MessageNoFiles   = "no files"
	MessageLLMError  = "llm error"
	MessageGenerated = "generated"
)

// CacheFileName is the summary cache file inside a subject-day directory
const CacheFileName = "_summary.json"

// Result is the outcome of one summary request
type Result struct {
	SubjectID int64  `json:"elder_id"`
	Date      string `json:"date"`
	Fields
	Message string `json:"message"`
}

// Generator produces and caches daily summaries
type Generator struct {
	fragments   FragmentLister
	summarizer  providers.Summarizer
	summaryRoot string
	log         *logger.Logger
	group       singleflight.Group
}

// Option configures a Generator
type Option func(*Generator)

// WithLogger sets the generator logger
func WithLogger(l *logger.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.log = l
		}
	}
}

// NewGenerator creates a generator reading fragments from fragments and
// writing caches under summaryRoot
func NewGenerator(fragments FragmentLister, summarizer providers.Summarizer, summaryRoot string, opts ...Option) (*Generator, error) {
	if fragments == nil {
		return nil, fmt.Errorf("fragment source is required")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("summarizer is required")
	}
	if summaryRoot == "" {
		return nil, fmt.Errorf("summary root is required")
	}

	root, err := filepath.Abs(summaryRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve summary root: %w", err)
	}

	g := &Generator{
		fragments:   fragments,
		summarizer:  summarizer,
		summaryRoot: root,
		log:         logger.WithComponent("summary"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// CachePath returns the cache file of a subject-day
func (g *Generator) CachePath(subjectID int64, date string) string {
	return filepath.Join(g.summaryRoot, strconv.FormatInt(subjectID, 10), date, CacheFileName)
}

// GenerateSummary returns the summary of one subject-day. Invalid input
// yields a nil result. A provider failure or unparseable output yields a
// result tagged MessageLLMError together with the error. Identical requests
// running concurrently in this process share one provider call; the shared
// call is not cancelled with any one caller, and a caller whose ctx ends
// first gets a nil result and ctx.Err().
func (g *Generator) GenerateSummary(ctx context.Context, subjectID int64, date string, force bool) (*Result, error) {
	if err := store.ValidateSubject(subjectID); err != nil {
		return nil, err
	}
	if err := store.ValidateDate(date); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%d/%s/%t", subjectID, date, force)
	shared := context.WithoutCancel(ctx)
	ch := g.group.DoChan(key, func() (interface{}, error) {
		return g.generate(shared, subjectID, date, force)
	})

	var r singleflight.Result
	select {
	case r = <-ch:
	case <-ctx.Done():
		g.log.Debug().Str("key", key).Msg("Summary request cancelled while in flight")
		return nil, ctx.Err()
	}
	if r.Shared {
		g.log.Debug().Str("key", key).Msg("Joined in-flight summary request")
	}

	res, _ := r.Val.(*Result)
	if res == nil {
		return nil, r.Err
	}
	out := *res
	return &out, r.Err
}

func (g *Generator) generate(ctx context.Context, subjectID int64, date string, force bool) (*Result, error) {
	log := g.log.WithFields(map[string]interface{}{
		"subject_id": subjectID,
		"date":       date,
	})
	path := g.CachePath(subjectID, date)

	if !force {
		if fields, ok := g.loadCache(path, log); ok {
			log.Info().Str("path", path).Msg("Using cached summary")
			return newResult(subjectID, date, fields, MessageCached), nil
		}
	}

	text, count, err := aggregate(g.fragments, subjectID, date, log)
	if err != nil {
		return nil, fmt.Errorf("failed to list fragments: %w", err)
	}
	if count == 0 {
		log.Info().Msg("No transcript fragments for this day")
		return newResult(subjectID, date, Fields{}, MessageNoFiles), nil
	}

	log.Info().
		Int("fragments", count).
		Int("chars", len([]rune(text))).
		Str("provider", g.summarizer.Name()).
		Msg("Generating summary")

	gen, err := g.summarizer.Generate(ctx, text, SystemPrompt)
	if err != nil {
		log.Error().Err(err).Msg("Summarization provider failed")
		return newResult(subjectID, date, Fields{}, MessageLLMError), fmt.Errorf("%w: %w", ErrProvider, err)
	}
	if gen == nil {
		log.Error().Msg("Summarization provider returned no result")
		return newResult(subjectID, date, Fields{}, MessageLLMError), fmt.Errorf("%w: no result", ErrProvider)
	}

	values, err := Extract(gen.Content)
	if err != nil {
		log.Error().Err(err).Str("output", preview(gen.Content, 200)).Msg("Could not parse model output")
		return newResult(subjectID, date, Fields{}, MessageLLMError), err
	}

	fields, _ := Normalize(values)
	if err := writeCache(path, fields); err != nil {
		log.Error().Err(err).Str("path", path).Msg("Failed to save summary cache")
	} else {
		log.Info().Str("path", path).Msg("Summary saved")
	}

	return newResult(subjectID, date, fields, MessageGenerated), nil
}

func newResult(subjectID int64, date string, fields Fields, message string) *Result {
	return &Result{
		SubjectID: subjectID,
		Date:      date,
		Fields:    fields,
		Message:   message,
	}
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
