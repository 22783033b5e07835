package problems

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/learnpalm/practice/internal/models"
)

// PartitionReader fetches every raw document of a partition. A missing
// partition yields an empty slice; connectivity failures and timeouts wrap
// models.ErrStoreUnavailable.
type PartitionReader interface {
	ListDocuments(ctx context.Context, partition string) ([]models.RawDocument, error)
}

// Query is one retrieval request. Values are free text and normalized here.
type Query struct {
	Skill               string
	Type                string
	Difficulty          string
	QuestionLanguage    string
	ExplanationLanguage string
}

// Result is the assembled response of one retrieval.
type Result struct {
	Problems            []models.ProblemItem `json:"problems"`
	Total               int                  `json:"total"`
	QuestionLanguage    string               `json:"questionLanguage"`
	ExplanationLanguage string               `json:"explanationLanguage"`
	Partitions          []string             `json:"partitions"`
}

// ItemRef names one served item for grading. Skill and Partition, when
// given, select the same partitions the item was served from; a qualified
// id ("<partition-slug>/<id>") resolves in any mode.
type ItemRef struct {
	ID        string
	Skill     string
	Partition string
}

// Statistics counts items per "<section> - <type>".
type Statistics struct {
	Stats map[string]int `json:"stats"`
	Total int            `json:"total"`
}

// Options tune a Pipeline.
type Options struct {
	// Timeout bounds all store reads of one invocation. Zero disables it.
	Timeout time.Duration

	// Concurrency caps parallel partition reads. Values below 1 mean 1.
	Concurrency int

	Logger *slog.Logger
}

// Pipeline resolves, reads, normalizes, filters and localizes problems.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	resolver    *Resolver
	reader      PartitionReader
	timeout     time.Duration
	concurrency int
	log         *slog.Logger
}

// NewPipeline wires a pipeline over reader.
func NewPipeline(resolver *Resolver, reader PartitionReader, opts Options) *Pipeline {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{
		resolver:    resolver,
		reader:      reader,
		timeout:     opts.Timeout,
		concurrency: opts.Concurrency,
		log:         opts.Logger,
	}
}

// Run executes one retrieval.
func (p *Pipeline) Run(ctx context.Context, q Query) (*Result, error) {
	qLang := strings.TrimSpace(q.QuestionLanguage)
	if qLang == "" {
		qLang = models.FallbackLanguage
	}
	eLang := strings.TrimSpace(q.ExplanationLanguage)
	if eLang == "" {
		eLang = models.FallbackLanguage
	}

	skill := normalizeKey(q.Skill)
	partitions := p.resolver.Resolve(skill)

	perPartition, err := p.collect(ctx, partitions, skill)
	if err != nil {
		return nil, err
	}
	items := merge(perPartition)

	filter := Filter{Type: q.Type, Difficulty: q.Difficulty, Skill: skill}
	problems := LocalizeAll(filter.Apply(items), qLang, eLang)

	p.log.Debug("problems retrieved",
		slog.String("skill", skill),
		slog.Int("partitions", len(partitions)),
		slog.Int("normalized", len(items)),
		slog.Int("matched", len(problems)),
	)

	return &Result{
		Problems:            problems,
		Total:               len(problems),
		QuestionLanguage:    qLang,
		ExplanationLanguage: eLang,
		Partitions:          partitions,
	}, nil
}

// FindByID resolves a served item for grading. Items are not localized.
// A bare id shared by several of the read partitions is rejected as
// ambiguous rather than guessed.
func (p *Pipeline) FindByID(ctx context.Context, ref ItemRef) (models.ProblemItem, error) {
	id := strings.TrimSpace(ref.ID)
	partitions, err := p.lookupPartitions(ref)
	if err != nil {
		return models.ProblemItem{}, err
	}

	perPartition, err := p.collect(ctx, partitions, normalizeKey(ref.Skill))
	if err != nil {
		return models.ProblemItem{}, err
	}

	var found []models.ProblemItem
	for _, items := range perPartition {
		for _, item := range items {
			if item.ID == id || qualifyID(item.Partition, item.ID) == id {
				found = append(found, item)
			}
		}
	}

	switch len(found) {
	case 0:
		return models.ProblemItem{}, fmt.Errorf("problem %q: %w", id, models.ErrNotFound)
	case 1:
		return found[0], nil
	default:
		return models.ProblemItem{}, fmt.Errorf("%w: problem id %q exists in several partitions, pass its partition", models.ErrInvalidRequest, id)
	}
}

func (p *Pipeline) lookupPartitions(ref ItemRef) ([]string, error) {
	partition := strings.TrimSpace(ref.Partition)
	if partition == "" {
		return p.resolver.Resolve(ref.Skill), nil
	}
	if partition == p.resolver.Shared() {
		return []string{partition}, nil
	}
	for _, known := range p.resolver.Partitions() {
		if known == partition {
			return []string{partition}, nil
		}
	}
	return nil, fmt.Errorf("partition %q: %w", partition, models.ErrNotFound)
}

// Statistics counts every item across all partitions by section and type.
func (p *Pipeline) Statistics(ctx context.Context) (*Statistics, error) {
	perPartition, err := p.collect(ctx, p.resolver.Resolve(""), "")
	if err != nil {
		return nil, err
	}
	items := merge(perPartition)

	stats := make(map[string]int)
	for _, item := range items {
		section := orUnknown(item.Section)
		typ := orUnknown(item.Type)
		stats[section+" - "+typ]++
	}
	return &Statistics{Stats: stats, Total: len(items)}, nil
}

// collect reads partitions concurrently and normalizes each one. Ids are
// unique within a partition. Any read failure fails the whole call.
func (p *Pipeline) collect(ctx context.Context, partitions []string, skill string) ([][]models.ProblemItem, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	perPartition := make([][]models.ProblemItem, len(partitions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for i, partition := range partitions {
		g.Go(func() error {
			docs, err := p.reader.ListDocuments(gctx, partition)
			if err != nil {
				return fmt.Errorf("read partition %q: %w", partition, classify(err))
			}
			var items []models.ProblemItem
			for _, doc := range docs {
				items = append(items, Normalize(doc, partition, skill)...)
			}
			uniqueIDs(items)
			perPartition[i] = items
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return perPartition, nil
}

// merge concatenates partitions in order. Ids found in more than one
// partition are qualified with their partition.
func merge(perPartition [][]models.ProblemItem) []models.ProblemItem {
	qualifyShared(perPartition)

	total := 0
	for _, items := range perPartition {
		total += len(items)
	}
	out := make([]models.ProblemItem, 0, total)
	for _, items := range perPartition {
		out = append(out, items...)
	}
	uniqueIDs(out)
	return out
}

func classify(err error) error {
	if errors.Is(err, models.ErrStoreUnavailable) || errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", models.ErrStoreUnavailable, err)
	}
	return err
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
