// internal/evaluation/reporter.go
package evaluation

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mwiater/cardia/internal/classifier"
	"github.com/mwiater/cardia/internal/logging"
)

var (
	// ErrNoArtifacts is returned by Compare when the directory holds no artifacts.
	ErrNoArtifacts = errors.New("no model artifacts found")
	// ErrModelNotRanked is returned by Detail for a key absent from the ranking.
	ErrModelNotRanked = errors.New("model is not in the ranking")
)

// Loader opens the artifact at path.
type Loader func(path string) (classifier.Classifier, error)

// LoadArtifact is the default Loader.
func LoadArtifact(path string) (classifier.Classifier, error) {
	art, err := classifier.Load(path)
	if err != nil {
		return nil, err
	}
	return art, nil
}

type batchPredictor interface {
	PredictBatch(rows [][]float64) ([]int, error)
}

// Evaluation is one artifact's score against the test set.
type Evaluation struct {
	Label   string  `json:"model" yaml:"model"`
	Tag     string  `json:"tag" yaml:"tag"`
	File    string  `json:"file" yaml:"file"`
	Path    string  `json:"-" yaml:"-"`
	Metrics Metrics `json:"metrics" yaml:"metrics"`
}

// Failure records an artifact that could not be loaded or scored.
type Failure struct {
	File   string `json:"file" yaml:"file"`
	Label  string `json:"model" yaml:"model"`
	Reason string `json:"reason" yaml:"reason"`
}

// Comparison is the outcome of one Compare run. Ranked is ordered by
// weighted F1, highest first; equal scores keep discovery order.
type Comparison struct {
	Dir      string       `json:"models_dir" yaml:"models_dir"`
	Ranked   []Evaluation `json:"ranked" yaml:"ranked"`
	Failures []Failure    `json:"failures,omitempty" yaml:"failures,omitempty"`
}

// Best returns the top ranked model.
func (c *Comparison) Best() (Evaluation, bool) {
	if c == nil || len(c.Ranked) == 0 {
		return Evaluation{}, false
	}
	return c.Ranked[0], true
}

// Find returns the ranked entry for key, matched first by label (in rank
// order) and then by filename.
func (c *Comparison) Find(key string) (Evaluation, bool) {
	if c == nil {
		return Evaluation{}, false
	}
	key = strings.TrimSpace(key)
	for _, ev := range c.Ranked {
		if strings.EqualFold(ev.Label, key) {
			return ev, true
		}
	}
	for _, ev := range c.Ranked {
		if ev.File == key {
			return ev, true
		}
	}
	return Evaluation{}, false
}

// Reporter scores every artifact in a directory against one test set.
type Reporter struct {
	test    *TestSet
	ext     string
	workers int
	load    Loader
	log     *zap.Logger
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithExtension sets the artifact extension to scan for.
func WithExtension(ext string) Option {
	return func(r *Reporter) {
		if ext != "" {
			r.ext = ext
		}
	}
}

// WithWorkers bounds how many artifacts are evaluated at once.
func WithWorkers(n int) Option {
	return func(r *Reporter) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithLoader replaces the artifact loader.
func WithLoader(l Loader) Option {
	return func(r *Reporter) {
		if l != nil {
			r.load = l
		}
	}
}

// WithLogger sets the logger used for progress and failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Reporter) {
		if l != nil {
			r.log = l
		}
	}
}

// NewReporter builds a Reporter for test.
func NewReporter(test *TestSet, opts ...Option) *Reporter {
	r := &Reporter{
		test:    test,
		ext:     DefaultExtension,
		workers: runtime.NumCPU(),
		load:    LoadArtifact,
		log:     logging.L(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type outcome struct {
	ev  Evaluation
	err error
}

// Compare loads and scores every artifact in dir. An artifact that fails to
// load or predict is recorded in Failures and left out of the ranking.
func (r *Reporter) Compare(ctx context.Context, dir string) (*Comparison, error) {
	if r.test == nil || r.test.Len() == 0 {
		return nil, errors.New("reporter has no test set")
	}
	candidates, err := Discover(dir, r.ext)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w in %s (*%s)", ErrNoArtifacts, dir, r.ext)
	}

	start := time.Now()
	results := make([]outcome, len(candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for i, c := range candidates {
		i, c := i, c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ev, err := r.evaluate(c)
			results[i] = outcome{ev: ev, err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cmp := &Comparison{Dir: dir, Ranked: make([]Evaluation, 0, len(candidates))}
	for i, res := range results {
		if res.err != nil {
			c := candidates[i]
			r.log.Warn("artifact skipped", zap.String("file", c.File), zap.Error(res.err))
			cmp.Failures = append(cmp.Failures, Failure{File: c.File, Label: c.Label, Reason: res.err.Error()})
			continue
		}
		cmp.Ranked = append(cmp.Ranked, res.ev)
	}
	sort.SliceStable(cmp.Ranked, func(i, j int) bool {
		return cmp.Ranked[i].Metrics.F1 > cmp.Ranked[j].Metrics.F1
	})

	r.log.Info("comparison complete",
		zap.String("dir", dir),
		zap.Int("ranked", len(cmp.Ranked)),
		zap.Int("failed", len(cmp.Failures)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return cmp, nil
}

// Detail reloads the ranked artifact identified by key and returns its full
// evaluation.
func (r *Reporter) Detail(ctx context.Context, cmp *Comparison, key string) (*Evaluation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ranked, ok := cmp.Find(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrModelNotRanked, key)
	}
	ev, err := r.evaluate(Candidate{Path: ranked.Path, File: ranked.File, Tag: ranked.Tag, Label: ranked.Label})
	if err != nil {
		return nil, fmt.Errorf("detail %s: %w", ranked.File, err)
	}
	return &ev, nil
}

func (r *Reporter) evaluate(c Candidate) (Evaluation, error) {
	model, err := r.load(c.Path)
	if err != nil {
		return Evaluation{}, err
	}
	preds, err := predictAll(model, r.test.Features)
	if err != nil {
		return Evaluation{}, fmt.Errorf("predict: %w", err)
	}
	m, err := Evaluate(r.test.Labels, preds)
	if err != nil {
		return Evaluation{}, err
	}
	r.log.Debug("artifact evaluated", zap.String("file", c.File), zap.Float64("f1", m.F1))
	return Evaluation{Label: c.Label, Tag: c.Tag, File: c.File, Path: c.Path, Metrics: m}, nil
}

func predictAll(model classifier.Classifier, rows [][]float64) ([]int, error) {
	if b, ok := model.(batchPredictor); ok {
		return b.PredictBatch(rows)
	}
	preds := make([]int, len(rows))
	for i, row := range rows {
		p, err := model.Predict(row)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		preds[i] = p
	}
	return preds, nil
}
