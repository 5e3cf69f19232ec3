// Package janitor removes artifacts that no history record references.
// Such orphans are left behind when a ledger append fails after the upload
// and the immediate compensating delete also fails.
package janitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tjfontaine/genai-gateway/internal/storage"
)

const (
	DefaultSchedule    = "@hourly"
	DefaultGracePeriod = time.Hour
)

// Artifacts is a store the janitor can enumerate and prune.
type Artifacts interface {
	storage.ArtifactStore
	storage.ArtifactLister
}

// References reports which storage paths the ledger still points at.
type References interface {
	StoragePaths(ctx context.Context) (map[string]struct{}, error)
}

// Result summarizes one sweep.
type Result struct {
	Scanned int
	Deleted int
	Failed  int
}

type Janitor struct {
	artifacts Artifacts
	refs      References
	grace     time.Duration
	now       func() time.Time
	logger    *slog.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

type Option func(*Janitor)

// WithGracePeriod sets how old an unreferenced object must be before it is
// removed. Younger objects may belong to a generation still in flight.
func WithGracePeriod(d time.Duration) Option {
	return func(j *Janitor) {
		if d > 0 {
			j.grace = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(j *Janitor) { j.now = now }
}

func WithLogger(logger *slog.Logger) Option {
	return func(j *Janitor) {
		if logger != nil {
			j.logger = logger
		}
	}
}

func New(artifacts Artifacts, refs References, opts ...Option) *Janitor {
	j := &Janitor{
		artifacts: artifacts,
		refs:      refs,
		grace:     DefaultGracePeriod,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

var kinds = []string{storage.KindChat, storage.KindImage, storage.KindSpeech, storage.KindMusic}

// Sweep deletes every unreferenced object older than the grace period.
// Individual delete failures are counted and logged; the sweep continues.
func (j *Janitor) Sweep(ctx context.Context) (Result, error) {
	var res Result

	// Reading references before listing means an object uploaded and
	// recorded mid-sweep is either too young or already referenced.
	refs, err := j.refs.StoragePaths(ctx)
	if err != nil {
		return res, fmt.Errorf("load references: %w", err)
	}
	cutoff := j.now().Add(-j.grace)

	for _, kind := range kinds {
		objects, err := j.artifacts.List(ctx, kind+"/")
		if err != nil {
			return res, fmt.Errorf("list %s: %w", kind, err)
		}
		for _, obj := range objects {
			res.Scanned++
			if _, ok := refs[obj.Path]; ok || obj.Created.After(cutoff) {
				continue
			}
			if err := j.artifacts.Delete(ctx, obj.Path); err != nil {
				res.Failed++
				j.logger.Warn("orphan delete failed",
					slog.String("path", obj.Path),
					slog.String("error", err.Error()))
				continue
			}
			res.Deleted++
			j.logger.Info("orphan artifact removed",
				slog.String("path", obj.Path),
				slog.Int64("size", obj.Size),
				slog.Time("created", obj.Created))
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Start runs Sweep on schedule (standard cron syntax or a descriptor such
// as @hourly) until Stop.
func (j *Janitor) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.cron != nil {
		return errors.New("janitor already started")
	}

	logger := cronLogger{j.logger}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(schedule, j.run); err != nil {
		return fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	c.Start()
	j.cron = c
	j.logger.Info("janitor started",
		slog.String("schedule", schedule),
		slog.Duration("grace_period", j.grace))
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish or ctx
// to expire.
func (j *Janitor) Stop(ctx context.Context) error {
	j.mu.Lock()
	c := j.cron
	j.cron = nil
	j.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *Janitor) run() {
	start := j.now()
	res, err := j.Sweep(context.Background())
	attrs := []any{
		slog.Int("scanned", res.Scanned),
		slog.Int("deleted", res.Deleted),
		slog.Int("failed", res.Failed),
		slog.Duration("duration", j.now().Sub(start)),
	}
	if err != nil {
		j.logger.Error("janitor sweep failed", append(attrs, slog.String("error", err.Error()))...)
		return
	}
	j.logger.Info("janitor sweep completed", attrs...)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
