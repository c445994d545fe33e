package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"newsd/app/events"
)

type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

// Refresher fetches all subscribed feeds and returns how many new
// articles were stored.
type Refresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// Cleaner deletes unsaved articles past the retention horizon.
type Cleaner interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Summarizer runs one batch summarization pass.
type Summarizer interface {
	Run(ctx context.Context) (int, error)
}

// Analyzer recomputes the preference profile.
type Analyzer interface {
	Run(ctx context.Context) error
}

// Filter runs one relevance filtering pass.
type Filter interface {
	Run(ctx context.Context) (scored, filtered int, err error)
}

// Classifier runs one style classification pass.
type Classifier interface {
	Run(ctx context.Context) (int, error)
}

type Config struct {
	RefreshInterval   time.Duration
	CleanupInterval   time.Duration
	SummarizeInterval time.Duration
	FilterInterval    time.Duration
	RetentionDays     int
	AIEnabled         bool
}

// Service drives all periodic work from one goroutine. Four timers and
// shutdown are multiplexed in a single select; stages never overlap.
type Service struct {
	cfg        Config
	refresher  Refresher
	cleaner    Cleaner
	summarizer Summarizer
	analyzer   Analyzer
	filter     Filter
	classifier Classifier
	bus        *events.Bus

	mu        sync.Mutex
	state     State
	startedAt time.Time
}

func NewService(cfg Config, refresher Refresher, cleaner Cleaner, summarizer Summarizer,
	analyzer Analyzer, filter Filter, classifier Classifier, bus *events.Bus) *Service {
	return &Service{
		cfg:        cfg,
		refresher:  refresher,
		cleaner:    cleaner,
		summarizer: summarizer,
		analyzer:   analyzer,
		filter:     filter,
		classifier: classifier,
		bus:        bus,
		state:      StateIdle,
	}
}

// Run blocks until ctx is cancelled. A zero refresh interval disables
// the periodic loop entirely; the service still waits for shutdown so
// the IPC surface keeps working.
func (s *Service) Run(ctx context.Context) {
	s.setState(StateRunning)
	defer s.setState(StateStopped)

	if s.cfg.RefreshInterval <= 0 {
		slog.Info("Scheduler disabled, feeds will only refresh on demand")
		<-ctx.Done()
		return
	}

	refresh := time.NewTicker(s.cfg.RefreshInterval)
	defer refresh.Stop()

	// Disabled stages get a nil channel so their case never fires.
	var cleanup, summarize, filter <-chan time.Time
	if s.cfg.CleanupInterval > 0 {
		t := time.NewTicker(s.cfg.CleanupInterval)
		defer t.Stop()
		cleanup = t.C
	}
	if s.cfg.SummarizeInterval > 0 {
		t := time.NewTicker(s.cfg.SummarizeInterval)
		defer t.Stop()
		summarize = t.C
	}
	if s.cfg.FilterInterval > 0 {
		t := time.NewTicker(s.cfg.FilterInterval)
		defer t.Stop()
		filter = t.C
	}

	slog.Info("Scheduler started",
		"refresh_interval", s.cfg.RefreshInterval.String(),
		"cleanup_interval", s.cfg.CleanupInterval.String(),
		"summarize_interval", s.cfg.SummarizeInterval.String(),
		"filter_interval", s.cfg.FilterInterval.String(),
		"ai_enabled", s.cfg.AIEnabled)

	for {
		var refreshDue, cleanupDue, summarizeDue, filterDue bool
		select {
		case <-ctx.Done():
			slog.Info("Scheduler stopped")
			return
		case <-refresh.C:
			refreshDue = true
		case <-cleanup:
			cleanupDue = true
		case <-summarize:
			summarizeDue = true
		case <-filter:
			filterDue = true
		}

		// select breaks ties between ready cases at random, so collect
		// every stage due on this wakeup before running any. Due stages
		// then run in fixed order: summarization stays ahead of
		// filtering when their ticks coincide.
		select {
		case <-refresh.C:
			refreshDue = true
		default:
		}
		select {
		case <-cleanup:
			cleanupDue = true
		default:
		}
		select {
		case <-summarize:
			summarizeDue = true
		default:
		}
		select {
		case <-filter:
			filterDue = true
		default:
		}

		if refreshDue {
			s.runRefresh(ctx)
		}
		if cleanupDue {
			s.runCleanup(ctx)
		}
		if summarizeDue {
			s.runSummarize(ctx)
		}
		if filterDue {
			s.runFilter(ctx)
		}
	}
}

// RefreshNow runs a refresh pass outside the periodic loop, on the
// caller's goroutine. The completion event is published either way so
// subscribers see manual refreshes too.
func (s *Service) RefreshNow(ctx context.Context) (int, error) {
	return s.runRefresh(ctx)
}

// Status reports the service state and uptime.
func (s *Service) Status() (State, time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.startedAt.IsZero() {
		return s.state, 0
	}
	return s.state, time.Since(s.startedAt)
}

func (s *Service) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	if state == StateRunning {
		s.startedAt = time.Now()
	}
}

func (s *Service) runRefresh(ctx context.Context) (int, error) {
	count, err := s.refresher.RefreshAll(ctx)
	if err != nil {
		slog.Error("Feed refresh failed", "error", err)
	} else {
		slog.Info("Feed refresh completed", "new_articles", count)
	}
	s.bus.Publish(events.Event{Type: events.TypeRefreshDone, Count: count, Err: err})
	return count, err
}

func (s *Service) runCleanup(ctx context.Context) {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.RetentionDays)
	deleted, err := s.cleaner.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		slog.Error("Cleanup failed", "error", err)
	} else {
		slog.Info("Cleanup completed", "deleted", deleted, "retention_days", s.cfg.RetentionDays)
	}
	s.bus.Publish(events.Event{Type: events.TypeCleanupDone, Count: int(deleted), Err: err})
}

func (s *Service) runSummarize(ctx context.Context) {
	if !s.cfg.AIEnabled {
		return
	}
	count, err := s.summarizer.Run(ctx)
	if err != nil {
		slog.Error("Summarization pass failed", "error", err)
	} else if count > 0 {
		slog.Info("Summarization pass completed", "summarized", count)
	}
	s.bus.Publish(events.Event{Type: events.TypeSummarizeDone, Count: count, Err: err})
}

// runFilter recomputes preferences first so filtering always sees the
// freshest profile, then scores candidates and classifies styles.
func (s *Service) runFilter(ctx context.Context) {
	if !s.cfg.AIEnabled {
		return
	}
	if err := s.analyzer.Run(ctx); err != nil {
		slog.Error("Preference analysis failed", "error", err)
	}

	scored, filtered, err := s.filter.Run(ctx)
	if err != nil {
		slog.Error("Filtering pass failed", "error", err)
	} else if scored > 0 {
		slog.Info("Filtering pass completed", "scored", scored, "filtered", filtered)
	}
	s.bus.Publish(events.Event{Type: events.TypeFilterDone, Count: scored, Filtered: filtered, Err: err})

	if _, err := s.classifier.Run(ctx); err != nil {
		slog.Error("Classification pass failed", "error", err)
	}
}
