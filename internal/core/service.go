package core

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"giftmatch/internal/logging"
	"giftmatch/internal/rows"
	"giftmatch/pkg/domain"
)

// Service orchestrates a drive: it loads the ledger from a snapshot
// store, runs imports and the match pipeline, and persists the result
// only when a run came through clean.
type Service struct {
	ledger  *Ledger
	store   domain.SnapshotStore
	log     logging.Logger
	metrics MetricsRecorder
	tracer  Tracer

	matchCfg MatchConfig
	optCfg   OptimizeConfig
	rng      *rand.Rand
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

func WithServiceLogger(log logging.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

func WithMetrics(m MetricsRecorder) ServiceOption {
	return func(s *Service) { s.metrics = m }
}

func WithTracer(t Tracer) ServiceOption {
	return func(s *Service) { s.tracer = t }
}

func WithMatchConfig(cfg MatchConfig) ServiceOption {
	return func(s *Service) { s.matchCfg = cfg }
}

func WithOptimizeConfig(cfg OptimizeConfig) ServiceOption {
	return func(s *Service) { s.optCfg = cfg }
}

// WithRand injects the random source used by the optimizer. Seed it
// explicitly to make a run reproducible.
func WithRand(rng *rand.Rand) ServiceOption {
	return func(s *Service) { s.rng = rng }
}

// WithLedger replaces the ledger, mostly for tests that prepare state
// directly.
func WithLedger(l *Ledger) ServiceOption {
	return func(s *Service) { s.ledger = l }
}

// NewService builds a service on the given snapshot store.
func NewService(store domain.SnapshotStore, opts ...ServiceOption) *Service {
	s := &Service{
		store:    store,
		log:      logging.NopLogger{},
		metrics:  NopMetricsRecorder{},
		tracer:   NopTracer{},
		matchCfg: DefaultMatchConfig(),
		optCfg:   DefaultOptimizeConfig(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ledger == nil {
		s.ledger = NewLedger(WithLogger(s.log))
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Ledger exposes the query surface for reports and tests.
func (s *Service) Ledger() *Ledger { return s.ledger }

// Load populates the ledger from the snapshot store. A store with no
// snapshot yet yields an empty drive.
func (s *Service) Load(ctx context.Context) error {
	start := time.Now()
	ctx, span := s.tracer.StartSpan(ctx, "load")
	snap, ok, err := s.store.Load(ctx)
	if err == nil && ok {
		err = s.ledger.ImportSnapshot(snap)
	}
	span.End(err)
	s.metrics.Observe(ctx, "load", err == nil, time.Since(start))
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	if ok {
		s.log.Info("loaded snapshot",
			"donors", len(snap.Donors), "recipients", len(snap.Recipients), "donations", len(snap.Donations))
	}
	return nil
}

// UpdateDonors admits a donor import batch and persists on success.
func (s *Service) UpdateDonors(ctx context.Context, batch []rows.Row) (domain.AdmitResult, error) {
	start := time.Now()
	ctx, span := s.tracer.StartSpan(ctx, "update_donors")
	res := s.ledger.AdmitDonors(batch)
	var err error
	if res.Ok() {
		err = s.persist(ctx)
	}
	span.End(err)
	s.metrics.Observe(ctx, "update_donors", err == nil && res.Ok(), time.Since(start))
	return res, err
}

// UpdateRecipients admits a recipient import batch and persists on
// success.
func (s *Service) UpdateRecipients(ctx context.Context, batch []rows.Row) (domain.AdmitResult, error) {
	start := time.Now()
	ctx, span := s.tracer.StartSpan(ctx, "update_recipients")
	res := s.ledger.AdmitRecipients(batch)
	var err error
	if res.Ok() {
		err = s.persist(ctx)
	}
	span.End(err)
	s.metrics.Observe(ctx, "update_recipients", err == nil && res.Ok(), time.Since(start))
	return res, err
}

// MatchReport aggregates one full pipeline run.
type MatchReport struct {
	Match    MatchResult
	Optimize OptimizeResult
	Result   domain.Result
}

// Match runs the pipeline: greedy matcher, optimizer, validator, then
// persistence. Validation failure or a persistence error leaves the
// previous on-disk state untouched.
func (s *Service) Match(ctx context.Context) (MatchReport, error) {
	start := time.Now()
	ctx, span := s.tracer.StartSpan(ctx, "match")
	report, err := s.match(ctx)
	span.End(err)
	s.metrics.Observe(ctx, "match", err == nil, time.Since(start))
	return report, err
}

func (s *Service) match(ctx context.Context) (MatchReport, error) {
	var report MatchReport
	matcher := NewMatcher(s.matchCfg, s.log)
	report.Match = matcher.Run(s.ledger)
	if !report.Match.Success {
		return report, fmt.Errorf("matcher failed")
	}
	s.log.Info("matcher finished", "new_donations", report.Match.NewDonations)

	optimizer := NewOptimizer(s.optCfg, s.rng, s.log)
	report.Optimize = optimizer.Run(s.ledger)
	s.log.Info("optimizer finished",
		"trials", report.Optimize.Trials, "swaps", report.Optimize.Swaps,
		"score", report.Optimize.FinalScore)
	if sm, ok := s.metrics.(SessionMetrics); ok {
		sm.ObserveMatch(report.Match.NewDonations)
		sm.ObserveOptimize(report.Optimize.Trials, report.Optimize.Swaps, report.Optimize.FinalScore)
	}

	result, err := s.ledger.Validate(ctx)
	report.Result = result
	if err != nil {
		return report, fmt.Errorf("validate: %w", err)
	}
	if err := s.persist(ctx); err != nil {
		return report, err
	}
	return report, nil
}

// Validate runs the invariant rules without mutating anything.
func (s *Service) Validate(ctx context.Context) (domain.Result, error) {
	return s.ledger.Validate(ctx)
}

func (s *Service) persist(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Save(ctx, s.ledger.ExportSnapshot()); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
