package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/benford"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/config"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/metrics"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/reconcile"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/sampling"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/scoring"
)

var (
	ErrQueueFull   = errors.New("analysis queue full")
	ErrTimeout     = errors.New("analysis timed out")
	ErrJobNotFound = errors.New("job not found")
)

// Engine runs analyses against the active threshold profile. The profile
// is swapped atomically on reload; every call works on one snapshot.
type Engine struct {
	profile  atomic.Pointer[config.Profile]
	registry *anomaly.Registry
	pool     *workerPool[*analysisWork]
	jobs     *JobStore
	log      zerolog.Logger
}

type analysisWork struct {
	req     *Request
	profile *config.Profile
	jobID   string
	resultC chan *Report
}

// New creates an Engine and starts its worker pool. Pool size and queue
// depth come from p and are fixed for the Engine's lifetime.
func New(ctx context.Context, p *config.Profile, registry *anomaly.Registry, log zerolog.Logger) *Engine {
	e := &Engine{
		registry: registry,
		jobs:     NewJobStore(p.Engine.MaxJobs),
		log:      log,
	}
	e.profile.Store(p)
	e.pool = newWorkerPool(ctx, p.Engine.Workers, p.Engine.QueueDepth, e.process)
	return e
}

// SwapProfile atomically replaces the active profile (used on hot-reload).
func (e *Engine) SwapProfile(p *config.Profile) {
	e.profile.Store(p)
}

// Profile returns the active profile.
func (e *Engine) Profile() *config.Profile {
	return e.profile.Load()
}

// Analyze runs a full analysis in the calling goroutine. The error is
// non-nil only for a malformed request; section failures are reported
// inside the Report.
func (e *Engine) Analyze(req *Request) (*Report, error) {
	sections, err := req.sections()
	if err != nil {
		return nil, err
	}
	return e.analyze(e.Profile(), req, sections), nil
}

// ProcessSync queues a full analysis and waits for it. It returns
// ErrQueueFull when the queue is full and ErrTimeout when the profile's
// analysis timeout elapses first.
func (e *Engine) ProcessSync(ctx context.Context, req *Request) (*Report, error) {
	if _, err := req.sections(); err != nil {
		return nil, err
	}
	p := e.Profile()
	w := &analysisWork{req: req, profile: p, resultC: make(chan *Report, 1)}
	if err := e.submit(w); err != nil {
		return nil, err
	}

	timeout := p.AnalysisTimeout()
	select {
	case rep := <-w.resultC:
		return rep, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BatchItem is the admission outcome of one request in a batch.
type BatchItem struct {
	JobID     string `json:"job_id,omitempty"`
	Accepted  bool   `json:"accepted"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
}

// SubmitBatch queues each request as an async job. A rejected request does
// not affect the others.
func (e *Engine) SubmitBatch(reqs []*Request) ([]BatchItem, error) {
	p := e.Profile()
	if len(reqs) == 0 {
		return nil, domain.Invalidf("batch is empty")
	}
	if len(reqs) > p.Engine.MaxBatch {
		return nil, domain.Invalidf("batch of %d exceeds the limit of %d", len(reqs), p.Engine.MaxBatch)
	}

	items := make([]BatchItem, len(reqs))
	for i, req := range reqs {
		if _, err := req.sections(); err != nil {
			items[i] = BatchItem{Error: err.Error(), ErrorKind: domain.ErrorKind(err)}
			continue
		}
		job, err := e.jobs.Create(uuid.NewString())
		if err != nil {
			items[i] = BatchItem{Error: err.Error(), ErrorKind: "unavailable"}
			continue
		}
		if err := e.submit(&analysisWork{req: req, profile: p, jobID: job.ID}); err != nil {
			e.jobs.Fail(job.ID, err)
			items[i] = BatchItem{JobID: job.ID, Error: err.Error(), ErrorKind: "unavailable"}
			continue
		}
		items[i] = BatchItem{JobID: job.ID, Accepted: true}
	}
	return items, nil
}

// Job returns a copy of an async job.
func (e *Engine) Job(id string) (*Job, error) {
	return e.jobs.Get(id)
}

// QueueUtilization returns queue used / capacity (0–1).
func (e *Engine) QueueUtilization() float64 {
	if e.pool.QueueCap() == 0 {
		return 0
	}
	return float64(e.pool.QueueLen()) / float64(e.pool.QueueCap())
}

// Shutdown drains the pool gracefully.
func (e *Engine) Shutdown() {
	e.pool.Drain()
}

func (e *Engine) submit(w *analysisWork) error {
	if !e.pool.Submit(w) {
		metrics.AnalysesDropped.Inc()
		return fmt.Errorf("%w (capacity %d)", ErrQueueFull, e.pool.QueueCap())
	}
	metrics.AnalysesEnqueued.Inc()
	metrics.QueueUtilization.Set(e.QueueUtilization())
	return nil
}

func (e *Engine) process(_ context.Context, w *analysisWork) {
	defer metrics.QueueUtilization.Set(e.QueueUtilization())
	if w.jobID != "" {
		e.jobs.Start(w.jobID)
	}
	sections, _ := w.req.sections()
	rep := e.analyze(w.profile, w.req, sections)
	if w.jobID != "" {
		e.jobs.Complete(w.jobID, rep)
	}
	if w.resultC != nil {
		w.resultC <- rep
	}
}

func (e *Engine) analyze(p *config.Profile, req *Request, sections []Section) *Report {
	start := time.Now()
	rep := &Report{
		ID:             req.ID,
		ProfileVersion: p.Version,
		Population:     len(req.Transactions),
		Balances:       len(req.Balances),
	}
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}

	for _, s := range sections {
		switch s {
		case SectionSampling:
			rep.Sampling = runSection(s, func() (*sampling.Selection, error) {
				return sample(p, req.Transactions, req.Sampling)
			})
		case SectionAnomalies:
			rep.Anomalies = runSection(s, func() (*anomaly.Report, error) {
				return detect(p, e.registry, req.Transactions, req.Anomalies)
			})
			observeAnomalies(rep.Anomalies.Result)
		case SectionBenford:
			rep.Benford = runSection(s, func() (*benford.Result, error) {
				return benfordTest(p, domain.Amounts(req.Transactions), req.Benford)
			})
			observeBenford(rep.Benford.Result)
		case SectionReconciliation:
			rep.Reconciliation = runSection(s, func() (*reconcile.Report, error) {
				return reconcileBalances(p, req.Balances, req.Reconciliation)
			})
			observeReconciliation(rep.Reconciliation.Result)
		case SectionHeatmap:
			rep.Heatmap = runSection(s, func() (*scoring.HeatmapData, error) {
				return heatmap(p, req.Risks)
			})
		}
	}

	elapsed := time.Since(start)
	rep.DurationMs = elapsed.Milliseconds()
	metrics.AnalysesProcessed.Inc()
	metrics.AnalysisDuration.Observe(float64(elapsed.Microseconds()) / 1000)

	ev := e.log.Info().
		Str("analysis_id", rep.ID).
		Str("profile_version", p.Version).
		Int("transactions", rep.Population).
		Int("balances", rep.Balances).
		Dur("duration", elapsed)
	if rep.Anomalies != nil && rep.Anomalies.Result != nil {
		ev = ev.Int("flagged", rep.Anomalies.Result.FlaggedTransactions).
			Int("failed_methods", len(rep.Anomalies.Result.Failed()))
	}
	if rep.Benford != nil && rep.Benford.Result != nil {
		ev = ev.Str("benford", string(rep.Benford.Result.Conclusion))
	}
	ev.Msg("analysis complete")
	return rep
}

// runSection isolates one section: its error or panic is recorded in the
// returned result and never reaches sibling sections.
func runSection[T any](s Section, fn func() (T, error)) (res *SectionResult[T]) {
	res = &SectionResult[T]{}
	defer func() {
		if p := recover(); p != nil {
			res.Error = fmt.Sprintf("%s panicked: %v", s, p)
			res.ErrorKind = "internal"
			metrics.SectionErrors.WithLabelValues(string(s), res.ErrorKind).Inc()
		}
	}()
	v, err := fn()
	res.Result = v
	if err != nil {
		res.Error = err.Error()
		res.ErrorKind = domain.ErrorKind(err)
		metrics.SectionErrors.WithLabelValues(string(s), res.ErrorKind).Inc()
	}
	return res
}

func (r *Request) sections() ([]Section, error) {
	if r == nil {
		return nil, domain.Invalidf("request body is required")
	}
	if len(r.Sections) > 0 {
		for _, s := range r.Sections {
			switch s {
			case SectionSampling, SectionAnomalies, SectionBenford, SectionReconciliation, SectionHeatmap:
			default:
				return nil, domain.Invalidf("unknown section %q", s)
			}
		}
		return r.Sections, nil
	}
	var out []Section
	if len(r.Transactions) > 0 {
		out = append(out, SectionSampling, SectionAnomalies, SectionBenford)
	}
	if len(r.Balances) > 0 {
		out = append(out, SectionReconciliation)
	}
	if len(r.Risks) > 0 {
		out = append(out, SectionHeatmap)
	}
	if len(out) == 0 {
		return nil, domain.Invalidf("request has no transactions, balances or risks")
	}
	return out, nil
}

func observeAnomalies(rep *anomaly.Report) {
	if rep == nil {
		return
	}
	for _, res := range rep.Results {
		if res.Err != nil {
			metrics.SectionErrors.WithLabelValues("anomaly:"+string(res.Method), res.ErrorKind).Inc()
			continue
		}
		for _, f := range res.Flags {
			metrics.AnomalyFlags.WithLabelValues(string(f.Method), string(f.Severity)).Inc()
		}
	}
}

func observeBenford(res *benford.Result) {
	if res != nil {
		metrics.BenfordConclusions.WithLabelValues(string(res.Conclusion)).Inc()
	}
}

func observeReconciliation(rep *reconcile.Report) {
	if rep != nil {
		metrics.UnpricedPairs.Add(float64(rep.UnpricedPairs))
	}
}

// The single-operation entry points below serve callers that want one
// component rather than a full analysis.

func (e *Engine) Sample(txns []domain.Transaction, params SamplingParams) (*sampling.Selection, error) {
	return sample(e.Profile(), txns, params)
}

func (e *Engine) DetectAnomalies(txns []domain.Transaction, params AnomalyParams) (*anomaly.Report, error) {
	rep, err := detect(e.Profile(), e.registry, txns, params)
	observeAnomalies(rep)
	return rep, err
}

// Benford returns a Result alongside an ErrInsufficientData error when the
// sample is too small.
func (e *Engine) Benford(amounts []decimal.Decimal, params BenfordParams) (*benford.Result, error) {
	res, err := benfordTest(e.Profile(), amounts, params)
	observeBenford(res)
	return res, err
}

func (e *Engine) Reconcile(pairs []domain.BalancePair, params ReconcileParams) (*reconcile.Report, error) {
	rep, err := reconcileBalances(e.Profile(), pairs, params)
	observeReconciliation(rep)
	return rep, err
}

func (e *Engine) AssessRisk(req RiskRequest) (*RiskAssessment, error) {
	return assessRisk(e.Profile(), req)
}

func (e *Engine) RateControl(req ControlRequest) (*ControlAssessment, error) {
	return rateControl(e.Profile(), req)
}

// SummarizeControls rates every control, then counts them per rating.
func (e *Engine) SummarizeControls(reqs []ControlRequest) (*scoring.ControlSummaryData, error) {
	return summarizeControls(e.Profile(), reqs)
}

func (e *Engine) Heatmap(risks []scoring.RiskInput) (*scoring.HeatmapData, error) {
	return heatmap(e.Profile(), risks)
}
