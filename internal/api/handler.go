package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/config"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/engine"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/logger"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/metrics"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/scoring"
)

// ProfileSource re-reads the threshold profile on demand.
type ProfileSource interface {
	Reload() (*config.Profile, error)
}

// Handler holds all HTTP handler dependencies.
type Handler struct {
	eng      *engine.Engine
	profiles ProfileSource
}

// New creates the HTTP handler and registers all routes. profiles may be
// nil when the server runs on built-in defaults; reload is then refused.
func New(eng *engine.Engine, profiles ProfileSource, log zerolog.Logger) http.Handler {
	h := &Handler{eng: eng, profiles: profiles}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(recovery(log))

	r.Route("/v1", func(r chi.Router) {
		r.Post("/scoring/risk", h.assessRisk)
		r.Post("/scoring/control", h.rateControl)
		r.Post("/scoring/controls/summary", h.summarizeControls)
		r.Post("/scoring/heatmap", h.heatmap)
		r.Post("/sampling", h.sample)
		r.Post("/anomalies", h.detectAnomalies)
		r.Post("/benford", h.benford)
		r.Post("/reconciliation", h.reconcile)

		r.Post("/analyses", h.analyze)
		r.Post("/analyses/batch", h.analyzeBatch)
		r.Get("/analyses/{id}", h.getAnalysis)

		r.Get("/profile", h.getProfile)
		r.Post("/profile/reload", h.reloadProfile)
	})
	r.Get("/healthz", h.healthz)
	r.Get("/readyz", h.readyz)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

// POST /v1/scoring/risk
func (h *Handler) assessRisk(w http.ResponseWriter, r *http.Request) {
	var req engine.RiskRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.eng.AssessRisk(req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/scoring/control
func (h *Handler) rateControl(w http.ResponseWriter, r *http.Request) {
	var req engine.ControlRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.eng.RateControl(req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type controlsBody struct {
	Controls []engine.ControlRequest `json:"controls"`
}

// POST /v1/scoring/controls/summary
func (h *Handler) summarizeControls(w http.ResponseWriter, r *http.Request) {
	var body controlsBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.eng.SummarizeControls(body.Controls)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type heatmapBody struct {
	Risks []scoring.RiskInput `json:"risks"`
}

// POST /v1/scoring/heatmap
func (h *Handler) heatmap(w http.ResponseWriter, r *http.Request) {
	var body heatmapBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.eng.Heatmap(body.Risks)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type samplingBody struct {
	Transactions []domain.Transaction `json:"transactions"`
	engine.SamplingParams
}

// POST /v1/sampling
func (h *Handler) sample(w http.ResponseWriter, r *http.Request) {
	var body samplingBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.eng.Sample(body.Transactions, body.SamplingParams)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type anomalyBody struct {
	Transactions []domain.Transaction `json:"transactions"`
	engine.AnomalyParams
}

// POST /v1/anomalies: per-method failures are reported inside the 200
// body; only a request that cannot run at all is an error.
func (h *Handler) detectAnomalies(w http.ResponseWriter, r *http.Request) {
	var body anomalyBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.eng.DetectAnomalies(body.Transactions, body.AnomalyParams)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// benfordBody accepts raw amounts or transactions; amounts win.
type benfordBody struct {
	Amounts      []decimal.Decimal    `json:"amounts"`
	Transactions []domain.Transaction `json:"transactions"`
	engine.BenfordParams
}

// POST /v1/benford: insufficient data is a 200 carrying the
// INSUFFICIENT_DATA conclusion.
func (h *Handler) benford(w http.ResponseWriter, r *http.Request) {
	var body benfordBody
	if !decode(w, r, &body) {
		return
	}
	amounts := body.Amounts
	if len(amounts) == 0 {
		amounts = domain.Amounts(body.Transactions)
	}
	res, err := h.eng.Benford(amounts, body.BenfordParams)
	if err != nil && res == nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type reconcileBody struct {
	Balances []domain.BalancePair `json:"balances"`
	engine.ReconcileParams
}

// POST /v1/reconciliation
func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	var body reconcileBody
	if !decode(w, r, &body) {
		return
	}
	res, err := h.eng.Reconcile(body.Balances, body.ReconcileParams)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// POST /v1/analyses: synchronous full analysis through the worker pool.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	var req engine.Request
	if !decode(w, r, &req) {
		return
	}
	rep, err := h.eng.ProcessSync(r.Context(), &req)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// POST /v1/analyses/batch: async analyses, polled via GET /v1/analyses/{id}.
func (h *Handler) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []*engine.Request
	if !decode(w, r, &reqs) {
		return
	}
	items, err := h.eng.SubmitBatch(reqs)
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	accepted := 0
	for _, it := range items {
		if it.Accepted {
			accepted++
		}
	}
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"total":    len(items),
		"accepted": accepted,
		"rejected": len(items) - accepted,
		"items":    items,
	})
}

// GET /v1/analyses/{id}
func (h *Handler) getAnalysis(w http.ResponseWriter, r *http.Request) {
	job, err := h.eng.Job(chi.URLParam(r, "id"))
	if err != nil {
		writeFailure(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// GET /v1/profile: active thresholds.
func (h *Handler) getProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.eng.Profile())
}

// POST /v1/profile/reload: re-read the profile from disk and swap it in.
func (h *Handler) reloadProfile(w http.ResponseWriter, r *http.Request) {
	if h.profiles == nil {
		writeError(w, http.StatusConflict, "server runs on built-in defaults; no profile file to reload")
		return
	}
	p, err := h.profiles.Reload()
	if err != nil {
		metrics.ProfileReloads.WithLabelValues("error").Inc()
		log := logger.FromContext(r.Context())
		log.Warn().Err(err).Msg("profile reload rejected")
		writeFailure(w, r, err)
		return
	}
	metrics.ProfileReloads.WithLabelValues("ok").Inc()
	h.eng.SwapProfile(p)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"version":  p.Version,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the analysis queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.eng.QueueUtilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
		"profile_version":   h.eng.Profile().Version,
	})
}
