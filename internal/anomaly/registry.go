package anomaly

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/domain"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/stats"
)

// Registry maps methods to their detectors.
// It is safe for concurrent reads; Register should only be called at startup.
type Registry struct {
	mu        sync.RWMutex
	detectors map[Method]Detector
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{detectors: make(map[Method]Detector)}
}

// DefaultRegistry returns a registry holding every built-in detector.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(ZScore{})
	r.Register(IQR{})
	r.Register(RoundNumber{})
	r.Register(Timing{})
	r.Register(Duplicate{})
	r.Register(RapidSuccession{})
	r.Register(Split{})
	r.Register(Holiday{})
	r.Register(Rules{})
	return r
}

// Register adds a detector. Panics on duplicate method to surface misconfiguration early.
func (r *Registry) Register(d Detector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.detectors[d.Method()]; exists {
		panic(fmt.Sprintf("anomaly registry: duplicate method %q", d.Method()))
	}
	r.detectors[d.Method()] = d
}

// Get returns the detector for m.
func (r *Registry) Get(m Method) (Detector, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.detectors[m]
	if !ok {
		return nil, domain.Invalidf("no detector registered for method %q", m)
	}
	return d, nil
}

// Methods returns all registered methods, sorted.
func (r *Registry) Methods() []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Method, 0, len(r.detectors))
	for m := range r.detectors {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MethodResult is the outcome of one method.
type MethodResult struct {
	Method    Method `json:"method"`
	Flags     []Flag `json:"flags"`
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"error_kind,omitempty"`
	Err       error  `json:"-"`
}

// Report collects the results of a Run.
type Report struct {
	Population int            `json:"population"`
	Results    []MethodResult `json:"results"`
	// FlaggedTransactions counts distinct transactions with at least one flag.
	FlaggedTransactions int `json:"flagged_transactions"`
	// Statistics describes the population amounts the outlier methods see.
	Statistics stats.Summary `json:"statistics"`
}

// Flags returns every flag of every successful method.
func (r *Report) Flags() []Flag {
	var out []Flag
	for _, res := range r.Results {
		out = append(out, res.Flags...)
	}
	return out
}

// Failed returns the results whose method returned an error.
func (r *Report) Failed() []MethodResult {
	var out []MethodResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Run executes methods in the given order (CoreMethods when empty). A failing
// method records its error in its own MethodResult and the rest still run.
func (r *Registry) Run(txns []domain.Transaction, methods []Method, cfg Config) *Report {
	if len(methods) == 0 {
		methods = CoreMethods
	}
	rep := &Report{Population: len(txns), Statistics: stats.Describe(domain.FloatAmounts(txns))}
	flagged := make(map[string]bool)
	for _, m := range methods {
		res := MethodResult{Method: m, Flags: []Flag{}}
		flags, err := r.detect(m, txns, cfg)
		if err != nil {
			res.Err = err
			res.Error = err.Error()
			res.ErrorKind = domain.ErrorKind(err)
		} else {
			res.Flags = flags
			for _, f := range flags {
				flagged[f.TransactionID] = true
			}
		}
		rep.Results = append(rep.Results, res)
	}
	rep.FlaggedTransactions = len(flagged)
	return rep
}

func (r *Registry) detect(m Method, txns []domain.Transaction, cfg Config) (flags []Flag, err error) {
	d, err := r.Get(m)
	if err != nil {
		return nil, err
	}
	defer func() {
		if p := recover(); p != nil {
			flags, err = nil, fmt.Errorf("detector %s panicked: %v", m, p)
		}
	}()
	flags, err = d.Detect(txns, cfg)
	if flags == nil {
		flags = []Flag{}
	}
	return flags, err
}
