// Package scanner decides whether a URL is safe to keep in chat. It submits
// the URL to a sandbox-style primary provider, polls for the verdict with a
// bounded number of attempts, escalates to a reputation-aggregator fallback
// when the primary is unavailable or ambiguous, and reconciles both
// vocabularies into a single Verdict. Results are cached for a freshness
// window so repeated links do not burn provider quota.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklahomer/go-kasumi/logger"
	"golang.org/x/sync/singleflight"

	"github.com/poppy-bot/poppy/internal/store"
)

// Config contains tuning knobs for the verdict engine.
type Config struct {
	// CacheTTL is the freshness window for cached verdicts. Records older
	// than this are re-scanned.
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// PrimaryPollInterval is the delay before each primary report fetch.
	PrimaryPollInterval time.Duration `json:"primary_poll_interval" yaml:"primary_poll_interval"`
	// PrimaryPollAttempts bounds the number of primary report fetches.
	PrimaryPollAttempts int `json:"primary_poll_attempts" yaml:"primary_poll_attempts"`

	// FallbackPollInterval is the delay before each fallback report fetch.
	FallbackPollInterval time.Duration `json:"fallback_poll_interval" yaml:"fallback_poll_interval"`
	// FallbackPollAttempts bounds the number of fallback report fetches.
	FallbackPollAttempts int `json:"fallback_poll_attempts" yaml:"fallback_poll_attempts"`
}

// NewConfig returns a Config with the stock polling budget: up to two minutes
// on the primary provider and another minute and a half on the fallback.
func NewConfig() *Config {
	return &Config{
		CacheTTL:             24 * time.Hour,
		PrimaryPollInterval:  10 * time.Second,
		PrimaryPollAttempts:  12,
		FallbackPollInterval: 15 * time.Second,
		FallbackPollAttempts: 6,
	}
}

// PrimaryScanner submits URLs to the primary provider and fetches reports.
// Report returns (nil, nil) while the report is not ready.
type PrimaryScanner interface {
	Submit(ctx context.Context, target string) (string, error)
	Report(ctx context.Context, handle string) (*PrimaryReport, error)
	Name() string
}

// FallbackScanner submits URLs to the fallback provider and fetches reports.
// A returned report is terminal only when Completed() is true.
type FallbackScanner interface {
	Submit(ctx context.Context, target string) (string, error)
	Report(ctx context.Context, handle string) (*FallbackReport, error)
	Name() string
}

// Engine coordinates both providers and the verdict cache. Each CheckURL call
// runs sequentially; distinct URLs may be checked concurrently, and
// concurrent checks of the same URL are collapsed into one scan.
type Engine struct {
	config   *Config
	store    store.ScanStore
	primary  PrimaryScanner
	fallback FallbackScanner

	sleep func(ctx context.Context, d time.Duration) error
	group singleflight.Group
}

// EngineOption is a functional option for Engine.
type EngineOption func(*Engine)

// WithSleeper replaces the delay between poll attempts. Tests inject an
// instant sleeper so polling bounds can be asserted with attempt counters.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) EngineOption {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// NewEngine creates a verdict engine over the given cache store and providers.
func NewEngine(config *Config, scanStore store.ScanStore, primary PrimaryScanner, fallback FallbackScanner, options ...EngineOption) *Engine {
	e := &Engine{
		config:   config,
		store:    scanStore,
		primary:  primary,
		fallback: fallback,
		sleep:    sleepContext,
	}
	for _, opt := range options {
		opt(e)
	}
	return e
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// scanState enumerates the reconciliation state machine.
type scanState int

const (
	stateCacheCheck scanState = iota
	statePrimarySubmit
	statePrimaryPoll
	stateFallbackSubmit
	stateFallbackPoll
	stateDone
)

// attempt accumulates the evidence of one in-flight reconciliation run.
// It lives only for the duration of a single check call.
type attempt struct {
	target  string
	verdict Verdict

	primaryHandle     string
	primaryReport     *PrimaryReport
	primaryFailed     bool
	fallbackConsulted bool
	fallbackHandle    string
	fallbackReport    *FallbackReport

	verdictSource string

	// cached is the pre-existing record, fresh or stale. Non-nil means the
	// final persistence call must be an update.
	cached   *store.ScannedURL
	canceled bool
}

// CheckURL resolves the safety verdict for a URL. It never fails: transport
// errors, auth failures and exhausted polling budgets all collapse into one
// of the four Verdict values. Expect up to roughly three and a half minutes
// of wall clock on a full dual-provider scan; callers must not block a
// user-facing reply on it.
//
// Concurrent calls for the same URL string share a single scan.
func (e *Engine) CheckURL(ctx context.Context, target string) Verdict {
	v, _, _ := e.group.Do(target, func() (interface{}, error) {
		return e.check(ctx, target), nil
	})
	return v.(Verdict)
}

func (e *Engine) check(ctx context.Context, target string) Verdict {
	a := &attempt{target: target, verdict: VerdictUnknown}

	state := stateCacheCheck
	for state != stateDone {
		switch state {
		case stateCacheCheck:
			state = e.cacheCheck(ctx, a)
			if state == stateDone {
				// Fresh cache hit. Nothing to persist.
				return a.verdict
			}
		case statePrimarySubmit:
			state = e.primarySubmit(ctx, a)
		case statePrimaryPoll:
			state = e.primaryPoll(ctx, a)
		case stateFallbackSubmit:
			state = e.fallbackSubmit(ctx, a)
		case stateFallbackPoll:
			state = e.fallbackPoll(ctx, a)
		}
	}

	if a.canceled {
		// Shutdown mid-scan. Persisting a half-finished run would poison the
		// cache for the freshness window, so skip it.
		logger.Warnf("Scan of %s aborted: %+v", target, ctx.Err())
		return VerdictError
	}

	e.persist(ctx, a)
	logger.Infof("Final status for %s: %s (source: %s)", target, a.verdict, a.verdictSource)
	return a.verdict
}

func (e *Engine) cacheCheck(ctx context.Context, a *attempt) scanState {
	rec, err := e.store.GetScannedURL(ctx, a.target)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			// Treat a broken cache lookup as a miss and scan anyway.
			logger.Errorf("Failed to look up cached verdict for %s: %+v", a.target, err)
		}
		return statePrimarySubmit
	}

	a.cached = rec
	if time.Since(rec.LastScannedAt) < e.config.CacheTTL {
		logger.Debugf("Cache hit for %s. Status: %s", a.target, rec.Status)
		a.verdict = Verdict(rec.Status)
		return stateDone
	}

	logger.Debugf("Cache expired for %s. Re-scanning.", a.target)
	return statePrimarySubmit
}

func (e *Engine) primarySubmit(ctx context.Context, a *attempt) scanState {
	handle, err := e.primary.Submit(ctx, a.target)
	if err != nil {
		logger.Errorf("%s submission failed for %s: %+v", e.primary.Name(), a.target, err)
		a.primaryFailed = true
		a.verdict = VerdictUnknown
		return stateFallbackSubmit
	}

	a.primaryHandle = handle
	return statePrimaryPoll
}

func (e *Engine) primaryPoll(ctx context.Context, a *attempt) scanState {
	for i := 0; i < e.config.PrimaryPollAttempts; i++ {
		if err := e.sleep(ctx, e.config.PrimaryPollInterval); err != nil {
			a.canceled = true
			return stateDone
		}

		report, err := e.primary.Report(ctx, a.primaryHandle)
		if err != nil {
			logger.Debugf("%s report fetch for %s failed on attempt %d: %+v", e.primary.Name(), a.primaryHandle, i+1, err)
			continue
		}
		if report == nil {
			logger.Debugf("%s report for %s not ready. Attempt %d.", e.primary.Name(), a.primaryHandle, i+1)
			continue
		}

		a.primaryReport = report
		a.verdict = primaryVerdict(report)
		a.verdictSource = e.primary.Name()
		if a.verdict.Conclusive() {
			return stateDone
		}
		// A real but ambiguous report. Escalate.
		return stateFallbackSubmit
	}

	logger.Errorf("No ready report from %s for %s after %d attempts.", e.primary.Name(), a.primaryHandle, e.config.PrimaryPollAttempts)
	a.primaryFailed = true
	a.verdict = VerdictUnknown
	return stateFallbackSubmit
}

func (e *Engine) fallbackSubmit(ctx context.Context, a *attempt) scanState {
	a.fallbackConsulted = true
	handle, err := e.fallback.Submit(ctx, a.target)
	if err != nil {
		logger.Errorf("%s submission failed for %s: %+v", e.fallback.Name(), a.target, err)
		if a.primaryFailed {
			// Neither provider produced a report. Operational failure, not a
			// verdict about the URL.
			a.verdict = VerdictError
		}
		return stateDone
	}

	a.fallbackHandle = handle
	return stateFallbackPoll
}

func (e *Engine) fallbackPoll(ctx context.Context, a *attempt) scanState {
	for i := 0; i < e.config.FallbackPollAttempts; i++ {
		if err := e.sleep(ctx, e.config.FallbackPollInterval); err != nil {
			a.canceled = true
			return stateDone
		}

		report, err := e.fallback.Report(ctx, a.fallbackHandle)
		if err != nil {
			logger.Debugf("%s report fetch for %s failed on attempt %d: %+v", e.fallback.Name(), a.fallbackHandle, i+1, err)
			continue
		}
		if report == nil {
			logger.Debugf("%s analysis %s not found yet. Attempt %d.", e.fallback.Name(), a.fallbackHandle, i+1)
			continue
		}

		a.fallbackReport = report
		if !report.Completed() {
			logger.Debugf("%s analysis %s still %q. Attempt %d.", e.fallback.Name(), a.fallbackHandle, report.Status, i+1)
			continue
		}

		// The fallback verdict is authoritative once consulted.
		a.verdict = fallbackVerdict(report)
		a.verdictSource = e.fallback.Name()
		return stateDone
	}

	logger.Errorf("No completed report from %s for %s after %d attempts.", e.fallback.Name(), a.fallbackHandle, e.config.FallbackPollAttempts)
	if a.primaryFailed {
		// The primary never produced a report either.
		a.verdict = VerdictError
	}
	return stateDone
}

// evidence is the audit payload persisted alongside the verdict.
type evidence struct {
	SourceOrder        []string        `json:"source_order"`
	PrimaryCheck       *PrimaryReport  `json:"primary_check,omitempty"`
	PrimaryError       string          `json:"primary_error,omitempty"`
	FallbackCheck      *FallbackReport `json:"fallback_check,omitempty"`
	FinalVerdictSource string          `json:"final_verdict_source"`
	FinalStatus        Verdict         `json:"final_status"`
}

func (e *Engine) persist(ctx context.Context, a *attempt) {
	source := a.verdictSource
	if source == "" {
		source = "none"
	}

	ev := evidence{
		FinalVerdictSource: source,
		FinalStatus:        a.verdict,
		PrimaryCheck:       a.primaryReport,
		FallbackCheck:      a.fallbackReport,
	}
	primaryLabel := e.primary.Name()
	if a.primaryFailed {
		primaryLabel += " (failed)"
		ev.PrimaryError = "submission or polling failed"
	}
	ev.SourceOrder = []string{primaryLabel}
	if a.fallbackConsulted {
		ev.SourceOrder = append(ev.SourceOrder, e.fallback.Name())
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		logger.Errorf("Failed to encode scan evidence for %s: %+v", a.target, err)
		raw = nil
	}

	// Prefer the fallback handle; it belongs to the provider that had the
	// last word whenever it was consulted.
	scanID := a.fallbackHandle
	if scanID == "" {
		scanID = a.primaryHandle
	}

	rec := &store.ScannedURL{
		URL:           a.target,
		Status:        string(a.verdict),
		ScanID:        scanID,
		RawResponse:   raw,
		LastScannedAt: time.Now(),
	}

	if a.cached != nil {
		if err := e.store.UpdateScannedURL(ctx, rec); err != nil {
			logger.Errorf("Failed to update cached verdict for %s: %+v", a.target, err)
		}
		return
	}

	err = e.store.InsertScannedURL(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		// Raced with another writer. Overwrite instead.
		err = e.store.UpdateScannedURL(ctx, rec)
	}
	if err != nil {
		logger.Errorf("Failed to save verdict for %s: %+v", a.target, err)
	}
}
