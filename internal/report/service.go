package report

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bilalbayram/adlens/internal/hierarchy"
	"github.com/bilalbayram/adlens/internal/telemetry"
)

const (
	DefaultAccountRetryAttempts = 10
	DefaultAccountRetryInterval = 100 * time.Millisecond
)

// State is the observable loading state of a Service.
type State struct {
	IsLoading        bool   `json:"is_loading"`
	IsLoadingPeriodB bool   `json:"is_loading_period_b"`
	LoadingTabs      []Tab  `json:"loading_tabs"`
	Error            string `json:"error,omitempty"`
	Signature        string `json:"signature,omitempty"`
	PeriodBSignature string `json:"period_b_signature,omitempty"`
}

type Option func(*Service)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithRecorder(recorder telemetry.Recorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

func WithAccountResolver(resolver AccountResolver) Option {
	return func(s *Service) {
		s.resolver = resolver
	}
}

func WithAccountRetry(attempts int, interval time.Duration) Option {
	return func(s *Service) {
		if attempts >= 0 {
			s.retryAttempts = attempts
		}
		if interval > 0 {
			s.retryInterval = interval
		}
	}
}

func WithPrefetchMaxWait(maxWait time.Duration) Option {
	return func(s *Service) {
		s.prefetchMaxWait = maxWait
	}
}

type loadHandle struct {
	token  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Service owns the current signature, the current ReportCache, the
// multi-signature window map and the in-flight load token. Completions whose
// token is no longer current are discarded.
type Service struct {
	loader          *Loader
	windows         *WindowCache
	logger          *zap.Logger
	recorder        telemetry.Recorder
	resolver        AccountResolver
	retryAttempts   int
	retryInterval   time.Duration
	prefetchMaxWait time.Duration
	prefetcher      *Prefetcher

	base context.Context
	stop context.CancelFunc

	mu             sync.Mutex
	params         Params
	heldKey        string
	current        *ReportCache
	inflight       loadHandle
	loading        bool
	loadingTabs    map[Tab]struct{}
	periodBToken   string
	periodBKey     string
	periodBDone    <-chan struct{}
	loadingPeriodB bool
	retry          loadHandle
	resolved       []hierarchy.Account
	resolvedFor    string
	errMsg         string
	invalidated    bool
	subscribers    map[int]func(State)
	nextSubscriber int
	closed         bool
}

func NewService(loader *Loader, options ...Option) *Service {
	base, stop := context.WithCancel(context.Background())
	s := &Service{
		loader:          loader,
		windows:         NewWindowCache(),
		logger:          zap.NewNop(),
		recorder:        telemetry.NewNoop(),
		retryAttempts:   DefaultAccountRetryAttempts,
		retryInterval:   DefaultAccountRetryInterval,
		prefetchMaxWait: DefaultPrefetchMaxWait,
		base:            base,
		stop:            stop,
		loadingTabs:     map[Tab]struct{}{},
		subscribers:     map[int]func(State){},
	}
	for _, option := range options {
		option(s)
	}
	s.logger = s.logger.With(zap.String("component", "report.service"))
	s.prefetcher = NewPrefetcher(s.prefetchMaxWait)
	return s
}

// Update evaluates new render parameters. An unchanged signature only adopts
// the new display parameters; a previously seen signature is restored
// synchronously; anything else starts a reload.
func (s *Service) Update(params Params) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.params = params
	changed := s.evaluateLocked(false)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// Refresh forces the current signature to reload even if it is unchanged or
// already present in the window map.
func (s *Service) Refresh() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.invalidated = true
	changed := s.evaluateLocked(true)
	s.mu.Unlock()
	if changed {
		s.notify()
	}
}

// effectiveParamsLocked fills in accounts found by the AccountResolver when
// the caller's params carry none. s.params itself is never rewritten, so
// resending the same account-less params keeps the held signature.
func (s *Service) effectiveParamsLocked() Params {
	params := s.params
	if len(params.Accounts) == 0 && len(s.resolved) > 0 && s.resolvedFor == params.ReportID {
		params.Accounts = append([]hierarchy.Account(nil), s.resolved...)
	}
	return params
}

func (s *Service) evaluateLocked(force bool) bool {
	params := s.effectiveParamsLocked()
	if params.ReportID == "" {
		return false
	}
	if err := (DateRange{From: params.LoadFrom, To: params.LoadTo}).Validate(); err != nil {
		s.errMsg = fmt.Sprintf("invalid load date range: %v", err)
		return true
	}

	signature := ComputeSignature(params)
	key := signature.Key()
	if key == s.heldKey && !s.invalidated {
		return s.maybePrefetchLocked()
	}
	force = force || s.invalidated
	s.invalidated = false
	s.heldKey = key
	s.cancelRetryLocked()
	s.cancelInflightLocked()
	s.cancelPeriodBLocked()

	if !force {
		if cached, ok := s.windows.Lookup(signature); ok {
			s.recorder.IncCacheHit()
			s.current = cached
			s.errMsg = ""
			s.logger.Debug("restored report cache", zap.String("signature", key))
			s.maybePrefetchLocked()
			return true
		}
	}
	s.recorder.IncCacheMiss()

	if len(signature.AccountIDs) == 0 {
		s.startRetryLocked(params.ReportID)
		return true
	}
	s.startLoadLocked(signature, params.request(params.LoadFrom, params.LoadTo))
	return true
}

func (s *Service) startLoadLocked(signature Signature, request ReportRequest) {
	ctx, cancel := context.WithCancel(s.base)
	handle := loadHandle{
		token:  uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.inflight = handle
	s.loading = true
	s.errMsg = ""
	s.loadingTabs = make(map[Tab]struct{}, len(Tabs))
	for _, tab := range Tabs {
		s.loadingTabs[tab] = struct{}{}
	}
	go s.runLoad(ctx, handle, signature, request)
}

func (s *Service) runLoad(ctx context.Context, handle loadHandle, signature Signature, request ReportRequest) {
	defer close(handle.done)
	defer handle.cancel()

	started := time.Now()
	s.recorder.IncLoadStarted()
	logger := s.logger.With(zap.String("load_token", handle.token))
	logger.Info("loading report",
		zap.String("report_id", signature.ReportID),
		zap.String("from", request.DateFrom),
		zap.String("to", request.DateTo),
		zap.Int("accounts", len(request.Accounts)),
	)

	tabs := s.loader.LoadAll(ctx, request, func(tab Tab) {
		s.mu.Lock()
		changed := false
		if s.inflight.token == handle.token {
			delete(s.loadingTabs, tab)
			changed = true
		}
		s.mu.Unlock()
		if changed {
			s.notify()
		}
	})
	s.recorder.ObserveLoadDuration(time.Since(started))

	s.mu.Lock()
	if ctx.Err() != nil || s.inflight.token != handle.token {
		s.mu.Unlock()
		s.recorder.IncStaleDiscarded()
		logger.Debug("discarding superseded report load")
		return
	}
	cache := &ReportCache{Tabs: tabs, Signature: signature}
	s.windows.Store(signature, cache)
	s.current = cache
	s.loading = false
	s.loadingTabs = map[Tab]struct{}{}
	s.inflight = loadHandle{}
	s.maybePrefetchLocked()
	s.mu.Unlock()

	logger.Info("report loaded", zap.Duration("duration", time.Since(started)))
	s.notify()
}

func (s *Service) cancelInflightLocked() {
	if s.inflight.cancel != nil {
		s.inflight.cancel()
	}
	s.inflight = loadHandle{}
	s.loading = false
	s.loadingTabs = map[Tab]struct{}{}
}

func (s *Service) startRetryLocked(reportID string) {
	ctx, cancel := context.WithCancel(s.base)
	handle := loadHandle{
		token:  uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.retry = handle
	s.errMsg = ""
	go s.runAccountRetry(ctx, handle, reportID)
}

func (s *Service) cancelRetryLocked() {
	if s.retry.cancel != nil {
		s.retry.cancel()
	}
	s.retry = loadHandle{}
}

// runAccountRetry waits for ad accounts to become available. Each attempt
// re-reads the params and, when configured, asks the AccountResolver.
func (s *Service) runAccountRetry(ctx context.Context, handle loadHandle, reportID string) {
	defer close(handle.done)
	defer handle.cancel()

	for attempt := 1; attempt <= s.retryAttempts; attempt++ {
		timer := time.NewTimer(s.retryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		var resolved []hierarchy.Account
		if s.resolver != nil {
			accounts, err := s.resolver.Accounts(ctx, reportID)
			if err != nil {
				s.logger.Debug("account resolver failed",
					zap.Int("attempt", attempt),
					zap.Error(err),
				)
			}
			resolved = accounts
		}

		s.mu.Lock()
		if ctx.Err() != nil || s.retry.token != handle.token {
			s.mu.Unlock()
			return
		}
		if len(s.params.Accounts) == 0 && len(resolved) > 0 {
			s.resolved = resolved
			s.resolvedFor = reportID
		}
		if len(s.effectiveParamsLocked().Accounts) > 0 {
			s.retry = loadHandle{}
			s.heldKey = ""
			s.evaluateLocked(false)
			s.mu.Unlock()
			s.notify()
			return
		}
		s.mu.Unlock()
	}

	s.mu.Lock()
	if ctx.Err() != nil || s.retry.token != handle.token {
		s.mu.Unlock()
		return
	}
	s.retry = loadHandle{}
	s.errMsg = fmt.Sprintf("no ad accounts available for report %s", reportID)
	s.mu.Unlock()

	s.logger.Warn("giving up on report load without ad accounts",
		zap.String("report_id", reportID),
		zap.Int("attempts", s.retryAttempts),
	)
	s.notify()
}

// maybePrefetchLocked schedules the comparison period when it is configured
// and differs from what the current cache already holds.
func (s *Service) maybePrefetchLocked() bool {
	if s.params.Compare == nil && s.loadingPeriodB {
		s.cancelPeriodBLocked()
		return true
	}
	if s.current == nil || s.params.Compare == nil {
		return false
	}
	if s.current.Signature.Key() != s.heldKey {
		return false
	}
	compare := *s.params.Compare
	if err := compare.Validate(); err != nil {
		s.logger.Warn("ignoring invalid comparison range", zap.Error(err))
		return false
	}
	periodParams := s.effectiveParamsLocked()
	periodParams.LoadFrom = compare.From
	periodParams.LoadTo = compare.To
	signature := ComputeSignature(periodParams)
	key := signature.Key()
	if s.current.PeriodBSignature != nil && s.current.PeriodBSignature.Key() == key {
		return false
	}
	if s.periodBKey == key {
		return false
	}

	token := uuid.NewString()
	primaryKey := s.current.Signature.Key()
	request := periodParams.request(compare.From, compare.To)
	s.periodBToken = token
	s.periodBKey = key
	s.loadingPeriodB = true
	s.periodBDone = s.prefetcher.Schedule(s.idleLocked(), func(ctx context.Context) {
		s.runPeriodB(ctx, token, primaryKey, signature, request)
	})
	return true
}

func (s *Service) idleLocked() <-chan struct{} {
	if s.loading && s.inflight.done != nil {
		return s.inflight.done
	}
	idle := make(chan struct{})
	close(idle)
	return idle
}

func (s *Service) runPeriodB(ctx context.Context, token string, primaryKey string, signature Signature, request ReportRequest) {
	tabs := s.loader.LoadAll(ctx, request, nil)
	if ctx.Err() != nil {
		s.recorder.IncPrefetch("cancelled")
		return
	}

	s.mu.Lock()
	if s.periodBToken != token || s.current == nil || s.current.Signature.Key() != primaryKey {
		if s.periodBToken == token {
			s.periodBToken = ""
			s.periodBKey = ""
			s.loadingPeriodB = false
		}
		s.mu.Unlock()
		s.recorder.IncPrefetch("skipped")
		return
	}
	next := s.current.withPeriodB(signature, tabs)
	s.current = next
	s.windows.Store(next.Signature, next)
	s.periodBToken = ""
	s.periodBKey = ""
	s.loadingPeriodB = false
	s.mu.Unlock()

	s.recorder.IncPrefetch("stored")
	s.logger.Debug("stored comparison period",
		zap.String("from", request.DateFrom),
		zap.String("to", request.DateTo),
	)
	s.notify()
}

func (s *Service) cancelPeriodBLocked() {
	s.prefetcher.Cancel()
	s.periodBToken = ""
	s.periodBKey = ""
	s.loadingPeriodB = false
}

// TabData returns a tab of the current cache. Period A is re-sliced to the
// display date range on every call; Period B is returned as loaded.
func (s *Service) TabData(tab Tab, usePeriodB bool) *TabData {
	s.mu.Lock()
	cache := s.current
	params := s.params
	held := s.heldKey
	s.mu.Unlock()

	if cache == nil || cache.Signature.Key() != held {
		return nil
	}
	if usePeriodB {
		if cache.PeriodB == nil {
			return nil
		}
		return cache.PeriodB[tab]
	}
	from, to := params.displayRange()
	return cache.Tabs[tab].Slice(from, to)
}

func (s *Service) Params() Params {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.params
}

func (s *Service) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Service) stateLocked() State {
	tabs := make([]Tab, 0, len(s.loadingTabs))
	for tab := range s.loadingTabs {
		tabs = append(tabs, tab)
	}
	sort.Slice(tabs, func(i, j int) bool { return tabs[i] < tabs[j] })
	state := State{
		IsLoading:        s.loading || s.retry.cancel != nil,
		IsLoadingPeriodB: s.loadingPeriodB,
		LoadingTabs:      tabs,
		Error:            s.errMsg,
		Signature:        s.heldKey,
	}
	if s.current != nil && s.current.PeriodBSignature != nil {
		state.PeriodBSignature = s.current.PeriodBSignature.Key()
	}
	return state
}

// Subscribe registers fn for state changes. fn runs outside the service lock.
func (s *Service) Subscribe(fn func(State)) func() {
	s.mu.Lock()
	id := s.nextSubscriber
	s.nextSubscriber++
	s.subscribers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subscribers, id)
		s.mu.Unlock()
	}
}

func (s *Service) notify() {
	s.mu.Lock()
	state := s.stateLocked()
	subscribers := make([]func(State), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		subscribers = append(subscribers, fn)
	}
	s.mu.Unlock()

	for _, fn := range subscribers {
		fn(state)
	}
}

// Wait blocks until no primary load, account retry or comparison prefetch is
// pending.
func (s *Service) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		var pending <-chan struct{}
		switch {
		case s.retry.done != nil:
			pending = s.retry.done
		case s.loading && s.inflight.done != nil:
			pending = s.inflight.done
		case s.loadingPeriodB && s.periodBDone != nil:
			pending = s.periodBDone
		}
		s.mu.Unlock()

		if pending == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-pending:
		}
		s.settleCancelledPrefetch(pending)
	}
}

// settleCancelledPrefetch clears the period B flag when its job ended without
// storing a result, so Wait does not spin on a closed channel.
func (s *Service) settleCancelledPrefetch(done <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.periodBDone == done && s.loadingPeriodB {
		s.loadingPeriodB = false
		s.periodBToken = ""
		s.periodBKey = ""
	}
}

func (s *Service) Windows() *WindowCache {
	return s.windows
}

func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.cancelRetryLocked()
	s.cancelInflightLocked()
	s.cancelPeriodBLocked()
	s.mu.Unlock()

	s.prefetcher.Close()
	s.stop()
}
