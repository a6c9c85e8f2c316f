package weather

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// ModeAuto selects automatic source selection: all enabled providers are
// queried and the enrichment pass runs. Any other mode value pins a single
// provider by id.
const ModeAuto = "auto"

const (
	defaultFetchTimeout = 15 * time.Second
	historyWindow       = 72 * time.Hour
)

// CoordinatorOptions is the construction-time configuration surface of the
// coordinator. Nothing here is read from global state at call time.
type CoordinatorOptions struct {
	// Mode is ModeAuto or a pinned provider id.
	Mode string
	// FetchTimeout bounds one fetch round end to end.
	FetchTimeout time.Duration
	// TrendsEnabled toggles the trend deriver. When off, snapshots carry no
	// insights, including cache-fallback copies.
	TrendsEnabled bool
	// TrendHorizon is the continuous-series look-ahead.
	TrendHorizon time.Duration
	// AlertEnrichmentSource names a credentialed provider whose alerts are
	// unioned in during the enrichment pass. Empty disables it.
	AlertEnrichmentSource string
}

// Coordinator produces exactly one WeatherSnapshot per logical request while
// controlling how many underlying provider calls actually happen. Concurrent
// callers for the same location key share one fetch round; the in-flight
// registry is the only shared mutable state besides the store.
type Coordinator struct {
	store     SnapshotStore
	providers []Provider
	byName    map[string]Provider
	fuser     *Fuser
	priority  *SourcePriorityConfig
	trends    *TrendDeriver
	sink      AlertSink
	opts      CoordinatorOptions
	log       *zap.SugaredLogger

	flight singleflight.Group
}

// NewCoordinator wires the coordinator's explicit dependencies. A nil
// priority config falls back to the default policy; a nil logger is replaced
// with a no-op one.
func NewCoordinator(store SnapshotStore, providers []Provider, priority *SourcePriorityConfig, opts CoordinatorOptions, sink AlertSink, log *zap.SugaredLogger) *Coordinator {
	if priority == nil {
		priority = DefaultSourcePriorityConfig()
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	byName := make(map[string]Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}

	return &Coordinator{
		store:     store,
		providers: providers,
		byName:    byName,
		fuser:     NewFuser(priority),
		priority:  priority,
		trends:    NewTrendDeriver(opts.TrendHorizon),
		sink:      sink,
		opts:      opts,
		log:       log,
	}
}

// GetWeather returns one snapshot for the location. Non-force calls for the
// same key coalesce into a single in-flight fetch round; force starts a
// fresh round that supersedes the in-flight slot without detaching the
// waiters already attached to it.
func (c *Coordinator) GetWeather(ctx context.Context, loc Location, force bool) (*WeatherSnapshot, error) {
	if _, err := c.activeProviders(); err != nil {
		// Pinned-provider misconfiguration surfaces before any network call.
		return nil, err
	}

	key := loc.Key()
	if force {
		c.flight.Forget(key)
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		// The round runs detached from any single caller so abandoning
		// callers never cancel work other waiters still depend on.
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
		defer cancel()
		return c.fetchRound(rctx, loc)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*WeatherSnapshot), nil
	}
}

// activeProviders resolves the provider set for the configured mode.
func (c *Coordinator) activeProviders() ([]Provider, error) {
	if c.opts.Mode == ModeAuto {
		return c.providers, nil
	}
	p, ok := c.byName[c.opts.Mode]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSourceUnavailable, c.opts.Mode)
	}
	return []Provider{p}, nil
}

// fetchRound runs one full acquisition: fan out every (provider, kind) task,
// join, fuse per kind, fall back to cache on total per-kind failure, enrich,
// derive trends, persist and hand off alerts.
func (c *Coordinator) fetchRound(ctx context.Context, loc Location) (*WeatherSnapshot, error) {
	runID := uuid.NewString()
	key := loc.Key()

	provs, err := c.activeProviders()
	if err != nil {
		return nil, err
	}

	c.log.Infow("fetch round started", "run_id", runID, "key", key, "sources", len(provs))

	// All tasks start before any is awaited.
	results := make([]SourceResult, len(provs)*len(AllKinds))
	var wg sync.WaitGroup
	for pi, p := range provs {
		for ki, k := range AllKinds {
			idx := pi*len(AllKinds) + ki
			wg.Add(1)
			go func(p Provider, k DataKind, idx int) {
				defer wg.Done()
				results[idx] = fetchOne(ctx, p, k, loc)
			}(p, k, idx)
		}
	}
	wg.Wait()

	byKind := groupResults(results)

	snap := &WeatherSnapshot{
		Location:     loc,
		FetchedAt:    time.Now().UTC(),
		RunID:        runID,
		Attributions: make(map[DataKind]FusionAttribution, len(AllKinds)),
	}

	var att FusionAttribution
	snap.Current, att = c.fuser.MergeCurrent(loc, byKind[KindCurrent])
	snap.Attributions[KindCurrent] = att
	snap.Forecast, att = c.fuser.MergeForecast(loc, byKind[KindForecast])
	snap.Attributions[KindForecast] = att
	snap.Hourly, att = c.fuser.MergeHourly(loc, byKind[KindHourly])
	snap.Attributions[KindHourly] = att
	snap.Alerts, att = c.fuser.MergeAlerts(loc, byKind[KindAlerts])
	snap.Attributions[KindAlerts] = att

	c.fallbackFromCache(ctx, key, snap, byKind)

	if !snap.hasAnyKind() {
		c.log.Warnw("fetch round produced nothing", "run_id", runID, "key", key)
		return nil, ErrNoData
	}

	if c.opts.Mode == ModeAuto {
		c.enrich(ctx, loc, snap, byKind)
	}

	// A round where every present kind came from cache refreshed nothing and
	// must not launder the cache timestamp.
	fresh := len(snap.StaleKinds) < snap.presentKinds()

	c.fetchDiscussion(ctx, loc, provs, snap)

	snap.History = c.loadHistory(ctx, key)

	if c.opts.TrendsEnabled {
		snap.Trends = c.trends.Derive(snap.Current, snap.Hourly, snap.Forecast, snap.History)
	}

	if fresh && c.store != nil {
		if err := c.store.Put(ctx, key, snap); err != nil {
			c.log.Errorw("snapshot cache write failed", "run_id", runID, "key", key, "error", err)
		}
	}

	if fresh && c.sink != nil && snap.Alerts != nil {
		c.sink.HandleAlerts(ctx, loc, snap.Alerts, snap.Attributions[KindAlerts])
	}

	c.log.Infow("fetch round finished",
		"run_id", runID, "key", key,
		"stale_kinds", snap.StaleKinds,
		"conflicts", snap.conflictCount())
	return snap, nil
}

// fallbackFromCache substitutes the cached value for every kind whose
// providers all failed. The cache is a fallback path only, never a
// short-circuit.
func (c *Coordinator) fallbackFromCache(ctx context.Context, key string, snap *WeatherSnapshot, byKind map[DataKind][]SourceResult) {
	needed := false
	for _, k := range AllKinds {
		if kindTotallyFailed(k, snap, byKind) {
			needed = true
			break
		}
	}
	if !needed || c.store == nil {
		return
	}

	cached, age, err := c.store.Get(ctx, key)
	if err != nil || cached == nil {
		return
	}
	c.log.Infow("falling back to cached snapshot for failed kinds", "key", key, "cache_age", age)

	take := func(k DataKind, present bool, apply func()) {
		if !kindTotallyFailed(k, snap, byKind) || !present {
			return
		}
		apply()
		snap.Attributions[k] = cached.Attributions[k]
		snap.StaleKinds = append(snap.StaleKinds, k)
	}
	take(KindCurrent, cached.Current != nil, func() { snap.Current = cached.Current })
	take(KindForecast, cached.Forecast != nil, func() { snap.Forecast = cached.Forecast })
	take(KindHourly, cached.Hourly != nil, func() { snap.Hourly = cached.Hourly })
	take(KindAlerts, cached.Alerts != nil, func() { snap.Alerts = cached.Alerts })
}

// enrich runs the opportunistic secondary pass: one extra provider to fill
// fields the primary pass left nil, and supplementary alerts from a
// credentialed provider. Results re-enter through the same fusion rules, so
// nothing here can overwrite a higher-priority field.
func (c *Coordinator) enrich(ctx context.Context, loc Location, snap *WeatherSnapshot, byKind map[DataKind][]SourceResult) {
	fillProv := c.gapFillProvider(snap, byKind)
	alertProv := c.alertEnrichmentProvider(snap)
	if fillProv == nil && alertProv == nil {
		return
	}

	var fillRes, alertRes *SourceResult
	g, gctx := errgroup.WithContext(ctx)

	if fillProv != nil {
		g.Go(func() error {
			cur, err := fillProv.FetchCurrent(gctx, loc)
			if err != nil {
				c.log.Warnf("enrichment fetch from %s failed: %v", fillProv.Name(), err)
				return nil
			}
			fillRes = &SourceResult{Source: fillProv.Name(), Kind: KindCurrent, Current: cur}
			return nil
		})
	}
	if alertProv != nil {
		g.Go(func() error {
			alerts, err := alertProv.FetchAlerts(gctx, loc)
			if err != nil {
				c.log.Warnf("supplementary alert fetch from %s failed: %v", alertProv.Name(), err)
				return nil
			}
			alertRes = &SourceResult{Source: alertProv.Name(), Kind: KindAlerts, Alerts: alerts}
			return nil
		})
	}
	_ = g.Wait()

	if fillRes != nil {
		merged, att := c.fuser.MergeCurrent(loc, append(byKind[KindCurrent], *fillRes))
		snap.Current = merged
		snap.Attributions[KindCurrent] = att
	}
	if alertRes != nil {
		merged, att := c.fuser.MergeAlerts(loc, append(byKind[KindAlerts], *alertRes))
		snap.Alerts = merged
		snap.Attributions[KindAlerts] = att
	}
}

// gapFillProvider picks one provider to retry for current conditions when
// the fused record still has nil fields. Every successful primary result is
// already in the fusion inputs, so the only data not yet seen belongs to a
// source whose primary fetch failed.
func (c *Coordinator) gapFillProvider(snap *WeatherSnapshot, byKind map[DataKind][]SourceResult) Provider {
	if snap.Current == nil || !hasGaps(snap.Current) {
		return nil
	}
	failed := make(map[string]bool)
	for _, r := range byKind[KindCurrent] {
		if !r.OK() {
			failed[r.Source] = true
		}
	}
	for _, p := range c.providers {
		if failed[p.Name()] {
			return p
		}
	}
	return nil
}

// alertEnrichmentProvider resolves the configured credentialed alert source,
// unless it already contributed to the primary alert fusion.
func (c *Coordinator) alertEnrichmentProvider(snap *WeatherSnapshot) Provider {
	if c.opts.AlertEnrichmentSource == "" {
		return nil
	}
	for _, s := range snap.Attributions[KindAlerts].ContributingSources {
		if s == c.opts.AlertEnrichmentSource {
			return nil
		}
	}
	return c.byName[c.opts.AlertEnrichmentSource]
}

// fetchDiscussion asks the first active source with the discussion
// capability for its forecaster discussion. Best effort.
func (c *Coordinator) fetchDiscussion(ctx context.Context, loc Location, provs []Provider, snap *WeatherSnapshot) {
	for _, p := range provs {
		dp, ok := p.(DiscussionProvider)
		if !ok {
			continue
		}
		text, err := dp.FetchDiscussion(ctx, loc)
		if err != nil {
			c.log.Warnf("discussion fetch from %s failed: %v", p.Name(), err)
			return
		}
		snap.Discussion = text
		snap.DiscussionSource = p.Name()
		return
	}
}

func (c *Coordinator) loadHistory(ctx context.Context, key string) []DailySummary {
	if c.store == nil {
		return nil
	}
	to := time.Now().UTC()
	snaps, err := c.store.History(ctx, key, to.Add(-historyWindow), to)
	if err != nil || len(snaps) == 0 {
		return nil
	}
	return dailySummaries(snaps)
}

func fetchOne(ctx context.Context, p Provider, kind DataKind, loc Location) SourceResult {
	res := SourceResult{Source: p.Name(), Kind: kind}
	switch kind {
	case KindCurrent:
		res.Current, res.Err = p.FetchCurrent(ctx, loc)
	case KindForecast:
		res.Forecast, res.Err = p.FetchForecast(ctx, loc)
	case KindHourly:
		res.Hourly, res.Err = p.FetchHourly(ctx, loc)
	case KindAlerts:
		res.Alerts, res.Err = p.FetchAlerts(ctx, loc)
	}
	return res
}

// groupResults buckets results per kind, dropping unsupported-kind results
// so they count neither as contributions nor as failures.
func groupResults(results []SourceResult) map[DataKind][]SourceResult {
	byKind := make(map[DataKind][]SourceResult, len(AllKinds))
	for _, r := range results {
		if r.Err != nil && isUnsupported(r.Err) {
			continue
		}
		byKind[r.Kind] = append(byKind[r.Kind], r)
	}
	return byKind
}

func isUnsupported(err error) bool {
	return errors.Is(err, ErrKindUnsupported)
}

// kindTotallyFailed reports whether the kind was attempted and every attempt
// failed. A kind nobody supports is absent, not failed.
func kindTotallyFailed(k DataKind, snap *WeatherSnapshot, byKind map[DataKind][]SourceResult) bool {
	if snap.kindPresent(k) {
		return false
	}
	return len(byKind[k]) > 0
}

func (s *WeatherSnapshot) kindPresent(k DataKind) bool {
	switch k {
	case KindCurrent:
		return s.Current != nil
	case KindForecast:
		return s.Forecast != nil
	case KindHourly:
		return s.Hourly != nil
	case KindAlerts:
		return s.Alerts != nil
	}
	return false
}

func (s *WeatherSnapshot) hasAnyKind() bool {
	for _, k := range AllKinds {
		if s.kindPresent(k) {
			return true
		}
	}
	return false
}

func (s *WeatherSnapshot) presentKinds() int {
	n := 0
	for _, k := range AllKinds {
		if s.kindPresent(k) {
			n++
		}
	}
	return n
}

func (s *WeatherSnapshot) conflictCount() int {
	n := 0
	for _, a := range s.Attributions {
		n += len(a.Conflicts)
	}
	return n
}

// hasGaps reports whether any fused current-conditions field is still nil.
func hasGaps(c *CurrentConditions) bool {
	for _, fd := range currentFloatFields {
		if fd.get(c) == nil {
			return true
		}
	}
	for _, fd := range currentStringFields {
		if fd.get(c) == nil {
			return true
		}
	}
	for _, fd := range currentTimeFields {
		if fd.get(c) == nil {
			return true
		}
	}
	return false
}
