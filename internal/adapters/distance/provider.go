package distance

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"trip-assignment-service/internal/domain"
	"trip-assignment-service/internal/platform/logger"
	"trip-assignment-service/internal/platform/metrics"
	"trip-assignment-service/internal/platform/obs"
	"trip-assignment-service/internal/ports"
)

type ProviderConfig struct {
	// Workers bounds concurrent routing batches.
	Workers int
	// BatchSize is the max number of destinations per routing call.
	BatchSize int
	// FlushEvery triggers a persistent-cache flush once this many new
	// measured entries are buffered.
	FlushEvery int
	// DetourFactor scales the great-circle distance of estimated entries.
	DetourFactor float64
	// EstimateTTL is how long an estimated entry is served from memory
	// before the routing service is asked again.
	EstimateTTL time.Duration
	// FlushTimeout bounds the flush performed after caller cancellation.
	FlushTimeout time.Duration
}

func DefaultProviderConfig() ProviderConfig {
	return ProviderConfig{
		Workers:      4,
		BatchSize:    50,
		FlushEvery:   200,
		DetourFactor: 1.3,
		EstimateTTL:  10 * time.Minute,
		FlushTimeout: 5 * time.Second,
	}
}

type memEntry struct {
	res     ports.DistanceResult
	expires time.Time // zero for measured entries
}

// Provider resolves distances from memory, then the persistent cache, then
// the routing service, falling back to haversine × DetourFactor.
//
// Estimated entries are never persisted. Flushes are serialised.
type Provider struct {
	routing ports.RoutingService
	store   ports.DistanceCache
	cfg     ProviderConfig
	log     zerolog.Logger

	mu  sync.RWMutex
	mem map[domain.PairKey]memEntry

	pendingMu sync.Mutex
	pending   map[domain.PairKey]ports.DistanceCacheEntry

	flushMu sync.Mutex

	estimated atomic.Int64
	now       func() time.Time
}

var _ ports.DistanceMatrixProvider = (*Provider)(nil)

// NewProvider builds a provider. routing and store may each be nil: without
// a routing service every miss is estimated, without a store nothing persists.
func NewProvider(routing ports.RoutingService, store ports.DistanceCache, cfg ProviderConfig) *Provider {
	def := DefaultProviderConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushEvery <= 0 {
		cfg.FlushEvery = def.FlushEvery
	}
	if cfg.DetourFactor <= 0 {
		cfg.DetourFactor = def.DetourFactor
	}
	if cfg.EstimateTTL <= 0 {
		cfg.EstimateTTL = def.EstimateTTL
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = def.FlushTimeout
	}

	return &Provider{
		routing: routing,
		store:   store,
		cfg:     cfg,
		log:     logger.Component("distance"),
		mem:     make(map[domain.PairKey]memEntry),
		pending: make(map[domain.PairKey]ports.DistanceCacheEntry),
		now:     time.Now,
	}
}

func (p *Provider) Distance(ctx context.Context, a, b domain.Coordinates) (ports.DistanceResult, error) {
	m, err := p.BatchDistance(ctx, []domain.Coordinates{a}, []domain.Coordinates{b})
	if err != nil {
		return ports.DistanceResult{}, err
	}
	return m[0][0], nil
}

// Estimated returns how many pairs this provider has resolved by estimate.
func (p *Provider) Estimated() int64 { return p.estimated.Load() }

// Estimate is the fallback distance for a pair.
func (p *Provider) Estimate(a, b domain.Coordinates) ports.DistanceResult {
	return ports.DistanceResult{
		Km:         domain.HaversineKm(a, b) * p.cfg.DetourFactor,
		Provenance: domain.ProvenanceEstimated,
	}
}

type pairRef struct {
	key  domain.PairKey
	a, b domain.Coordinates
}

// BatchDistance returns a len(origins) x len(destinations) matrix.
func (p *Provider) BatchDistance(
	ctx context.Context,
	origins, destinations []domain.Coordinates,
) (_ [][]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.BatchDistance")(&err)

	missing := make(map[domain.PairKey]pairRef)
	for _, o := range origins {
		for _, d := range destinations {
			k := domain.NewPairKey(o, d)
			if k.From == k.To {
				continue
			}
			if _, ok := missing[k]; ok {
				continue
			}
			if _, ok := p.fromMemory(k); ok {
				metrics.DistanceLookups.WithLabelValues("memory").Inc()
				continue
			}
			missing[k] = pairRef{key: k, a: o, b: d}
		}
	}

	if len(missing) > 0 {
		p.loadFromStore(ctx, missing)
	}

	if len(missing) > 0 {
		if err := p.resolveMissing(ctx, missing); err != nil {
			p.flushDetached()
			return nil, err
		}
	}

	out := make([][]ports.DistanceResult, len(origins))
	for i, o := range origins {
		out[i] = make([]ports.DistanceResult, len(destinations))
		for j, d := range destinations {
			k := domain.NewPairKey(o, d)
			if k.From == k.To {
				out[i][j] = ports.DistanceResult{Km: 0, Provenance: domain.ProvenanceMeasured}
				continue
			}
			res, ok := p.fromMemory(k)
			if !ok {
				// Expired between resolution and read; estimate rather than re-query.
				res = p.Estimate(o, d)
			}
			out[i][j] = res
		}
	}
	return out, nil
}

func (p *Provider) fromMemory(k domain.PairKey) (ports.DistanceResult, bool) {
	p.mu.RLock()
	e, ok := p.mem[k]
	p.mu.RUnlock()
	if !ok {
		return ports.DistanceResult{}, false
	}
	if !e.expires.IsZero() && p.now().After(e.expires) {
		return ports.DistanceResult{}, false
	}
	return e.res, true
}

func (p *Provider) loadFromStore(ctx context.Context, missing map[domain.PairKey]pairRef) {
	if p.store == nil {
		return
	}

	keys := make([]domain.PairKey, 0, len(missing))
	for k := range missing {
		keys = append(keys, k)
	}

	found, err := p.store.GetMany(ctx, keys)
	if err != nil {
		p.log.Warn().Err(err).Int("keys", len(keys)).Msg("distance store lookup failed")
		return
	}

	p.mu.Lock()
	for k, e := range found {
		p.mem[k] = memEntry{res: ports.DistanceResult{Km: e.Km, Provenance: e.Provenance}}
		delete(missing, k)
	}
	p.mu.Unlock()
	metrics.DistanceLookups.WithLabelValues("store").Add(float64(len(found)))
}

type batch struct {
	origin domain.Coordinates
	pairs  []pairRef
}

// resolveMissing queries the routing service for every pair in missing,
// grouped per origin and chunked to BatchSize, on a bounded worker pool.
func (p *Provider) resolveMissing(ctx context.Context, missing map[domain.PairKey]pairRef) error {
	if p.routing == nil {
		for _, ref := range missing {
			p.record(ref.key, p.Estimate(ref.a, ref.b))
		}
		return nil
	}

	byOrigin := make(map[string][]pairRef)
	origins := make(map[string]domain.Coordinates)
	for _, ref := range missing {
		ok := ref.a.Key()
		byOrigin[ok] = append(byOrigin[ok], ref)
		origins[ok] = ref.a
	}

	originKeys := make([]string, 0, len(byOrigin))
	for k := range byOrigin {
		originKeys = append(originKeys, k)
	}
	sort.Strings(originKeys)

	var batches []batch
	for _, ok := range originKeys {
		refs := byOrigin[ok]
		sort.Slice(refs, func(i, j int) bool { return refs[i].key.String() < refs[j].key.String() })
		for start := 0; start < len(refs); start += p.cfg.BatchSize {
			end := min(start+p.cfg.BatchSize, len(refs))
			batches = append(batches, batch{origin: origins[ok], pairs: refs[start:end]})
		}
	}

	var g errgroup.Group
	g.SetLimit(p.cfg.Workers)
	for _, b := range batches {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			return p.resolveBatch(ctx, b)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// resolveBatch tolerates partial failure: a failed batch is retried entry by
// entry and entries that still fail are estimated. Only cancellation is
// returned as an error.
func (p *Provider) resolveBatch(ctx context.Context, b batch) error {
	dests := make([]domain.Coordinates, len(b.pairs))
	for i, ref := range b.pairs {
		dests[i] = ref.b
	}

	rows, err := p.routing.Matrix(ctx, []domain.Coordinates{b.origin}, dests)
	if err == nil && len(rows) == 1 && len(rows[0]) == len(dests) {
		for i, ref := range b.pairs {
			p.recordCell(ref, rows[0][i])
		}
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	p.log.Warn().Err(err).Int("pairs", len(b.pairs)).Msg("routing batch failed, retrying per entry")

	for _, ref := range b.pairs {
		rows, err := p.routing.Matrix(ctx, []domain.Coordinates{ref.a}, []domain.Coordinates{ref.b})
		if err != nil || len(rows) != 1 || len(rows[0]) != 1 {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			p.record(ref.key, p.Estimate(ref.a, ref.b))
			continue
		}
		p.recordCell(ref, rows[0][0])
	}
	return nil
}

// recordCell stores a routing answer; a nil cell (unroutable) is estimated.
func (p *Provider) recordCell(ref pairRef, km *float64) {
	if km == nil || *km < 0 {
		p.record(ref.key, p.Estimate(ref.a, ref.b))
		return
	}
	p.record(ref.key, ports.DistanceResult{Km: *km, Provenance: domain.ProvenanceMeasured})
}

func (p *Provider) record(k domain.PairKey, res ports.DistanceResult) {
	entry := memEntry{res: res}
	if res.Provenance == domain.ProvenanceEstimated {
		entry.expires = p.now().Add(p.cfg.EstimateTTL)
		p.estimated.Add(1)
		metrics.DistanceLookups.WithLabelValues("estimated").Inc()
	} else {
		metrics.DistanceLookups.WithLabelValues("routing").Inc()
	}

	p.mu.Lock()
	p.mem[k] = entry
	p.mu.Unlock()

	if res.Provenance != domain.ProvenanceMeasured || p.store == nil {
		return
	}

	p.pendingMu.Lock()
	p.pending[k] = ports.DistanceCacheEntry{Km: res.Km, Provenance: res.Provenance}
	full := len(p.pending) >= p.cfg.FlushEvery
	p.pendingMu.Unlock()

	if full {
		// Periodic flush runs detached so a cancelled caller does not lose it.
		p.flushDetached()
	}
}

// Pending returns the number of measured entries not yet persisted.
func (p *Provider) Pending() int {
	p.pendingMu.Lock()
	defer p.pendingMu.Unlock()
	return len(p.pending)
}

// Flush persists buffered measured entries. On failure they stay buffered.
func (p *Provider) Flush(ctx context.Context) (err error) {
	defer obs.Time(ctx, "distance.Flush")(&err)

	if p.store == nil {
		return nil
	}

	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.pendingMu.Lock()
	buf := p.pending
	p.pending = make(map[domain.PairKey]ports.DistanceCacheEntry)
	p.pendingMu.Unlock()

	if len(buf) == 0 {
		return nil
	}

	if err := p.store.PutMany(ctx, buf); err != nil {
		p.pendingMu.Lock()
		for k, e := range buf {
			if _, ok := p.pending[k]; !ok {
				p.pending[k] = e
			}
		}
		p.pendingMu.Unlock()
		metrics.CacheFlushes.WithLabelValues("failed").Inc()
		return fmt.Errorf("flush distance cache: %w", err)
	}

	metrics.CacheFlushes.WithLabelValues("ok").Inc()
	p.log.Debug().Int("entries", len(buf)).Msg("distance cache flushed")
	return nil
}

func (p *Provider) flushDetached() {
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.FlushTimeout)
	defer cancel()
	if err := p.Flush(ctx); err != nil {
		p.log.Error().Err(err).Msg("distance cache flush failed")
	}
}
