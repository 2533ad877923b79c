// Package ingestion runs the recurring pool-discovery and snapshot loop.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/semaphore"

	"dex-price-engine/internal/chain"
	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/observability"
	"dex-price-engine/internal/pricing"
	"dex-price-engine/internal/storage"
)

// Default cadence and limits.
const (
	DefaultInterval    = 15 * time.Minute
	DefaultRetention   = 7 * 24 * time.Hour
	DefaultRPCTimeout  = 30 * time.Second
	DefaultMaxInFlight = 10
)

// Scheduler walks all pools known to the chain on a fixed cadence,
// persisting pair snapshots and per-token prices, then pruning history
// past the retention horizon. It owns its lifecycle: Run blocks until
// the context is cancelled and the scheduler survives any single bad
// tick.
type Scheduler struct {
	reader       chain.Reader
	feed         chain.EventFeed
	tokenStore   storage.TokenStore
	pairStore    storage.PairStore
	pairHistory  storage.PairHistoryStore
	tokenHistory storage.TokenHistoryStore

	interval    time.Duration
	retention   time.Duration
	bucket      time.Duration
	rpcTimeout  time.Duration
	maxInFlight int64
	quoteAssets []string

	metrics *observability.Metrics
	logger  *log.Logger
	now     func() time.Time

	lastTick atomic.Int64 // unix nanos of the last completed tick
}

// SchedulerOptions contains configuration for creating a Scheduler.
type SchedulerOptions struct {
	Reader       chain.Reader             // required
	Feed         chain.EventFeed          // optional live pool-created feed
	TokenStore   storage.TokenStore       // required
	PairStore    storage.PairStore        // required
	PairHistory  storage.PairHistoryStore // required
	TokenHistory storage.TokenHistoryStore

	Interval    time.Duration // tick cadence, default 15m
	Retention   time.Duration // history horizon, default 7d
	Bucket      time.Duration // snapshot alignment quantum, default 15m
	RPCTimeout  time.Duration // per-RPC bound, default 30s
	MaxInFlight int64         // concurrent pool fetches, default 10
	QuoteAssets []string      // token addresses prices are quoted in

	Metrics *observability.Metrics
	Logger  *log.Logger
	Now     func() time.Time // injectable clock for tests
}

// NewScheduler creates a new ingestion scheduler.
func NewScheduler(opts SchedulerOptions) *Scheduler {
	interval := opts.Interval
	if interval == 0 {
		interval = DefaultInterval
	}
	retention := opts.Retention
	if retention == 0 {
		retention = DefaultRetention
	}
	bucket := opts.Bucket
	if bucket == 0 {
		bucket = DefaultBucket
	}
	rpcTimeout := opts.RPCTimeout
	if rpcTimeout == 0 {
		rpcTimeout = DefaultRPCTimeout
	}
	maxInFlight := opts.MaxInFlight
	if maxInFlight == 0 {
		maxInFlight = DefaultMaxInFlight
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		reader:       opts.Reader,
		feed:         opts.Feed,
		tokenStore:   opts.TokenStore,
		pairStore:    opts.PairStore,
		pairHistory:  opts.PairHistory,
		tokenHistory: opts.TokenHistory,
		interval:     interval,
		retention:    retention,
		bucket:       bucket,
		rpcTimeout:   rpcTimeout,
		maxInFlight:  maxInFlight,
		quoteAssets:  opts.QuoteAssets,
		metrics:      opts.Metrics,
		logger:       logger,
		now:          now,
	}
}

// TickStats summarizes one tick for logging and tests.
type TickStats struct {
	PoolsSeen      int
	PoolsIngested  int
	PoolsFailed    int
	PricesComputed int
	RowsPruned     int64
}

// Run starts the scheduler: an immediate first tick, then one tick per
// interval. If a live feed is configured, newly announced pools are
// ingested as soon as they appear. Run only returns on context cancel.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Printf("Scheduler started, interval: %v, retention: %v, max in-flight: %d",
		s.interval, s.retention, s.maxInFlight)

	var events <-chan chain.PoolEvent
	if s.feed != nil {
		var err error
		events, err = s.feed.Subscribe(ctx)
		if err != nil {
			// The periodic tick still discovers every pool; a dead feed
			// only costs latency.
			s.logger.Printf("Pool feed unavailable: %v", err)
		} else {
			s.logger.Println("Subscribed to pool-created events")
		}
	}

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Println("Scheduler stopping...")
			return ctx.Err()

		case <-ticker.C:
			s.tick(ctx)

		case event, ok := <-events:
			if !ok {
				s.logger.Println("Pool feed closed")
				events = nil
				continue
			}
			s.logger.Printf("Pool created on-chain: %s", event.Pool)
			bucket := BucketTime(s.now(), s.bucket)
			if err := s.ingestPool(ctx, event.Pool, bucket); err != nil {
				s.logger.Printf("Error ingesting announced pool %s: %v", event.Pool, err)
			}
		}
	}
}

// tick runs one full ingestion pass. Every failure inside is contained:
// the scheduler never crashes on a bad tick.
func (s *Scheduler) tick(ctx context.Context) {
	started := s.now()
	stats := s.RunTick(ctx, started)
	s.logger.Printf("Tick done in %v: %d/%d pools ingested, %d failed, %d prices, %d rows pruned",
		s.now().Sub(started).Round(time.Millisecond),
		stats.PoolsIngested, stats.PoolsSeen, stats.PoolsFailed, stats.PricesComputed, stats.RowsPruned)
}

// RunTick executes a single tick at the given wall time and reports
// what happened. Exported for one-shot runs and tests.
func (s *Scheduler) RunTick(ctx context.Context, now time.Time) TickStats {
	var stats TickStats

	if s.metrics != nil {
		s.metrics.TicksTotal.Inc()
		defer func(start time.Time) {
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}(time.Now())
	}

	bucket := BucketTime(now, s.bucket)

	pools, err := s.listPools(ctx)
	if err != nil {
		s.logger.Printf("Error listing pools, skipping tick: %v", err)
		return stats
	}
	stats.PoolsSeen = len(pools)

	// Bounded fan-out: per-pool work is independent, failures are
	// isolated, and the semaphore keeps the RPC provider happy.
	sem := semaphore.NewWeighted(s.maxInFlight)
	results := make([]error, len(pools))
	for i, pool := range pools {
		if err := sem.Acquire(ctx, 1); err != nil {
			results[i] = err
			continue
		}
		go func(i int, pool string) {
			defer sem.Release(1)
			results[i] = s.ingestPool(ctx, pool, bucket)
		}(i, pool)
	}
	// Drain the semaphore: all in-flight pool work is finished before
	// pricing and pruning run.
	if err := sem.Acquire(ctx, s.maxInFlight); err == nil {
		sem.Release(s.maxInFlight)
	}

	for i, err := range results {
		if err != nil {
			stats.PoolsFailed++
			s.logger.Printf("Error ingesting pool %s at %v: %v", pools[i], bucket, err)
			continue
		}
		stats.PoolsIngested++
	}
	if s.metrics != nil {
		s.metrics.PoolsIngested.Add(float64(stats.PoolsIngested))
	}

	stats.PricesComputed = s.computePrices(ctx, bucket)
	stats.RowsPruned = s.pruneHistory(ctx, now)

	s.lastTick.Store(now.UnixNano())
	if s.metrics != nil {
		s.metrics.LastSuccessfulTick.SetToCurrentTime()
	}
	return stats
}

// LastTick returns the start time of the most recently completed tick,
// or the zero time when none has finished yet.
func (s *Scheduler) LastTick() time.Time {
	n := s.lastTick.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

// listPools asks the chain for the current pool set.
func (s *Scheduler) listPools(ctx context.Context) ([]string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()
	return s.reader.ListPools(cctx)
}

// ingestPool fetches one pool's config and reserves, resolves its
// tokens, refreshes the pair's current view and appends a snapshot.
func (s *Scheduler) ingestPool(ctx context.Context, pool string, bucket time.Time) error {
	cfg, err := s.fetchConfig(ctx, pool)
	if err != nil {
		s.failPool("config")
		return fmt.Errorf("fetch config: %w", err)
	}

	raw, err := s.fetchReserves(ctx, pool)
	if err != nil {
		s.failPool("reserves")
		return fmt.Errorf("fetch reserves: %w", err)
	}

	reserves, err := parseReserves(raw)
	if err != nil {
		s.failPool("reserves")
		return fmt.Errorf("malformed reserves: %w", err)
	}

	tokenA, err := s.resolveToken(ctx, cfg.AssetA)
	if err != nil {
		s.failPool("token")
		return fmt.Errorf("resolve asset A %s: %w", cfg.AssetA, err)
	}
	tokenB, err := s.resolveToken(ctx, cfg.AssetB)
	if err != nil {
		s.failPool("token")
		return fmt.Errorf("resolve asset B %s: %w", cfg.AssetB, err)
	}
	tokenShare, err := s.resolveToken(ctx, cfg.AssetShare)
	if err != nil {
		s.failPool("token")
		return fmt.Errorf("resolve share token %s: %w", cfg.AssetShare, err)
	}

	pair, err := s.pairStore.GetOrCreate(ctx, &domain.Pair{
		Address:          pool,
		AssetAID:         tokenA.ID,
		AssetAAmount:     reserves.AssetA,
		AssetBID:         tokenB.ID,
		AssetBAmount:     reserves.AssetB,
		AssetShareID:     tokenShare.ID,
		AssetShareAmount: reserves.AssetShare,
	})
	if err != nil {
		s.failPool("store")
		return fmt.Errorf("upsert pair: %w", err)
	}

	if err := s.pairStore.UpdateReserves(ctx, pair.ID, reserves); err != nil {
		s.failPool("store")
		return fmt.Errorf("update reserves: %w", err)
	}

	err = s.pairHistory.Append(ctx, &domain.PairSnapshot{
		PairID:           pair.ID,
		CreatedAt:        bucket,
		AssetAAmount:     reserves.AssetA,
		AssetBAmount:     reserves.AssetB,
		AssetShareAmount: reserves.AssetShare,
	})
	if err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		// A duplicate means another tick already owns this bucket.
		s.failPool("store")
		return fmt.Errorf("append snapshot: %w", err)
	}

	return nil
}

func (s *Scheduler) fetchConfig(ctx context.Context, pool string) (*chain.PoolConfig, error) {
	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()
	return s.reader.GetPoolConfig(cctx, pool)
}

func (s *Scheduler) fetchReserves(ctx context.Context, pool string) (*chain.PoolReserves, error) {
	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	defer cancel()
	return s.reader.GetPoolReserves(cctx, pool)
}

// resolveToken returns the stored token for an address, fetching chain
// metadata only on first sighting.
func (s *Scheduler) resolveToken(ctx context.Context, address string) (*domain.Token, error) {
	tok, err := s.tokenStore.GetByAddress(ctx, address)
	if err == nil {
		return tok, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, s.rpcTimeout)
	meta, err := s.reader.GetTokenMetadata(cctx, address)
	cancel()
	if err != nil {
		return nil, fmt.Errorf("fetch metadata: %w", err)
	}

	return s.tokenStore.GetOrCreate(ctx, &domain.Token{
		Address:  address,
		Name:     meta.Name,
		Symbol:   meta.Symbol,
		Decimals: meta.Decimals,
	})
}

// computePrices builds the pair graph once and appends a price point
// for every token with a route into the quote assets. No-route tokens
// are expected during liquidity bootstrap and skipped silently.
func (s *Scheduler) computePrices(ctx context.Context, bucket time.Time) int {
	if s.tokenHistory == nil || len(s.quoteAssets) == 0 {
		return 0
	}

	tokens, err := s.tokenStore.List(ctx)
	if err != nil {
		s.logger.Printf("Error loading tokens for pricing: %v", err)
		return 0
	}
	pairs, err := s.pairStore.List(ctx)
	if err != nil {
		s.logger.Printf("Error loading pairs for pricing: %v", err)
		return 0
	}

	graph := pricing.BuildGraph(pairs, tokens, s.logger)

	computed := 0
	for _, tok := range tokens {
		route, ok := graph.BestPath(tok.Address, s.quoteAssets)
		if !ok {
			continue
		}
		err := s.tokenHistory.Append(ctx, &domain.TokenPricePoint{
			TokenID:   tok.ID,
			CreatedAt: bucket,
			Price:     route.Rate,
		})
		if err != nil {
			if !errors.Is(err, storage.ErrDuplicateKey) {
				s.logger.Printf("Error storing price for %s: %v", tok.Address, err)
			}
			continue
		}
		computed++
	}
	if s.metrics != nil {
		s.metrics.PricesComputed.Add(float64(computed))
	}
	return computed
}

// pruneHistory deletes rows past the retention horizon. Failures are
// logged and never block the next tick.
func (s *Scheduler) pruneHistory(ctx context.Context, now time.Time) int64 {
	cutoff := now.UTC().Add(-s.retention)

	var total int64
	if s.pairHistory != nil {
		n, err := s.pairHistory.PruneOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Printf("Error pruning pair history: %v", err)
		} else {
			total += n
			if s.metrics != nil {
				s.metrics.HistoryPruned.WithLabelValues("pair_history").Add(float64(n))
			}
		}
	}
	if s.tokenHistory != nil {
		n, err := s.tokenHistory.PruneOlderThan(ctx, cutoff)
		if err != nil {
			s.logger.Printf("Error pruning token history: %v", err)
		} else {
			total += n
			if s.metrics != nil {
				s.metrics.HistoryPruned.WithLabelValues("token_history").Add(float64(n))
			}
		}
	}
	return total
}

func (s *Scheduler) failPool(stage string) {
	if s.metrics != nil {
		s.metrics.PoolFailures.WithLabelValues(stage).Inc()
	}
}

// parseReserves converts wire-format reserve strings into decimals.
func parseReserves(raw *chain.PoolReserves) (domain.Reserves, error) {
	assetA, err := decimal.NewFromString(raw.AssetAAmount)
	if err != nil {
		return domain.Reserves{}, fmt.Errorf("asset A amount %q: %w", raw.AssetAAmount, err)
	}
	assetB, err := decimal.NewFromString(raw.AssetBAmount)
	if err != nil {
		return domain.Reserves{}, fmt.Errorf("asset B amount %q: %w", raw.AssetBAmount, err)
	}
	share, err := decimal.NewFromString(raw.AssetShareAmount)
	if err != nil {
		return domain.Reserves{}, fmt.Errorf("share amount %q: %w", raw.AssetShareAmount, err)
	}
	return domain.Reserves{AssetA: assetA, AssetB: assetB, AssetShare: share}, nil
}
