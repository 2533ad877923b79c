package pricing

import (
	"context"
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"dex-price-engine/internal/domain"
	"dex-price-engine/internal/storage"
)

// BestPath finds the highest-yield conversion path from source to any
// of the target addresses. The boolean result is false when no route
// exists, which is an ordinary outcome, not an error.
//
// The search enumerates simple paths depth-first. Cycles with a rate
// product above one are ordinary input here (two pools quoting the same
// pair at different prices is an on-chain arbitrage condition), so
// shortest-path relaxation does not apply; restricting the search to
// simple paths keeps the optimum well-defined and the walk finite. A
// path ends at the first target it reaches: converting onward through
// one quote asset to another is never explored. Ties on rate break
// toward fewer hops.
func (g *Graph) BestPath(source string, targets []string) (*domain.Route, bool) {
	if !g.HasNode(source) {
		return nil, false
	}

	targetSet := make(map[string]struct{}, len(targets))
	for _, t := range targets {
		if g.HasNode(t) {
			targetSet[t] = struct{}{}
		}
	}
	if len(targetSet) == 0 {
		return nil, false
	}

	if _, ok := targetSet[source]; ok {
		return &domain.Route{Source: source, Target: source, Rate: decimal.NewFromInt(1)}, true
	}

	var (
		found      bool
		bestRate   decimal.Decimal
		bestHops   []domain.RouteHop
		bestTarget string
	)
	visited := map[string]bool{source: true}
	path := make([]domain.RouteHop, 0, len(g.adj))

	var walk func(node string, rate decimal.Decimal)
	walk = func(node string, rate decimal.Decimal) {
		if _, isTarget := targetSet[node]; isTarget {
			if !found || rate.GreaterThan(bestRate) ||
				(rate.Equal(bestRate) && len(path) < len(bestHops)) {
				found = true
				bestRate = rate
				bestTarget = node
				bestHops = append(bestHops[:0:0], path...)
			}
			return
		}
		for _, idx := range g.adj[node] {
			e := g.edges[idx]
			if visited[e.To] {
				continue
			}
			visited[e.To] = true
			path = append(path, domain.RouteHop{
				PairAddress: e.Pair.Address,
				From:        e.From,
				To:          e.To,
				Rate:        e.Rate,
			})
			walk(e.To, rate.Mul(e.Rate))
			path = path[:len(path)-1]
			visited[e.To] = false
		}
	}
	walk(source, decimal.NewFromInt(1))

	if !found {
		return nil, false
	}
	return &domain.Route{Source: source, Target: bestTarget, Hops: bestHops, Rate: bestRate}, true
}

// Router is a store-backed, stateless path finder for in-process
// consumers. Every call reloads the snapshot and rebuilds the graph.
type Router struct {
	tokens storage.TokenStore
	pairs  storage.PairStore
	logger *log.Logger
}

// NewRouter creates a Router over the given stores.
func NewRouter(tokens storage.TokenStore, pairs storage.PairStore, logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	return &Router{tokens: tokens, pairs: pairs, logger: logger}
}

// BestPath loads the current snapshot and routes source to the best of
// targets. A store failure surfaces as an error; an unreachable target
// is the (nil, false, nil) no-route result.
func (r *Router) BestPath(ctx context.Context, source string, targets []string) (*domain.Route, bool, error) {
	tokens, err := r.tokens.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load tokens: %w", err)
	}
	pairs, err := r.pairs.List(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("load pairs: %w", err)
	}

	route, ok := BuildGraph(pairs, tokens, r.logger).BestPath(source, targets)
	return route, ok, nil
}
