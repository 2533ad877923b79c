// Package pricing computes conversion rates over the pair graph.
//
// Nodes are tradable token addresses, edges are pools weighted by the
// spot rate derived from their reserve ratio. LP-share tokens are never
// routing nodes. The graph is rebuilt from the current store snapshot
// on every use; there is no incremental state between ticks.
package pricing

import (
	"log"

	"github.com/shopspring/decimal"

	"dex-price-engine/internal/domain"
)

// ratePrecision is the number of decimal digits kept when dividing
// normalized reserves. Large enough that round-tripping a rate through
// 18-decimals reserves stays well under 1e-9 relative error.
const ratePrecision = 32

// Edge is one directed traversal of a pool.
type Edge struct {
	Pair *domain.Pair
	From string          // input token address
	To   string          // output token address
	Rate decimal.Decimal // To units per one From unit at spot
}

// Graph is a snapshot of the tradable pair graph.
type Graph struct {
	edges  []Edge
	adj    map[string][]int // node address -> indices into edges
	logger *log.Logger
}

// BuildGraph constructs the pair graph from a store snapshot.
//
// Pairs with a zero or missing reserve on either side contribute no
// edge (guards division by zero); pairs referencing unknown tokens are
// skipped and logged. Any address that appears as a share token
// anywhere is excluded from the node set entirely.
func BuildGraph(pairs []*domain.Pair, tokens []*domain.Token, logger *log.Logger) *Graph {
	if logger == nil {
		logger = log.Default()
	}

	byID := make(map[int64]*domain.Token, len(tokens))
	for _, t := range tokens {
		byID[t.ID] = t
	}

	shareAddrs := make(map[string]struct{})
	for _, p := range pairs {
		if shr, ok := byID[p.AssetShareID]; ok {
			shareAddrs[shr.Address] = struct{}{}
		}
	}

	g := &Graph{adj: make(map[string][]int), logger: logger}

	for _, p := range pairs {
		tokA, okA := byID[p.AssetAID]
		tokB, okB := byID[p.AssetBID]
		if !okA || !okB {
			logger.Printf("Skipping pair %s: unresolved token reference", p.Address)
			continue
		}
		if _, isShare := shareAddrs[tokA.Address]; isShare {
			continue
		}
		if _, isShare := shareAddrs[tokB.Address]; isShare {
			continue
		}
		if !p.AssetAAmount.IsPositive() || !p.AssetBAmount.IsPositive() {
			logger.Printf("Skipping pair %s: empty reserves", p.Address)
			continue
		}

		// Normalize raw integer reserves by token decimals before the
		// ratio so tokens with different decimal counts compare.
		normA := p.AssetAAmount.Shift(int32(-tokA.Decimals))
		normB := p.AssetBAmount.Shift(int32(-tokB.Decimals))

		// Quotients truncate toward zero. Rounding half away would let
		// the reciprocal edges of an inexact ratio multiply to slightly
		// more than one.
		rateAB, _ := normB.QuoRem(normA, ratePrecision)
		rateBA, _ := normA.QuoRem(normB, ratePrecision)

		g.addEdge(Edge{Pair: p, From: tokA.Address, To: tokB.Address, Rate: rateAB})
		g.addEdge(Edge{Pair: p, From: tokB.Address, To: tokA.Address, Rate: rateBA})
	}

	return g
}

func (g *Graph) addEdge(e Edge) {
	g.edges = append(g.edges, e)
	g.adj[e.From] = append(g.adj[e.From], len(g.edges)-1)
	if _, ok := g.adj[e.To]; !ok {
		g.adj[e.To] = nil
	}
}

// Nodes returns the tradable token addresses in the graph.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.adj))
	for addr := range g.adj {
		out = append(out, addr)
	}
	return out
}

// HasNode reports whether addr is a tradable node.
func (g *Graph) HasNode(addr string) bool {
	_, ok := g.adj[addr]
	return ok
}
