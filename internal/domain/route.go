package domain

import "github.com/shopspring/decimal"

// RouteHop is one pool traversal within a conversion route.
type RouteHop struct {
	PairAddress string          // pool used for this hop
	From        string          // input token address
	To          string          // output token address
	Rate        decimal.Decimal // spot rate for this hop (To per From)
}

// Route is the best conversion path from a source token to one of the
// requested target tokens. Rate is the cumulative product of the hop
// rates: how many target units one source unit buys at spot.
// An empty Hops slice means source and target are the same token.
type Route struct {
	Source string
	Target string
	Hops   []RouteHop
	Rate   decimal.Decimal
}
