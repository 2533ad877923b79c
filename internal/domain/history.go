package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PairSnapshot is one append-only observation of a pair's reserves.
// Corresponds to the pair_history table. CreatedAt is always bucketed
// (rounded down to the ingestion quantum) so that independently
// collected snapshots align across pairs.
type PairSnapshot struct {
	ID               int64
	PairID           int64
	CreatedAt        time.Time // bucketed snapshot timestamp
	AssetAAmount     decimal.Decimal
	AssetBAmount     decimal.Decimal
	AssetShareAmount decimal.Decimal
}

// TokenPricePoint is one append-only observation of a token's price in
// the configured quote asset. Corresponds to the token_history table.
// Same bucketed-timestamp discipline as PairSnapshot.
type TokenPricePoint struct {
	ID        int64
	TokenID   int64
	CreatedAt time.Time // bucketed snapshot timestamp
	Price     decimal.Decimal
}
