package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pair represents a liquidity pool holding two tradable assets plus the
// pool's liquidity-share token. Corresponds to the pairs table in
// PostgreSQL. The amount fields are a denormalized view of the most
// recently ingested reserves; the full series lives in pair_history.
type Pair struct {
	ID               int64           // BIGSERIAL primary key
	Address          string          // pool contract address (unique)
	AssetAID         int64           // FK to tokens
	AssetAAmount     decimal.Decimal // latest known reserve of asset A
	AssetBID         int64           // FK to tokens
	AssetBAmount     decimal.Decimal // latest known reserve of asset B
	AssetShareID     int64           // FK to tokens (LP-share token)
	AssetShareAmount decimal.Decimal // latest known share supply
	CreatedAt        time.Time       // record creation timestamp
	UpdatedAt        time.Time       // last reserve refresh timestamp
}

// Reserves holds one observation of a pool's balances.
type Reserves struct {
	AssetA     decimal.Decimal
	AssetB     decimal.Decimal
	AssetShare decimal.Decimal
}
