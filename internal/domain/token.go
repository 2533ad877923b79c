package domain

import "time"

// Token represents an on-chain asset observed in at least one pool.
// Corresponds to the tokens table in PostgreSQL. Metadata is immutable
// once recorded: on-chain token metadata does not change.
type Token struct {
	ID        int64     // BIGSERIAL primary key
	Address   string    // on-chain contract address (unique)
	Name      string    // token name from chain metadata
	Symbol    string    // token symbol from chain metadata
	Decimals  int       // decimal places used for amount scaling
	CreatedAt time.Time // record creation timestamp
}
