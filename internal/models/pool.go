package models

import (
	"time"

	"github.com/google/uuid"
)

// Pool is a fixed-denomination anonymous deposit/withdraw pool.
// Commitments and nullifiers are opaque byte strings supplied by callers;
// the pool only tracks membership to prevent reuse. The merkle root is
// computed by an external indexer and pushed in via SetMerkleRoot - the
// pool trusts whatever root it is given.
type Pool struct {
	PoolID           uuid.UUID // UUIDv7
	Denomination     int64     // every deposit and withdrawal moves exactly this amount
	Balance          int64
	MerkleRoot       []byte
	TotalDeposits    int64 // cumulative value deposited
	TotalWithdrawals int64 // cumulative value withdrawn
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
