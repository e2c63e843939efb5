package ledger

import "errors"

// Error taxonomy for ledger operations. Every failure aborts the whole
// operation with zero observable state change - there is no partial commit
// and no internal retry. Store-level sentinel errors are translated into
// this taxonomy at the service boundary; infrastructure failures are wrapped
// and passed through unchanged.
var (
	// ErrUnauthorized - the caller identity doesn't match the admin/owner
	// recorded on the entity.
	ErrUnauthorized = errors.New("caller not authorized")

	// ErrNotFound - the referenced organization, employee, wallet, pool,
	// batch, or pending recipient doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists - duplicate registration, roster entry, or commitment.
	ErrAlreadyExists = errors.New("already exists")

	// ErrCapacityExceeded - employee cap or batch recipient limit reached.
	ErrCapacityExceeded = errors.New("capacity exceeded")

	// ErrInsufficientFunds - the operation would drive a balance negative.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrInvalidAmount - non-positive amount, cap, or limit, or a pool
	// deposit that doesn't match the denomination.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNullifierReplayed - the nullifier was already spent.
	ErrNullifierReplayed = errors.New("nullifier already spent")

	// ErrRootMismatch - the claimed merkle root doesn't exactly match the
	// pool's current root.
	ErrRootMismatch = errors.New("merkle root mismatch")

	// ErrProofInvalid - the external proof oracle rejected the proof.
	ErrProofInvalid = errors.New("proof rejected")

	// ErrTreasuryLimitExceeded - a treasury deposit would push net holdings
	// past the organization's spend limit.
	ErrTreasuryLimitExceeded = errors.New("treasury spend limit exceeded")
)
