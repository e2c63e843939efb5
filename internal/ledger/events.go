package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Event is a typed domain event emitted by every successful mutation.
// Events are consumed by the notification/audit layer that sits outside the
// ledger; publishing failures never abort the mutation that produced them.
type Event interface {
	EventName() string
	zerolog.LogObjectMarshaler
}

// EventSink receives ledger events.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// publishEvent delivers an event to the sink, logging delivery failures.
// A nil sink drops events silently.
func publishEvent(ctx context.Context, sink EventSink, event Event) {
	if sink == nil {
		return
	}
	if err := sink.Publish(ctx, event); err != nil {
		log.Warn().Err(err).Str("event", event.EventName()).Msg("failed to publish event")
	}
}

// OrganizationRegistered is emitted when a new organization is created.
type OrganizationRegistered struct {
	AdminID     uuid.UUID
	Name        string
	EmployeeCap int
	SpendLimit  int64
	At          time.Time
}

func (e OrganizationRegistered) EventName() string { return "organization_registered" }

func (e OrganizationRegistered) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("admin_id", e.AdminID.String()).
		Str("name", e.Name).
		Int("employee_cap", e.EmployeeCap).
		Int64("spend_limit", e.SpendLimit)
}

// EmployeeAdded is emitted when an employee joins an organization's roster.
type EmployeeAdded struct {
	AdminID    uuid.UUID
	EmployeeID uuid.UUID
	WalletID   uuid.UUID
	Role       string
	At         time.Time
}

func (e EmployeeAdded) EventName() string { return "employee_added" }

func (e EmployeeAdded) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("admin_id", e.AdminID.String()).
		Str("employee_id", e.EmployeeID.String()).
		Str("wallet_id", e.WalletID.String()).
		Str("role", e.Role)
}

// EmployeeStatusChanged is emitted when an employee's active flag flips.
type EmployeeStatusChanged struct {
	AdminID    uuid.UUID
	EmployeeID uuid.UUID
	Active     bool
	At         time.Time
}

func (e EmployeeStatusChanged) EventName() string { return "employee_status_changed" }

func (e EmployeeStatusChanged) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("admin_id", e.AdminID.String()).
		Str("employee_id", e.EmployeeID.String()).
		Bool("active", e.Active)
}

// TreasuryUpdated is emitted on every treasury deposit or withdrawal.
type TreasuryUpdated struct {
	AdminID        uuid.UUID
	Amount         int64
	Withdrawal     bool
	TotalDeposited int64
	TotalWithdrawn int64
	At             time.Time
}

func (e TreasuryUpdated) EventName() string { return "treasury_updated" }

func (e TreasuryUpdated) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("admin_id", e.AdminID.String()).
		Int64("amount", e.Amount).
		Bool("withdrawal", e.Withdrawal).
		Int64("total_deposited", e.TotalDeposited).
		Int64("total_withdrawn", e.TotalWithdrawn)
}

// WalletCreated is emitted when a new wallet is created.
type WalletCreated struct {
	WalletID uuid.UUID
	OwnerID  uuid.UUID
	OrgID    uuid.UUID
	At       time.Time
}

func (e WalletCreated) EventName() string { return "wallet_created" }

func (e WalletCreated) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("wallet_id", e.WalletID.String()).
		Str("owner_id", e.OwnerID.String()).
		Str("org_id", e.OrgID.String())
}

// WalletDeposited is emitted when funds are deposited into a wallet.
type WalletDeposited struct {
	WalletID uuid.UUID
	Amount   int64
	Balance  int64
	At       time.Time
}

func (e WalletDeposited) EventName() string { return "wallet_deposited" }

func (e WalletDeposited) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("wallet_id", e.WalletID.String()).
		Int64("amount", e.Amount).
		Int64("balance", e.Balance)
}

// WalletWithdrawn is emitted when the owner withdraws funds from a wallet.
type WalletWithdrawn struct {
	WalletID uuid.UUID
	OwnerID  uuid.UUID
	Amount   int64
	Balance  int64
	At       time.Time
}

func (e WalletWithdrawn) EventName() string { return "wallet_withdrawn" }

func (e WalletWithdrawn) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("wallet_id", e.WalletID.String()).
		Str("owner_id", e.OwnerID.String()).
		Int64("amount", e.Amount).
		Int64("balance", e.Balance)
}

// FundsTransferred is emitted when funds move between two wallets.
type FundsTransferred struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       int64
	At           time.Time
}

func (e FundsTransferred) EventName() string { return "funds_transferred" }

func (e FundsTransferred) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("from_wallet_id", e.FromWalletID.String()).
		Str("to_wallet_id", e.ToWalletID.String()).
		Int64("amount", e.Amount)
}

// PoolInitialized is emitted when a privacy pool is created.
type PoolInitialized struct {
	PoolID       uuid.UUID
	Denomination int64
	At           time.Time
}

func (e PoolInitialized) EventName() string { return "pool_initialized" }

func (e PoolInitialized) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("pool_id", e.PoolID.String()).
		Int64("denomination", e.Denomination)
}

// AnonymousDeposit is emitted when a commitment is accepted into a pool.
type AnonymousDeposit struct {
	PoolID     uuid.UUID
	Commitment []byte
	Amount     int64
	At         time.Time
}

func (e AnonymousDeposit) EventName() string { return "anonymous_deposit" }

func (e AnonymousDeposit) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("pool_id", e.PoolID.String()).
		Str("commitment", base58.Encode(e.Commitment)).
		Int64("amount", e.Amount)
}

// MerkleRootUpdated is emitted when the externally computed root is pushed in.
type MerkleRootUpdated struct {
	PoolID  uuid.UUID
	OldRoot []byte
	NewRoot []byte
	At      time.Time
}

func (e MerkleRootUpdated) EventName() string { return "merkle_root_updated" }

func (e MerkleRootUpdated) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("pool_id", e.PoolID.String()).
		Str("old_root", base58.Encode(e.OldRoot)).
		Str("new_root", base58.Encode(e.NewRoot))
}

// AnonymousWithdrawal is emitted when a nullifier is spent and the
// denomination paid out.
type AnonymousWithdrawal struct {
	PoolID            uuid.UUID
	Nullifier         []byte
	RecipientWalletID uuid.UUID
	Amount            int64
	At                time.Time
}

func (e AnonymousWithdrawal) EventName() string { return "anonymous_withdrawal" }

func (e AnonymousWithdrawal) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("pool_id", e.PoolID.String()).
		Str("nullifier", base58.Encode(e.Nullifier)).
		Str("recipient_wallet_id", e.RecipientWalletID.String()).
		Int64("amount", e.Amount)
}

// BatchCreated is emitted when a payroll batch escrows its funding.
type BatchCreated struct {
	BatchID uuid.UUID
	OrgID   uuid.UUID
	Funding int64
	At      time.Time
}

func (e BatchCreated) EventName() string { return "batch_created" }

func (e BatchCreated) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("batch_id", e.BatchID.String()).
		Str("org_id", e.OrgID.String()).
		Int64("funding", e.Funding)
}

// PayrollDistributed is emitted when a pending recipient is consumed from a
// batch, whether the payment was credited directly or handed back to the
// caller for settlement.
type PayrollDistributed struct {
	BatchID    uuid.UUID
	EmployeeID uuid.UUID
	Amount     int64
	At         time.Time
}

func (e PayrollDistributed) EventName() string { return "payroll_distributed" }

func (e PayrollDistributed) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("batch_id", e.BatchID.String()).
		Str("employee_id", e.EmployeeID.String()).
		Int64("amount", e.Amount)
}

// PayrollRunCompleted is emitted when a run history record is written.
type PayrollRunCompleted struct {
	RunID      int64
	OrgID      uuid.UUID
	ExecutorID uuid.UUID
	Amount     int64
	At         time.Time
}

func (e PayrollRunCompleted) EventName() string { return "payroll_run_completed" }

func (e PayrollRunCompleted) MarshalZerologObject(ev *zerolog.Event) {
	ev.Int64("run_id", e.RunID).
		Str("org_id", e.OrgID.String()).
		Str("executor_id", e.ExecutorID.String()).
		Int64("amount", e.Amount)
}

// BatchClosed is emitted when a batch is destroyed. Forfeited counts the
// pending recipients discarded without payment.
type BatchClosed struct {
	BatchID   uuid.UUID
	Residual  int64
	Forfeited int
	At        time.Time
}

func (e BatchClosed) EventName() string { return "batch_closed" }

func (e BatchClosed) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("batch_id", e.BatchID.String()).
		Int64("residual", e.Residual).
		Int("forfeited", e.Forfeited)
}

// LogSink writes events to a zerolog logger. It never fails.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink creates a sink that logs events at info level.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Publish(_ context.Context, event Event) error {
	s.logger.Info().
		Str("event", event.EventName()).
		Object("payload", event).
		Msg("ledger event")
	return nil
}

// MemorySink captures events for tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Publish(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a snapshot of the captured events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

// MultiSink fans events out to several sinks, returning the first error.
type MultiSink []EventSink

func (s MultiSink) Publish(ctx context.Context, event Event) error {
	var firstErr error
	for _, sink := range s {
		if err := sink.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
