package telemetry

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "github.com/wolfeidau/orgledger"
)

// Metrics holds all the OpenTelemetry metric instruments
type Metrics struct {
	// Registry metrics
	OrganizationsRegistered metric.Int64Counter
	EmployeesAdded          metric.Int64Counter
	TreasuryDeposits        metric.Int64Counter
	TreasuryWithdrawals     metric.Int64Counter

	// Wallet metrics
	WalletDeposits    metric.Int64Counter
	WalletWithdrawals metric.Int64Counter
	WalletTransfers   metric.Int64Counter

	// Privacy pool metrics
	PoolDeposits      metric.Int64Counter
	PoolWithdrawals   metric.Int64Counter
	MerkleRootUpdates metric.Int64Counter

	// Payroll metrics
	BatchesCreated metric.Int64Counter
	BatchesClosed  metric.Int64Counter
	PayrollRuns    metric.Int64Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// GetMetrics returns the singleton Metrics instance, initializing it if necessary
func GetMetrics() *Metrics {
	once.Do(func() {
		metrics = initMetrics()
	})
	return metrics
}

// initMetrics creates and registers all metric instruments
func initMetrics() *Metrics {
	meter := otel.GetMeterProvider().Meter(meterName)

	m := &Metrics{}

	m.OrganizationsRegistered, _ = meter.Int64Counter(
		"orgledger.organizations.registered.total",
		metric.WithDescription("Total number of organizations registered"),
		metric.WithUnit("{organization}"),
	)

	m.EmployeesAdded, _ = meter.Int64Counter(
		"orgledger.employees.added.total",
		metric.WithDescription("Total number of employees added to rosters"),
		metric.WithUnit("{employee}"),
	)

	m.TreasuryDeposits, _ = meter.Int64Counter(
		"orgledger.treasury.deposits.total",
		metric.WithDescription("Total number of treasury deposits recorded"),
		metric.WithUnit("{deposit}"),
	)

	m.TreasuryWithdrawals, _ = meter.Int64Counter(
		"orgledger.treasury.withdrawals.total",
		metric.WithDescription("Total number of treasury withdrawals recorded"),
		metric.WithUnit("{withdrawal}"),
	)

	m.WalletDeposits, _ = meter.Int64Counter(
		"orgledger.wallets.deposits.total",
		metric.WithDescription("Total number of wallet deposits"),
		metric.WithUnit("{deposit}"),
	)

	m.WalletWithdrawals, _ = meter.Int64Counter(
		"orgledger.wallets.withdrawals.total",
		metric.WithDescription("Total number of wallet withdrawals"),
		metric.WithUnit("{withdrawal}"),
	)

	m.WalletTransfers, _ = meter.Int64Counter(
		"orgledger.wallets.transfers.total",
		metric.WithDescription("Total number of wallet to wallet transfers"),
		metric.WithUnit("{transfer}"),
	)

	m.PoolDeposits, _ = meter.Int64Counter(
		"orgledger.pool.deposits.total",
		metric.WithDescription("Total number of anonymous pool deposits"),
		metric.WithUnit("{deposit}"),
	)

	m.PoolWithdrawals, _ = meter.Int64Counter(
		"orgledger.pool.withdrawals.total",
		metric.WithDescription("Total number of anonymous pool withdrawals"),
		metric.WithUnit("{withdrawal}"),
	)

	m.MerkleRootUpdates, _ = meter.Int64Counter(
		"orgledger.pool.merkle_root.updates.total",
		metric.WithDescription("Total number of merkle root updates"),
		metric.WithUnit("{update}"),
	)

	m.BatchesCreated, _ = meter.Int64Counter(
		"orgledger.payroll.batches.created.total",
		metric.WithDescription("Total number of payroll batches created"),
		metric.WithUnit("{batch}"),
	)

	m.BatchesClosed, _ = meter.Int64Counter(
		"orgledger.payroll.batches.closed.total",
		metric.WithDescription("Total number of payroll batches closed"),
		metric.WithUnit("{batch}"),
	)

	m.PayrollRuns, _ = meter.Int64Counter(
		"orgledger.payroll.runs.total",
		metric.WithDescription("Total number of payroll runs recorded"),
		metric.WithUnit("{run}"),
	)

	return m
}
