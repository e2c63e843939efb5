package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
	"github.com/wolfeidau/orgledger/internal/telemetry"
)

// Registry owns organizations, employee rosters, and treasury bookkeeping.
// Caller identities arrive pre-verified from the auth layer that sits in
// front of the ledger; authorization here is a plain identity-equality check
// against the admin recorded on the organization.
type Registry struct {
	orgs store.OrganizationStore
	sink EventSink
}

// NewRegistry creates a registry over the given organization store.
func NewRegistry(orgs store.OrganizationStore, sink EventSink) *Registry {
	return &Registry{
		orgs: orgs,
		sink: sink,
	}
}

// RegisterOrganization creates a new organization keyed by the admin
// identity. One organization per admin.
func (r *Registry) RegisterOrganization(ctx context.Context, admin uuid.UUID, name string, metadata map[string]string, employeeCap int, spendLimit int64) (*models.Organization, error) {
	if employeeCap <= 0 {
		return nil, fmt.Errorf("%w: employee cap must be positive", ErrInvalidAmount)
	}
	if spendLimit <= 0 {
		return nil, fmt.Errorf("%w: spend limit must be positive", ErrInvalidAmount)
	}

	now := time.Now()
	org := &models.Organization{
		AdminID:     admin,
		Name:        name,
		Metadata:    metadata,
		EmployeeCap: employeeCap,
		Treasury: models.Treasury{
			SpendLimit: spendLimit,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.orgs.CreateOrganization(ctx, org); err != nil {
		if errors.Is(err, store.ErrOrganizationAlreadyExists) {
			return nil, fmt.Errorf("%w: organization for admin %s", ErrAlreadyExists, admin)
		}
		return nil, fmt.Errorf("failed to register organization: %w", err)
	}

	telemetry.GetMetrics().OrganizationsRegistered.Add(ctx, 1)

	log.Info().
		Str("admin_id", admin.String()).
		Str("name", name).
		Msg("Registered organization")

	publishEvent(ctx, r.sink, OrganizationRegistered{
		AdminID:     admin,
		Name:        name,
		EmployeeCap: employeeCap,
		SpendLimit:  spendLimit,
		At:          now,
	})

	return org, nil
}

// AddEmployee inserts an employee on the organization's roster. Only the
// organization admin may add employees.
func (r *Registry) AddEmployee(ctx context.Context, caller, admin, employee, walletID uuid.UUID, role string) (*models.EmployeeProfile, error) {
	if caller != admin {
		return nil, ErrUnauthorized
	}

	now := time.Now()
	profile := &models.EmployeeProfile{
		EmployeeID:  employee,
		WalletID:    walletID,
		Role:        role,
		Active:      true,
		AddedAt:     now,
		LastUpdated: now,
	}

	if err := r.orgs.PutEmployee(ctx, admin, profile); err != nil {
		switch {
		case errors.Is(err, store.ErrOrganizationNotFound):
			return nil, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		case errors.Is(err, store.ErrEmployeeAlreadyExists):
			return nil, fmt.Errorf("%w: employee %s", ErrAlreadyExists, employee)
		case errors.Is(err, store.ErrEmployeeCapReached):
			return nil, fmt.Errorf("%w: employee cap reached", ErrCapacityExceeded)
		}
		return nil, fmt.Errorf("failed to add employee: %w", err)
	}

	telemetry.GetMetrics().EmployeesAdded.Add(ctx, 1)

	publishEvent(ctx, r.sink, EmployeeAdded{
		AdminID:    admin,
		EmployeeID: employee,
		WalletID:   walletID,
		Role:       role,
		At:         now,
	})

	return profile, nil
}

// UpdateEmployeeStatus flips an employee's active flag. Admin-gated.
func (r *Registry) UpdateEmployeeStatus(ctx context.Context, caller, admin, employee uuid.UUID, active bool) (*models.EmployeeProfile, error) {
	if caller != admin {
		return nil, ErrUnauthorized
	}

	profile, err := r.orgs.SetEmployeeActive(ctx, admin, employee, active)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrganizationNotFound):
			return nil, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		case errors.Is(err, store.ErrEmployeeNotFound):
			return nil, fmt.Errorf("%w: employee %s", ErrNotFound, employee)
		}
		return nil, fmt.Errorf("failed to update employee status: %w", err)
	}

	publishEvent(ctx, r.sink, EmployeeStatusChanged{
		AdminID:    admin,
		EmployeeID: employee,
		Active:     active,
		At:         profile.LastUpdated,
	})

	return profile, nil
}

// RecordDeposit books a treasury deposit. Admin-gated; the spend-limit
// invariant is asserted after the increase.
func (r *Registry) RecordDeposit(ctx context.Context, caller, admin uuid.UUID, amount int64) (*models.Treasury, error) {
	if caller != admin {
		return nil, ErrUnauthorized
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: deposit must be positive", ErrInvalidAmount)
	}

	treasury, err := r.orgs.ApplyTreasuryDeposit(ctx, admin, amount)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrganizationNotFound):
			return nil, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		case errors.Is(err, store.ErrTreasuryLimitExceeded):
			return nil, ErrTreasuryLimitExceeded
		}
		return nil, fmt.Errorf("failed to record deposit: %w", err)
	}

	telemetry.GetMetrics().TreasuryDeposits.Add(ctx, 1)

	publishEvent(ctx, r.sink, TreasuryUpdated{
		AdminID:        admin,
		Amount:         amount,
		TotalDeposited: treasury.TotalDeposited,
		TotalWithdrawn: treasury.TotalWithdrawn,
		At:             time.Now(),
	})

	return treasury, nil
}

// RecordWithdrawal books a treasury withdrawal. Admin-gated; available
// funds are asserted before the increase.
func (r *Registry) RecordWithdrawal(ctx context.Context, caller, admin uuid.UUID, amount int64) (*models.Treasury, error) {
	if caller != admin {
		return nil, ErrUnauthorized
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: withdrawal must be positive", ErrInvalidAmount)
	}

	treasury, err := r.orgs.ApplyTreasuryWithdrawal(ctx, admin, amount)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrganizationNotFound):
			return nil, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		case errors.Is(err, store.ErrInsufficientFunds):
			return nil, fmt.Errorf("%w: treasury available below %d", ErrInsufficientFunds, amount)
		}
		return nil, fmt.Errorf("failed to record withdrawal: %w", err)
	}

	telemetry.GetMetrics().TreasuryWithdrawals.Add(ctx, 1)

	publishEvent(ctx, r.sink, TreasuryUpdated{
		AdminID:        admin,
		Amount:         amount,
		Withdrawal:     true,
		TotalDeposited: treasury.TotalDeposited,
		TotalWithdrawn: treasury.TotalWithdrawn,
		At:             time.Now(),
	})

	return treasury, nil
}

// OrganizationExists reports whether an organization is registered.
func (r *Registry) OrganizationExists(ctx context.Context, admin uuid.UUID) (bool, error) {
	return r.orgs.OrganizationExists(ctx, admin)
}

// EmployeeCount returns the organization's current roster size.
func (r *Registry) EmployeeCount(ctx context.Context, admin uuid.UUID) (int, error) {
	count, err := r.orgs.CountEmployees(ctx, admin)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return 0, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		}
		return 0, err
	}
	return count, nil
}

// Treasury returns a snapshot of the organization's treasury.
func (r *Registry) Treasury(ctx context.Context, admin uuid.UUID) (*models.Treasury, error) {
	org, err := r.orgs.GetOrganization(ctx, admin)
	if err != nil {
		if errors.Is(err, store.ErrOrganizationNotFound) {
			return nil, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		}
		return nil, err
	}
	treasury := org.Treasury
	return &treasury, nil
}

// GetEmployee returns an employee profile from the roster.
func (r *Registry) GetEmployee(ctx context.Context, admin, employee uuid.UUID) (*models.EmployeeProfile, error) {
	profile, err := r.orgs.GetEmployee(ctx, admin, employee)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrOrganizationNotFound):
			return nil, fmt.Errorf("%w: organization for admin %s", ErrNotFound, admin)
		case errors.Is(err, store.ErrEmployeeNotFound):
			return nil, fmt.Errorf("%w: employee %s", ErrNotFound, employee)
		}
		return nil, err
	}
	return profile, nil
}
