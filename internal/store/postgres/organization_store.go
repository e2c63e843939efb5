package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// CreateOrganization creates a new organization keyed by admin identity.
func (l *Ledger) CreateOrganization(ctx context.Context, org *models.Organization) error {
	query := `
		INSERT INTO organizations (
			admin_id, name, metadata, employee_cap, employee_count,
			total_deposited, total_withdrawn, spend_limit, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`

	_, err := l.pool.Exec(ctx, query,
		org.AdminID,
		org.Name,
		org.Metadata,
		org.EmployeeCap,
		org.EmployeeCount,
		org.Treasury.TotalDeposited,
		org.Treasury.TotalWithdrawn,
		org.Treasury.SpendLimit,
		org.CreatedAt,
		org.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrOrganizationAlreadyExists
		}
		return fmt.Errorf("failed to create organization: %w", mapPostgresError(err))
	}

	log.Debug().
		Str("admin_id", org.AdminID.String()).
		Str("name", org.Name).
		Msg("Created organization")

	return nil
}

// GetOrganization retrieves an organization by admin identity.
func (l *Ledger) GetOrganization(ctx context.Context, adminID uuid.UUID) (*models.Organization, error) {
	query := `
		SELECT admin_id, name, metadata, employee_cap, employee_count,
			total_deposited, total_withdrawn, spend_limit, created_at, updated_at
		FROM organizations
		WHERE admin_id = $1
	`

	var org models.Organization
	err := l.pool.QueryRow(ctx, query, adminID).Scan(
		&org.AdminID,
		&org.Name,
		&org.Metadata,
		&org.EmployeeCap,
		&org.EmployeeCount,
		&org.Treasury.TotalDeposited,
		&org.Treasury.TotalWithdrawn,
		&org.Treasury.SpendLimit,
		&org.CreatedAt,
		&org.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrOrganizationNotFound
		}
		return nil, fmt.Errorf("failed to get organization: %w", mapPostgresError(err))
	}

	return &org, nil
}

// OrganizationExists reports whether an organization is registered for the admin.
func (l *Ledger) OrganizationExists(ctx context.Context, adminID uuid.UUID) (bool, error) {
	var exists bool
	err := l.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM organizations WHERE admin_id = $1)`,
		adminID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check organization: %w", mapPostgresError(err))
	}
	return exists, nil
}

// PutEmployee inserts an employee profile and increments the roster count
// in one transaction.
func (l *Ledger) PutEmployee(ctx context.Context, adminID uuid.UUID, profile *models.EmployeeProfile) error {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback is safe to call after commit

	// Lock the organization row so the cap check and count bump are
	// serialized against concurrent adds.
	var count, capacity int
	err = tx.QueryRow(ctx,
		`SELECT employee_count, employee_cap FROM organizations WHERE admin_id = $1 FOR UPDATE`,
		adminID,
	).Scan(&count, &capacity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrOrganizationNotFound
		}
		return fmt.Errorf("failed to lock organization: %w", mapPostgresError(err))
	}

	if count >= capacity {
		return store.ErrEmployeeCapReached
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO employees (admin_id, employee_id, wallet_id, role, active, added_at, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		adminID,
		profile.EmployeeID,
		profile.WalletID,
		profile.Role,
		profile.Active,
		profile.AddedAt,
		profile.LastUpdated,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrEmployeeAlreadyExists
		}
		return fmt.Errorf("failed to insert employee: %w", mapPostgresError(err))
	}

	_, err = tx.Exec(ctx,
		`UPDATE organizations SET employee_count = employee_count + 1, updated_at = now() WHERE admin_id = $1`,
		adminID,
	)
	if err != nil {
		return fmt.Errorf("failed to bump employee count: %w", mapPostgresError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	return nil
}

// GetEmployee retrieves an employee profile from the roster.
func (l *Ledger) GetEmployee(ctx context.Context, adminID, employeeID uuid.UUID) (*models.EmployeeProfile, error) {
	exists, err := l.OrganizationExists(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	query := `
		SELECT employee_id, wallet_id, role, active, added_at, last_updated
		FROM employees
		WHERE admin_id = $1 AND employee_id = $2
	`

	var profile models.EmployeeProfile
	err = l.pool.QueryRow(ctx, query, adminID, employeeID).Scan(
		&profile.EmployeeID,
		&profile.WalletID,
		&profile.Role,
		&profile.Active,
		&profile.AddedAt,
		&profile.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to get employee: %w", mapPostgresError(err))
	}

	return &profile, nil
}

// SetEmployeeActive flips an employee's active flag.
func (l *Ledger) SetEmployeeActive(ctx context.Context, adminID, employeeID uuid.UUID, active bool) (*models.EmployeeProfile, error) {
	query := `
		UPDATE employees SET active = $3, last_updated = now()
		WHERE admin_id = $1 AND employee_id = $2
		RETURNING employee_id, wallet_id, role, active, added_at, last_updated
	`

	var profile models.EmployeeProfile
	err := l.pool.QueryRow(ctx, query, adminID, employeeID, active).Scan(
		&profile.EmployeeID,
		&profile.WalletID,
		&profile.Role,
		&profile.Active,
		&profile.AddedAt,
		&profile.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, eerr := l.OrganizationExists(ctx, adminID)
			if eerr != nil {
				return nil, eerr
			}
			if !exists {
				return nil, store.ErrOrganizationNotFound
			}
			return nil, store.ErrEmployeeNotFound
		}
		return nil, fmt.Errorf("failed to update employee status: %w", mapPostgresError(err))
	}

	return &profile, nil
}

// ListEmployees returns all employee profiles on the organization's roster.
func (l *Ledger) ListEmployees(ctx context.Context, adminID uuid.UUID) ([]*models.EmployeeProfile, error) {
	exists, err := l.OrganizationExists(ctx, adminID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrOrganizationNotFound
	}

	query := `
		SELECT employee_id, wallet_id, role, active, added_at, last_updated
		FROM employees
		WHERE admin_id = $1
		ORDER BY added_at
	`

	rows, err := l.pool.Query(ctx, query, adminID)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", mapPostgresError(err))
	}
	defer rows.Close()

	var profiles []*models.EmployeeProfile
	for rows.Next() {
		var profile models.EmployeeProfile
		err := rows.Scan(
			&profile.EmployeeID,
			&profile.WalletID,
			&profile.Role,
			&profile.Active,
			&profile.AddedAt,
			&profile.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		profiles = append(profiles, &profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating employees: %w", err)
	}

	return profiles, nil
}

// CountEmployees returns the organization's current employee count.
func (l *Ledger) CountEmployees(ctx context.Context, adminID uuid.UUID) (int, error) {
	var count int
	err := l.pool.QueryRow(ctx,
		`SELECT employee_count FROM organizations WHERE admin_id = $1`,
		adminID,
	).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, store.ErrOrganizationNotFound
		}
		return 0, fmt.Errorf("failed to count employees: %w", mapPostgresError(err))
	}
	return count, nil
}

// ApplyTreasuryDeposit increases TotalDeposited, enforcing the spend limit
// with a conditional update.
func (l *Ledger) ApplyTreasuryDeposit(ctx context.Context, adminID uuid.UUID, amount int64) (*models.Treasury, error) {
	query := `
		UPDATE organizations SET total_deposited = total_deposited + $2, updated_at = now()
		WHERE admin_id = $1
			AND total_deposited + $2 - total_withdrawn <= spend_limit
		RETURNING total_deposited, total_withdrawn, spend_limit
	`

	var treasury models.Treasury
	err := l.pool.QueryRow(ctx, query, adminID, amount).Scan(
		&treasury.TotalDeposited,
		&treasury.TotalWithdrawn,
		&treasury.SpendLimit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, eerr := l.OrganizationExists(ctx, adminID)
			if eerr != nil {
				return nil, eerr
			}
			if !exists {
				return nil, store.ErrOrganizationNotFound
			}
			return nil, store.ErrTreasuryLimitExceeded
		}
		return nil, fmt.Errorf("failed to apply treasury deposit: %w", mapPostgresError(err))
	}

	return &treasury, nil
}

// ApplyTreasuryWithdrawal increases TotalWithdrawn, requiring available
// funds with a conditional update.
func (l *Ledger) ApplyTreasuryWithdrawal(ctx context.Context, adminID uuid.UUID, amount int64) (*models.Treasury, error) {
	query := `
		UPDATE organizations SET total_withdrawn = total_withdrawn + $2, updated_at = now()
		WHERE admin_id = $1
			AND total_deposited - total_withdrawn >= $2
		RETURNING total_deposited, total_withdrawn, spend_limit
	`

	var treasury models.Treasury
	err := l.pool.QueryRow(ctx, query, adminID, amount).Scan(
		&treasury.TotalDeposited,
		&treasury.TotalWithdrawn,
		&treasury.SpendLimit,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			exists, eerr := l.OrganizationExists(ctx, adminID)
			if eerr != nil {
				return nil, eerr
			}
			if !exists {
				return nil, store.ErrOrganizationNotFound
			}
			return nil, store.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("failed to apply treasury withdrawal: %w", mapPostgresError(err))
	}

	return &treasury, nil
}
