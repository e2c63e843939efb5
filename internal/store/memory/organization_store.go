package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
	"github.com/wolfeidau/orgledger/internal/store"
)

// cloneOrganization copies an organization record including its metadata map,
// so callers can't mutate stored state through the returned value.
func cloneOrganization(org models.Organization) models.Organization {
	clone := org
	if org.Metadata != nil {
		clone.Metadata = make(map[string]string, len(org.Metadata))
		for k, v := range org.Metadata {
			clone.Metadata[k] = v
		}
	}
	return clone
}

// CreateOrganization creates a new organization keyed by admin identity.
func (l *Ledger) CreateOrganization(ctx context.Context, org *models.Organization) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.orgs.has(org.AdminID) {
		return store.ErrOrganizationAlreadyExists
	}

	l.orgs.put(org.AdminID, cloneOrganization(*org))

	return nil
}

// GetOrganization retrieves an organization by admin identity.
func (l *Ledger) GetOrganization(ctx context.Context, adminID uuid.UUID) (*models.Organization, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	org, ok := l.orgs.get(adminID)
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}

	clone := cloneOrganization(org)
	return &clone, nil
}

// OrganizationExists reports whether an organization is registered for the admin.
func (l *Ledger) OrganizationExists(ctx context.Context, adminID uuid.UUID) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.orgs.has(adminID), nil
}

// PutEmployee inserts a new employee profile and increments the roster count.
func (l *Ledger) PutEmployee(ctx context.Context, adminID uuid.UUID, profile *models.EmployeeProfile) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	org, ok := l.orgs.get(adminID)
	if !ok {
		return store.ErrOrganizationNotFound
	}

	if org.EmployeeCount >= org.EmployeeCap {
		return store.ErrEmployeeCapReached
	}

	key := rosterKey{AdminID: adminID, EmployeeID: profile.EmployeeID}
	if l.employees.has(key) {
		return store.ErrEmployeeAlreadyExists
	}

	l.employees.put(key, *profile)

	org.EmployeeCount++
	org.UpdatedAt = time.Now()
	l.orgs.put(adminID, org)

	return nil
}

// GetEmployee retrieves an employee profile from the roster.
func (l *Ledger) GetEmployee(ctx context.Context, adminID, employeeID uuid.UUID) (*models.EmployeeProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.orgs.has(adminID) {
		return nil, store.ErrOrganizationNotFound
	}

	profile, ok := l.employees.get(rosterKey{AdminID: adminID, EmployeeID: employeeID})
	if !ok {
		return nil, store.ErrEmployeeNotFound
	}

	clone := profile
	return &clone, nil
}

// SetEmployeeActive flips an employee's active flag.
func (l *Ledger) SetEmployeeActive(ctx context.Context, adminID, employeeID uuid.UUID, active bool) (*models.EmployeeProfile, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.orgs.has(adminID) {
		return nil, store.ErrOrganizationNotFound
	}

	key := rosterKey{AdminID: adminID, EmployeeID: employeeID}
	profile, ok := l.employees.get(key)
	if !ok {
		return nil, store.ErrEmployeeNotFound
	}

	profile.Active = active
	profile.LastUpdated = time.Now()
	l.employees.put(key, profile)

	clone := profile
	return &clone, nil
}

// ListEmployees returns all employee profiles on the roster.
func (l *Ledger) ListEmployees(ctx context.Context, adminID uuid.UUID) ([]*models.EmployeeProfile, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if !l.orgs.has(adminID) {
		return nil, store.ErrOrganizationNotFound
	}

	var result []*models.EmployeeProfile
	l.employees.each(func(key rosterKey, profile models.EmployeeProfile) {
		if key.AdminID == adminID {
			clone := profile
			result = append(result, &clone)
		}
	})

	return result, nil
}

// CountEmployees returns the organization's current employee count.
func (l *Ledger) CountEmployees(ctx context.Context, adminID uuid.UUID) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	org, ok := l.orgs.get(adminID)
	if !ok {
		return 0, store.ErrOrganizationNotFound
	}

	return org.EmployeeCount, nil
}

// ApplyTreasuryDeposit increases TotalDeposited, enforcing the spend limit.
func (l *Ledger) ApplyTreasuryDeposit(ctx context.Context, adminID uuid.UUID, amount int64) (*models.Treasury, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	org, ok := l.orgs.get(adminID)
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}

	if org.Treasury.Available()+amount > org.Treasury.SpendLimit {
		return nil, store.ErrTreasuryLimitExceeded
	}

	org.Treasury.TotalDeposited += amount
	org.UpdatedAt = time.Now()
	l.orgs.put(adminID, org)

	treasury := org.Treasury
	return &treasury, nil
}

// ApplyTreasuryWithdrawal increases TotalWithdrawn, requiring available funds.
func (l *Ledger) ApplyTreasuryWithdrawal(ctx context.Context, adminID uuid.UUID, amount int64) (*models.Treasury, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	org, ok := l.orgs.get(adminID)
	if !ok {
		return nil, store.ErrOrganizationNotFound
	}

	if org.Treasury.Available() < amount {
		return nil, store.ErrInsufficientFunds
	}

	org.Treasury.TotalWithdrawn += amount
	org.UpdatedAt = time.Now()
	l.orgs.put(adminID, org)

	treasury := org.Treasury
	return &treasury, nil
}
