package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/wolfeidau/orgledger/internal/models"
)

// Sentinel errors for organization store operations
var (
	ErrOrganizationNotFound      = errors.New("organization not found")
	ErrOrganizationAlreadyExists = errors.New("organization already exists")
	ErrEmployeeNotFound          = errors.New("employee not found")
	ErrEmployeeAlreadyExists     = errors.New("employee already exists")
	ErrEmployeeCapReached        = errors.New("employee cap reached")
	ErrTreasuryLimitExceeded     = errors.New("treasury spend limit exceeded")
)

// OrganizationStore defines the interface for organization and roster storage.
// Organizations are keyed by the admin identity that registered them. Every
// mutating operation is a single atomic transition: it either applies fully
// or leaves the record untouched.
type OrganizationStore interface {
	// CreateOrganization creates a new organization keyed by its admin identity.
	// Returns ErrOrganizationAlreadyExists if the admin is already registered.
	CreateOrganization(ctx context.Context, org *models.Organization) error

	// GetOrganization retrieves an organization by admin identity.
	// Returns ErrOrganizationNotFound if it doesn't exist.
	GetOrganization(ctx context.Context, adminID uuid.UUID) (*models.Organization, error)

	// OrganizationExists reports whether an organization is registered for the admin.
	OrganizationExists(ctx context.Context, adminID uuid.UUID) (bool, error)

	// PutEmployee inserts a new employee profile on the organization's roster
	// and increments the employee count.
	// Returns ErrEmployeeAlreadyExists if the employee is already rostered,
	// ErrEmployeeCapReached if the roster is at its cap.
	PutEmployee(ctx context.Context, adminID uuid.UUID, profile *models.EmployeeProfile) error

	// GetEmployee retrieves an employee profile from the organization's roster.
	// Returns ErrEmployeeNotFound if the employee isn't rostered.
	GetEmployee(ctx context.Context, adminID, employeeID uuid.UUID) (*models.EmployeeProfile, error)

	// SetEmployeeActive flips an employee's active flag and bumps its
	// LastUpdated timestamp, returning the updated profile.
	// Returns ErrEmployeeNotFound if the employee isn't rostered.
	SetEmployeeActive(ctx context.Context, adminID, employeeID uuid.UUID, active bool) (*models.EmployeeProfile, error)

	// ListEmployees returns all employee profiles on the organization's roster.
	ListEmployees(ctx context.Context, adminID uuid.UUID) ([]*models.EmployeeProfile, error)

	// CountEmployees returns the organization's current employee count.
	CountEmployees(ctx context.Context, adminID uuid.UUID) (int, error)

	// ApplyTreasuryDeposit increases TotalDeposited by amount, enforcing
	// (TotalDeposited - TotalWithdrawn) <= SpendLimit after the update.
	// Returns ErrTreasuryLimitExceeded on violation, with no state change.
	ApplyTreasuryDeposit(ctx context.Context, adminID uuid.UUID, amount int64) (*models.Treasury, error)

	// ApplyTreasuryWithdrawal increases TotalWithdrawn by amount, requiring
	// available funds (TotalDeposited - TotalWithdrawn) >= amount beforehand.
	// Returns ErrInsufficientFunds on violation, with no state change.
	ApplyTreasuryWithdrawal(ctx context.Context, adminID uuid.UUID, amount int64) (*models.Treasury, error)
}
