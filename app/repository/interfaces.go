package repository

import (
	"time"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
)

// PlanRepository defines the interface for plan catalog database operations
type PlanRepository interface {
	Create(plan *models.Plan) error
	GetByID(id uint) (*models.Plan, error)
	GetBySlug(slug string) (*models.Plan, error)
	GetActive() ([]models.Plan, error)
	GetAll() ([]models.Plan, error)
	Update(plan *models.Plan) error
	Delete(id uint) error
	SlugExists(slug string) (bool, error)
	SlugExistsExceptID(slug string, id uint) (bool, error)
}

// TransactionFilter narrows admin transaction listings.
type TransactionFilter struct {
	UserID     *uint
	Discrepant *bool
	Orphan     *bool
	From       *time.Time
	To         *time.Time
	Offset     int
	Limit      int
}

// TransactionRepository defines the interface for payment ledger reads used
// by the admin console. Ledger writes go through the reconciliation engine.
type TransactionRepository interface {
	GetByID(id uint) (*models.Transaction, error)
	GetByOrderID(orderID string) (*models.Transaction, error)
	List(filter TransactionFilter) ([]models.Transaction, error)
	Count(filter TransactionFilter) (int64, error)
	Update(tx *models.Transaction) error
}

// SubscriptionRepository defines the interface for subscription operations
type SubscriptionRepository interface {
	Create(sub *models.Subscription) error
	GetByID(id uint) (*models.Subscription, error)
	GetByTransactionID(transactionID uint) (*models.Subscription, error)
	ListByUser(userID uint) ([]models.Subscription, error)
	ListActiveByUser(userID uint) ([]models.Subscription, error)
	ListActiveEndedBefore(cutoff time.Time, limit int) ([]models.Subscription, error)
	Update(sub *models.Subscription) error
}

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	Update(user *models.User) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// UserAccessRepository defines the interface for the denormalized per-user
// access cache rows.
type UserAccessRepository interface {
	GetOrCreate(userID uint) (*models.UserAccess, error)
	Save(ua *models.UserAccess) error
	ListExpiredUnflagged(now time.Time, limit int) ([]models.UserAccess, error)
}
