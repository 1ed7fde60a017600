package repository

import (
	"time"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"gorm.io/gorm"
)

// subscriptionRepository implements the SubscriptionRepository interface
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository instance
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

func (r *subscriptionRepository) Create(sub *models.Subscription) error {
	return r.db.Create(sub).Error
}

func (r *subscriptionRepository) GetByID(id uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.First(&sub, id).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) GetByTransactionID(transactionID uint) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.Where("transaction_id = ?", transactionID).First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) ListByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ?", userID).Order("end_date DESC").Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) ListActiveByUser(userID uint) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.Where("user_id = ? AND status = ?", userID, models.SubscriptionStatusActive).
		Order("end_date DESC").Find(&subs).Error
	return subs, err
}

// ListActiveEndedBefore returns active subscriptions whose end date has
// passed. Used by the expiry sweep; batched via limit.
func (r *subscriptionRepository) ListActiveEndedBefore(cutoff time.Time, limit int) ([]models.Subscription, error) {
	var subs []models.Subscription
	query := r.db.Where("status = ? AND end_date < ?", models.SubscriptionStatusActive, cutoff).
		Order("end_date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) Update(sub *models.Subscription) error {
	return r.db.Save(sub).Error
}
