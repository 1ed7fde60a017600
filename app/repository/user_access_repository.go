package repository

import (
	"time"

	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"gorm.io/gorm"
)

// userAccessRepository implements the UserAccessRepository interface
type userAccessRepository struct {
	db *gorm.DB
}

// NewUserAccessRepository creates a new user access cache repository instance
func NewUserAccessRepository(db *gorm.DB) UserAccessRepository {
	return &userAccessRepository{db: db}
}

func (r *userAccessRepository) GetOrCreate(userID uint) (*models.UserAccess, error) {
	return models.GetOrCreateUserAccess(r.db, userID)
}

func (r *userAccessRepository) Save(ua *models.UserAccess) error {
	return r.db.Save(ua).Error
}

// ListExpiredUnflagged finds cache rows whose window has lapsed but whose
// expired flag was never set (cache/ledger drift repair).
func (r *userAccessRepository) ListExpiredUnflagged(now time.Time, limit int) ([]models.UserAccess, error) {
	var rows []models.UserAccess
	query := r.db.Where("is_expired = ? AND access_expires_at IS NOT NULL AND access_expires_at < ?", false, now)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&rows).Error
	return rows, err
}
