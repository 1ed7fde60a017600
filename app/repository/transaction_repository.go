package repository

import (
	"github.com/roguetitan1703/ayrc-rcprep-platform-sub000/app/models"
	"gorm.io/gorm"
)

// transactionRepository implements the TransactionRepository interface
type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository instance
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) GetByID(id uint) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.First(&tx, id).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) GetByOrderID(orderID string) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.Where("gateway_order_id = ?", orderID).First(&tx).Error
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) List(filter TransactionFilter) ([]models.Transaction, error) {
	var txs []models.Transaction
	query := r.applyFilter(filter)
	if filter.Limit > 0 {
		query = query.Offset(filter.Offset).Limit(filter.Limit)
	}
	err := query.Order("created_at DESC").Find(&txs).Error
	return txs, err
}

func (r *transactionRepository) Count(filter TransactionFilter) (int64, error) {
	var count int64
	err := r.applyFilter(filter).Model(&models.Transaction{}).Count(&count).Error
	return count, err
}

func (r *transactionRepository) Update(tx *models.Transaction) error {
	return r.db.Save(tx).Error
}

func (r *transactionRepository) applyFilter(filter TransactionFilter) *gorm.DB {
	query := r.db.Model(&models.Transaction{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.Discrepant != nil {
		query = query.Where("is_discrepant = ?", *filter.Discrepant)
	}
	if filter.Orphan != nil {
		query = query.Where("is_orphan = ?", *filter.Orphan)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}
	return query
}
