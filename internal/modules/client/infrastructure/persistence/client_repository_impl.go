package persistence

import (
	"time"

	"DocLink/internal/modules/client/domain/entity"
	"DocLink/internal/modules/client/domain/repository"

	"gorm.io/gorm"
)

// clientRepositoryImpl 结构体
type clientRepositoryImpl struct {
	db *gorm.DB
}

// NewClientRepository 构造函数
func NewClientRepository(db *gorm.DB) repository.ClientRepository {
	return &clientRepositoryImpl{db: db}
}

func (r *clientRepositoryImpl) CreateClient(client *entity.Client) error {
	return r.db.Create(client).Error
}

func (r *clientRepositoryImpl) GetClientByClientID(clientID string) (*entity.Client, error) {
	var client entity.Client
	// First 查不到会返回 ErrRecordNotFound
	err := r.db.Where("client_id = ?", clientID).First(&client).Error
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *clientRepositoryImpl) UpdateClientStatus(clientID, status string) error {
	return r.db.Model(&entity.Client{}).
		Where("client_id = ?", clientID).
		Updates(map[string]interface{}{"status": status, "last_active": time.Now()}).Error
}

func (r *clientRepositoryImpl) ListClients() ([]entity.Client, error) {
	var clients []entity.Client
	err := r.db.Order("created_at desc").Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *clientRepositoryImpl) DeleteClient(clientID string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("client_id = ?", clientID).Delete(&entity.APIKey{}).Error; err != nil {
			return err
		}
		if err := tx.Where("client_id = ?", clientID).Delete(&entity.UsageStats{}).Error; err != nil {
			return err
		}
		return tx.Where("client_id = ?", clientID).Delete(&entity.Client{}).Error
	})
}

func (r *clientRepositoryImpl) CreateAPIKey(key *entity.APIKey) error {
	return r.db.Create(key).Error
}

func (r *clientRepositoryImpl) GetAPIKey(key string) (*entity.APIKey, error) {
	var apiKey entity.APIKey
	err := r.db.Where("key = ? AND revoked_at IS NULL", key).First(&apiKey).Error
	if err != nil {
		return nil, err
	}
	return &apiKey, nil
}

func (r *clientRepositoryImpl) ListAPIKeys(clientID string) ([]entity.APIKey, error) {
	var keys []entity.APIKey
	err := r.db.Where("client_id = ?", clientID).Find(&keys).Error
	if err != nil {
		return nil, err
	}
	return keys, nil
}

func (r *clientRepositoryImpl) RevokeAPIKey(keyID string) error {
	now := time.Now()
	return r.db.Model(&entity.APIKey{}).
		Where("key_id = ?", keyID).
		Update("revoked_at", &now).Error
}

func (r *clientRepositoryImpl) CreateUsageStats(stats *entity.UsageStats) error {
	return r.db.Create(stats).Error
}

func (r *clientRepositoryImpl) GetUsageStats(clientID string) (*entity.UsageStats, error) {
	var stats entity.UsageStats
	err := r.db.Where("client_id = ?", clientID).First(&stats).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (r *clientRepositoryImpl) SaveUsageStats(stats *entity.UsageStats) error {
	return r.db.Save(stats).Error
}
