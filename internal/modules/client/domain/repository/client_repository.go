package repository

import "DocLink/internal/modules/client/domain/entity"

// ClientRepository 租户元数据仓储
type ClientRepository interface {
	CreateClient(client *entity.Client) error
	GetClientByClientID(clientID string) (*entity.Client, error)
	UpdateClientStatus(clientID, status string) error
	ListClients() ([]entity.Client, error)
	DeleteClient(clientID string) error

	CreateAPIKey(key *entity.APIKey) error
	GetAPIKey(key string) (*entity.APIKey, error)
	ListAPIKeys(clientID string) ([]entity.APIKey, error)
	RevokeAPIKey(keyID string) error

	CreateUsageStats(stats *entity.UsageStats) error
	GetUsageStats(clientID string) (*entity.UsageStats, error)
	SaveUsageStats(stats *entity.UsageStats) error
}
