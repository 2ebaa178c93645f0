package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"DocLink/internal/modules/client/domain/entity"
	"DocLink/internal/modules/client/domain/repository"
	"DocLink/pkg/xerr"
	"DocLink/pkg/zlog"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// 用量类型
const (
	UsageRequest  = "request"
	UsageDocument = "document"
)

// ClientService 租户管理：建号、发 key、配额检查与用量追踪。
// 检索模块只通过 CheckLimits / TrackUsage / Authenticate 与它协作。
type ClientService interface {
	CreateClient(ctx context.Context, companyName, contactEmail, contactName, planType string) (*entity.Client, string, error)
	GetClient(ctx context.Context, clientID string) (*entity.Client, error)
	ListClients(ctx context.Context) ([]entity.Client, error)
	SetClientStatus(ctx context.Context, clientID, status string) error
	DeleteClient(ctx context.Context, clientID string) error

	IssueAPIKey(ctx context.Context, clientID, name string) (*entity.APIKey, error)
	RevokeAPIKey(ctx context.Context, keyID string) error
	ListAPIKeys(ctx context.Context, clientID string) ([]entity.APIKey, error)

	// Authenticate 根据 API key 定位租户，suspended 状态视为认证失败
	Authenticate(ctx context.Context, apiKey string) (*entity.Client, error)

	// CheckLimits 检查租户是否还有配额，返回 (是否可用, 说明)
	CheckLimits(ctx context.Context, clientID string) (bool, string, error)

	// TrackUsage 记录一次计费调用，kind 为 request 或 document
	TrackUsage(ctx context.Context, clientID, kind string)

	GetUsageStats(ctx context.Context, clientID string) (*entity.UsageStats, error)
}

type clientService struct {
	repo repository.ClientRepository
}

func NewClientService(repo repository.ClientRepository) ClientService {
	return &clientService{repo: repo}
}

func randomHex(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func (s *clientService) CreateClient(ctx context.Context, companyName, contactEmail, contactName, planType string) (*entity.Client, string, error) {
	if planType == "" {
		planType = entity.PlanFree
	}
	maxDocs, maxReqs := entity.PlanLimits(planType)

	client := &entity.Client{
		ClientID:            "client_" + randomHex(8),
		CompanyName:         companyName,
		ContactEmail:        contactEmail,
		ContactName:         contactName,
		PlanType:            planType,
		Status:              entity.ClientStatusActive,
		MaxDocuments:        maxDocs,
		MaxRequestsPerMonth: maxReqs,
		CreatedAt:           time.Now(),
	}
	if err := s.repo.CreateClient(client); err != nil {
		return nil, "", err
	}

	if err := s.repo.CreateUsageStats(&entity.UsageStats{
		ClientID:     client.ClientID,
		MonthlyReset: time.Now().AddDate(0, 0, 30),
	}); err != nil {
		return nil, "", err
	}

	key, err := s.IssueAPIKey(ctx, client.ClientID, "default")
	if err != nil {
		return nil, "", err
	}

	zlog.Info("client created", zap.String("client_id", client.ClientID), zap.String("plan", planType))
	return client, key.Key, nil
}

func (s *clientService) GetClient(ctx context.Context, clientID string) (*entity.Client, error) {
	client, err := s.repo.GetClientByClientID(clientID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.ErrClientNotFound
	}
	return client, err
}

func (s *clientService) ListClients(ctx context.Context) ([]entity.Client, error) {
	return s.repo.ListClients()
}

func (s *clientService) SetClientStatus(ctx context.Context, clientID, status string) error {
	if status != entity.ClientStatusActive && status != entity.ClientStatusSuspended {
		return xerr.ErrParam
	}
	return s.repo.UpdateClientStatus(clientID, status)
}

func (s *clientService) DeleteClient(ctx context.Context, clientID string) error {
	return s.repo.DeleteClient(clientID)
}

func (s *clientService) IssueAPIKey(ctx context.Context, clientID, name string) (*entity.APIKey, error) {
	if _, err := s.GetClient(ctx, clientID); err != nil {
		return nil, err
	}
	key := &entity.APIKey{
		KeyID:     "key_" + randomHex(8),
		ClientID:  clientID,
		Key:       "sk_" + randomHex(32),
		Name:      name,
		CreatedAt: time.Now(),
	}
	if err := s.repo.CreateAPIKey(key); err != nil {
		return nil, err
	}
	return key, nil
}

func (s *clientService) RevokeAPIKey(ctx context.Context, keyID string) error {
	return s.repo.RevokeAPIKey(keyID)
}

func (s *clientService) ListAPIKeys(ctx context.Context, clientID string) ([]entity.APIKey, error) {
	return s.repo.ListAPIKeys(clientID)
}

func (s *clientService) Authenticate(ctx context.Context, apiKey string) (*entity.Client, error) {
	if apiKey == "" {
		return nil, xerr.ErrAPIKeyRequired
	}
	key, err := s.repo.GetAPIKey(apiKey)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, xerr.ErrInvalidAPIKey
	}
	if err != nil {
		return nil, err
	}
	client, err := s.GetClient(ctx, key.ClientID)
	if err != nil {
		return nil, xerr.ErrInvalidAPIKey
	}
	if client.Status != entity.ClientStatusActive {
		return nil, xerr.ErrClientSuspended
	}
	return client, nil
}

func (s *clientService) CheckLimits(ctx context.Context, clientID string) (bool, string, error) {
	client, err := s.GetClient(ctx, clientID)
	if err != nil {
		return false, "", err
	}
	stats, err := s.usageWithReset(clientID)
	if err != nil {
		return false, "", err
	}

	if client.MaxDocuments >= 0 && stats.TotalDocuments >= client.MaxDocuments {
		return false, fmt.Sprintf("document limit reached (%d)", client.MaxDocuments), nil
	}
	if client.MaxRequestsPerMonth >= 0 && stats.RequestsThisMonth >= client.MaxRequestsPerMonth {
		return false, fmt.Sprintf("monthly request limit reached (%d)", client.MaxRequestsPerMonth), nil
	}
	return true, "", nil
}

func (s *clientService) TrackUsage(ctx context.Context, clientID, kind string) {
	stats, err := s.usageWithReset(clientID)
	if err != nil {
		zlog.Warn("usage tracking skipped", zap.String("client_id", clientID), zap.Error(err))
		return
	}
	now := time.Now()
	switch kind {
	case UsageDocument:
		stats.TotalDocuments++
		stats.DocumentsThisMonth++
		stats.LastDocumentUpload = &now
	default:
		stats.TotalRequests++
		stats.RequestsThisMonth++
		stats.LastRequest = &now
	}
	if err := s.repo.SaveUsageStats(stats); err != nil {
		zlog.Warn("usage tracking failed", zap.String("client_id", clientID), zap.Error(err))
	}
}

func (s *clientService) GetUsageStats(ctx context.Context, clientID string) (*entity.UsageStats, error) {
	return s.usageWithReset(clientID)
}

// usageWithReset 读取用量，月度窗口到期时先滚动清零
func (s *clientService) usageWithReset(clientID string) (*entity.UsageStats, error) {
	stats, err := s.repo.GetUsageStats(clientID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats = &entity.UsageStats{ClientID: clientID, MonthlyReset: time.Now().AddDate(0, 0, 30)}
		if err := s.repo.CreateUsageStats(stats); err != nil {
			return nil, err
		}
		return stats, nil
	}
	if err != nil {
		return nil, err
	}
	if time.Now().After(stats.MonthlyReset) {
		stats.RequestsThisMonth = 0
		stats.DocumentsThisMonth = 0
		stats.MonthlyReset = time.Now().AddDate(0, 0, 30)
		if err := s.repo.SaveUsageStats(stats); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
