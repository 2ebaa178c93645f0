package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"DocLink/internal/modules/client/domain/entity"
	"DocLink/internal/modules/client/infrastructure/persistence"
	"DocLink/pkg/xerr"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) ClientService {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entity.Client{}, &entity.APIKey{}, &entity.UsageStats{}))
	return NewClientService(persistence.NewClientRepository(db))
}

func TestCreateClientIssuesDefaultKey(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, apiKey, err := svc.CreateClient(ctx, "Acme Corp", "ops@acme.example", "Alex", "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(client.ClientID, "client_"))
	assert.True(t, strings.HasPrefix(apiKey, "sk_"))
	assert.Equal(t, entity.PlanFree, client.PlanType)
	assert.Equal(t, entity.ClientStatusActive, client.Status)
	assert.Equal(t, int64(10), client.MaxDocuments)
	assert.Equal(t, int64(1000), client.MaxRequestsPerMonth)

	keys, err := svc.ListAPIKeys(ctx, client.ClientID)
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, "default", keys[0].Name)
}

func TestCreateClientPlanLimits(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, _, err := svc.CreateClient(ctx, "Big Co", "", "", entity.PlanEnterprise)
	require.NoError(t, err)
	assert.Equal(t, int64(-1), client.MaxDocuments)
	assert.Equal(t, int64(-1), client.MaxRequestsPerMonth)
}

func TestAuthenticate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, apiKey, err := svc.CreateClient(ctx, "Acme", "", "", "")
	require.NoError(t, err)

	got, err := svc.Authenticate(ctx, apiKey)
	require.NoError(t, err)
	assert.Equal(t, client.ClientID, got.ClientID)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, xerr.ErrAPIKeyRequired)

	_, err = svc.Authenticate(ctx, "sk_nonexistent")
	assert.ErrorIs(t, err, xerr.ErrInvalidAPIKey)
}

func TestAuthenticateSuspended(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, apiKey, err := svc.CreateClient(ctx, "Acme", "", "", "")
	require.NoError(t, err)

	require.NoError(t, svc.SetClientStatus(ctx, client.ClientID, entity.ClientStatusSuspended))
	_, err = svc.Authenticate(ctx, apiKey)
	assert.ErrorIs(t, err, xerr.ErrClientSuspended)

	// 恢复后可以再次认证
	require.NoError(t, svc.SetClientStatus(ctx, client.ClientID, entity.ClientStatusActive))
	_, err = svc.Authenticate(ctx, apiKey)
	assert.NoError(t, err)
}

func TestSetClientStatusRejectsUnknown(t *testing.T) {
	svc := newTestService(t)
	err := svc.SetClientStatus(context.Background(), "client_x", "banned")
	assert.ErrorIs(t, err, xerr.ErrParam)
}

func TestRevokedKeyRejected(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, apiKey, err := svc.CreateClient(ctx, "Acme", "", "", "")
	require.NoError(t, err)

	keys, err := svc.ListAPIKeys(ctx, client.ClientID)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, svc.RevokeAPIKey(ctx, keys[0].KeyID))
	_, err = svc.Authenticate(ctx, apiKey)
	assert.ErrorIs(t, err, xerr.ErrInvalidAPIKey)
}

func TestCheckLimitsAndTrackUsage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// free 套餐：10 篇文档上限
	client, _, err := svc.CreateClient(ctx, "Acme", "", "", entity.PlanFree)
	require.NoError(t, err)

	ok, _, err := svc.CheckLimits(ctx, client.ClientID)
	require.NoError(t, err)
	assert.True(t, ok)

	for i := 0; i < 10; i++ {
		svc.TrackUsage(ctx, client.ClientID, UsageDocument)
	}

	ok, reason, err := svc.CheckLimits(ctx, client.ClientID)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, reason, "document limit")

	stats, err := svc.GetUsageStats(ctx, client.ClientID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), stats.TotalDocuments)
	assert.Equal(t, int64(10), stats.DocumentsThisMonth)
	assert.NotNil(t, stats.LastDocumentUpload)
}

func TestUnlimitedPlanNeverBlocks(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, _, err := svc.CreateClient(ctx, "Big Co", "", "", entity.PlanEnterprise)
	require.NoError(t, err)

	for i := 0; i < 50; i++ {
		svc.TrackUsage(ctx, client.ClientID, UsageRequest)
	}
	ok, _, err := svc.CheckLimits(ctx, client.ClientID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestUsageMonthlyReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	client, _, err := svc.CreateClient(ctx, "Acme", "", "", "")
	require.NoError(t, err)

	svc.TrackUsage(ctx, client.ClientID, UsageRequest)
	svc.TrackUsage(ctx, client.ClientID, UsageDocument)

	stats, err := svc.GetUsageStats(ctx, client.ClientID)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.RequestsThisMonth)

	// 把窗口拨到过去，下次读取时月度计数清零，总量保留
	stats.MonthlyReset = time.Now().Add(-time.Hour)
	svcImpl := svc.(*clientService)
	require.NoError(t, svcImpl.repo.SaveUsageStats(stats))

	stats, err = svc.GetUsageStats(ctx, client.ClientID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.RequestsThisMonth)
	assert.Equal(t, int64(0), stats.DocumentsThisMonth)
	assert.Equal(t, int64(1), stats.TotalRequests)
	assert.Equal(t, int64(1), stats.TotalDocuments)
	assert.True(t, stats.MonthlyReset.After(time.Now()))
}

func TestGetClientNotFound(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.GetClient(context.Background(), "client_missing")
	assert.ErrorIs(t, err, xerr.ErrClientNotFound)
}
