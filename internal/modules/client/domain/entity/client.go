package entity

import "time"

// 客户端状态
const (
	ClientStatusActive    = "active"
	ClientStatusSuspended = "suspended"
)

// 套餐类型。-1 表示不限量。
const (
	PlanFree       = "free"
	PlanBasic      = "basic"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

// Client 一个租户（接入方）。ClientID 即检索管线中的 tenant 标识。
type Client struct {
	Id                  int64      `gorm:"primaryKey;autoIncrement"`
	ClientID            string     `gorm:"uniqueIndex;size:64;not null"`
	CompanyName         string     `gorm:"size:128"`
	ContactEmail        string     `gorm:"size:128"`
	ContactName         string     `gorm:"size:64"`
	PlanType            string     `gorm:"size:16;default:free"`
	Status              string     `gorm:"size:16;default:active"`
	MaxDocuments        int64      `gorm:"default:10"`
	MaxRequestsPerMonth int64      `gorm:"default:1000"`
	CreatedAt           time.Time
	LastActive          *time.Time
}

// APIKey 租户的访问凭证，一个租户可以有多个
type APIKey struct {
	Id        int64      `gorm:"primaryKey;autoIncrement"`
	KeyID     string     `gorm:"uniqueIndex;size:64;not null"`
	ClientID  string     `gorm:"index;size:64;not null"`
	Key       string     `gorm:"uniqueIndex;size:128;not null"`
	Name      string     `gorm:"size:64"`
	CreatedAt time.Time
	RevokedAt *time.Time
}

// UsageStats 租户的用量统计，按月窗口滚动重置
type UsageStats struct {
	Id                 int64     `gorm:"primaryKey;autoIncrement"`
	ClientID           string    `gorm:"uniqueIndex;size:64;not null"`
	TotalRequests      int64     `gorm:"default:0"`
	TotalDocuments     int64     `gorm:"default:0"`
	RequestsThisMonth  int64     `gorm:"default:0"`
	DocumentsThisMonth int64     `gorm:"default:0"`
	LastRequest        *time.Time
	LastDocumentUpload *time.Time
	MonthlyReset       time.Time
}

// PlanLimits 套餐对应的配额
func PlanLimits(plan string) (maxDocuments, maxRequestsPerMonth int64) {
	switch plan {
	case PlanBasic:
		return 100, 10000
	case PlanPro:
		return 1000, 100000
	case PlanEnterprise:
		return -1, -1
	default:
		return 10, 1000
	}
}
