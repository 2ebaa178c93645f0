package initial

import (
	"log"
	"os"
	"path/filepath"
	"time"

	"DocLink/internal/config"
	clientEntity "DocLink/internal/modules/client/domain/entity"
	"DocLink/pkg/zlog"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

func init() {
	conf := config.GetConfig()
	path := conf.SqliteConfig.Path
	if dir := filepath.Dir(path); dir != "." {
		_ = os.MkdirAll(dir, 0o755)
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	var err error
	GormDB, err = gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		zlog.Fatal(err.Error())
	}
	// 自动迁移，如果没有建表，会自动创建对应的表
	err = GormDB.AutoMigrate(
		&clientEntity.Client{},
		&clientEntity.APIKey{},
		&clientEntity.UsageStats{},
	)
	if err != nil {
		zlog.Fatal(err.Error())
	}
}
