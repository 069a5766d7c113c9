package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"cex-ledger/biz/model"
)

// Open 初始化 pgx 连接池与 GORM，并自动迁移表结构
func Open(ctx context.Context, dsn string, lockTimeout time.Duration) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	db, err := InitGorm(dsn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to init gorm: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	hlog.Infof("[pg] store ready, lock_timeout=%s", lockTimeout)
	return &Store{db: db, pool: pool, lockTimeout: lockTimeout}, nil
}

func InitGorm(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
}

func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return gorm.ErrInvalidDB
	}
	return db.AutoMigrate(
		&model.Asset{},
		&model.Wallet{},
		&model.Transaction{},
		&model.Order{},
		&model.LiquidityPool{},
		&model.LiquidityPosition{},
		&model.Swap{},
	)
}
