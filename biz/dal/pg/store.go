package pg

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

// 需要按锁竞争处理的 SQLSTATE
const (
	codeLockNotAvailable     = "55P03"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
)

type Store struct {
	db          *gorm.DB
	pool        *pgxpool.Pool
	lockTimeout time.Duration
}

var _ dal.Store = (*Store)(nil)

func (s *Store) View(ctx context.Context, fn func(tx dal.Tx) error) error {
	return translate(fn(&pgTx{db: s.db.WithContext(ctx)}))
}

// Update 单个 GORM 事务；行锁等待受 lock_timeout 约束
func (s *Store) Update(ctx context.Context, fn func(tx dal.Tx) error) error {
	err := s.db.WithContext(ctx).Transaction(func(gtx *gorm.DB) error {
		if s.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", s.lockTimeout.Milliseconds())
			if err := gtx.Exec(stmt).Error; err != nil {
				return err
			}
		}
		return fn(&pgTx{db: gtx, forUpdate: true})
	})
	return translate(err)
}

const upsertAssetSQL = `INSERT INTO assets (id, symbol, name, current_price, price_change_percent, market_cap, icon, last_updated)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol) DO UPDATE SET
	name = EXCLUDED.name,
	current_price = EXCLUDED.current_price,
	price_change_percent = EXCLUDED.price_change_percent,
	market_cap = EXCLUDED.market_cap,
	last_updated = EXCLUDED.last_updated`

// UpsertAssets 行情批量写入走 pgx Batch，单事务内完成
func (s *Store) UpsertAssets(ctx context.Context, assets []*model.Asset) error {
	if len(assets) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range assets {
		batch.Queue(upsertAssetSQL, a.ID, a.Symbol, a.Name, a.CurrentPrice, a.PriceChangePercent, a.MarketCap, a.Icon, a.LastUpdated)
	}
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		br := tx.SendBatch(ctx, batch)
		for range assets {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return err
			}
		}
		return br.Close()
	})
	return translate(err)
}

func (s *Store) Close() error {
	s.pool.Close()
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// translate 驱动错误映射为领域错误
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeLockNotAvailable, codeSerializationFailure, codeDeadlockDetected:
			return errs.Wrap(errs.Contention, "row lock not acquired", err)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", pgErr.ConstraintName, dal.ErrDuplicate)
		}
	}
	return err
}

type pgTx struct {
	db        *gorm.DB
	forUpdate bool
}

// locked 写事务内的读取带 FOR UPDATE
func (t *pgTx) locked() *gorm.DB {
	if t.forUpdate {
		return t.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return t.db
}

// first 未命中返回 (nil, nil)
func first[T any](db *gorm.DB, query string, args ...any) (*T, error) {
	var row T
	res := db.Where(query, args...).Limit(1).Find(&row)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &row, nil
}

func list[T any](db *gorm.DB, order string, query string, args ...any) ([]*T, error) {
	var rows []*T
	q := db
	if query != "" {
		q = q.Where(query, args...)
	}
	if err := q.Order(order).Find(&rows).Error; err != nil {
		return nil, translate(err)
	}
	return rows, nil
}

func create(db *gorm.DB, v any) error {
	return translate(db.Create(v).Error)
}
