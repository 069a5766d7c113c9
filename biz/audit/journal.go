// Package audit 账本流水日志：每次提交成功的资金变动落一行 JSON
package audit

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"cex-ledger/conf"
)

// Movement 单个钱包的余额变化
type Movement struct {
	WalletID uint64
	UserID   string
	AssetID  uint64
	Delta    decimal.Decimal
	Balance  decimal.Decimal
}

type Journal struct {
	log *zap.Logger
}

// New 文件名为空时不落盘
func New(cfg conf.Audit) *Journal {
	if cfg.FileName == "" {
		return Nop()
	}
	w := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FileName,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   true,
	})
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "ts"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), w, zapcore.InfoLevel)
	return &Journal{log: zap.New(core)}
}

func Nop() *Journal {
	return &Journal{log: zap.NewNop()}
}

// NewWithLogger 测试中注入 observer
func NewWithLogger(l *zap.Logger) *Journal {
	return &Journal{log: l}
}

// Record 记录一次已提交的操作及其全部余额变化
func (j *Journal) Record(op string, ref uint64, moves ...Movement) {
	if j == nil {
		return
	}
	fields := make([]zap.Field, 0, 3)
	fields = append(fields, zap.String("op", op), zap.Uint64("ref", ref), zap.Array("moves", movements(moves)))
	j.log.Info("ledger", fields...)
}

func (j *Journal) Sync() error {
	if j == nil {
		return nil
	}
	return j.log.Sync()
}

type movements []Movement

func (ms movements) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, m := range ms {
		if err := enc.AppendObject(m); err != nil {
			return err
		}
	}
	return nil
}

func (m Movement) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddUint64("wallet", m.WalletID)
	enc.AddString("user", m.UserID)
	enc.AddUint64("asset", m.AssetID)
	enc.AddString("delta", m.Delta.String())
	enc.AddString("balance", m.Balance.String())
	return nil
}
