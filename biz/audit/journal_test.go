package audit

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"cex-ledger/conf"
)

func TestRecordWritesMovements(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	j := NewWithLogger(zap.New(core))

	j.Record("order.buy", 42,
		Movement{WalletID: 1, UserID: "alice", AssetID: 7, Delta: decimal.RequireFromString("-100.25"), Balance: decimal.RequireFromString("899.75")},
		Movement{WalletID: 2, UserID: "alice", AssetID: 8, Delta: decimal.RequireFromString("0.5"), Balance: decimal.RequireFromString("0.5")},
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	fields := entry.ContextMap()
	require.Equal(t, "order.buy", fields["op"])
	require.Equal(t, uint64(42), fields["ref"])
	moves := fields["moves"].([]interface{})
	require.Len(t, moves, 2)
	require.Equal(t, "-100.25", moves[0].(map[string]interface{})["delta"])
}

func TestNopWhenNoFile(t *testing.T) {
	j := New(conf.Audit{})
	j.Record("noop", 1)
	require.NoError(t, j.Sync())
	var nilJ *Journal
	nilJ.Record("noop", 1)
}
