package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

func TestTransactionStateTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	btc := f.asset(t, "BTC")
	txlog := f.ex.Transactions

	pending := &model.Transaction{UserID: "alice", Type: model.TxDeposit, AssetID: &btc.ID, Amount: d("1"), TotalValue: d("1")}
	other := &model.Transaction{UserID: "alice", Type: model.TxWithdraw, AssetID: &btc.ID, Amount: d("1"), TotalValue: d("1")}
	require.NoError(t, f.store.Update(ctx, func(tx dal.Tx) error {
		if err := txlog.Append(ctx, tx, pending); err != nil {
			return err
		}
		return txlog.Append(ctx, tx, other)
	}))
	require.Equal(t, model.TxPending, pending.Status)
	require.Nil(t, pending.CompletedAt)

	err := f.store.Update(ctx, func(tx dal.Tx) error {
		done, err := txlog.Complete(ctx, tx, pending.ID)
		if err != nil {
			return err
		}
		require.Equal(t, model.TxCompleted, done.Status)
		require.NotNil(t, done.CompletedAt)
		_, err = txlog.Fail(ctx, tx, other.ID)
		return err
	})
	require.NoError(t, err)

	err = f.store.Update(ctx, func(tx dal.Tx) error {
		_, err := txlog.Fail(ctx, tx, pending.ID)
		return err
	})
	require.True(t, errs.IsKind(err, errs.InvalidState))
	err = f.store.Update(ctx, func(tx dal.Tx) error {
		_, err := txlog.Complete(ctx, tx, 12345)
		return err
	})
	require.True(t, errs.IsKind(err, errs.TransactionNotFound))

	got, err := txlog.Get(ctx, "alice", other.ID)
	require.NoError(t, err)
	require.Equal(t, model.TxFailed, got.Status)
	require.Equal(t, "BTC", got.Asset.Symbol)
	_, err = txlog.Get(ctx, "bob", other.ID)
	require.True(t, errs.IsKind(err, errs.TransactionNotFound))
}


func TestConcurrentTransitionsDoNotOverwrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	btc := f.asset(t, "BTC")
	txlog := f.ex.Transactions

	pending := &model.Transaction{UserID: "alice", Type: model.TxDeposit, AssetID: &btc.ID, Amount: d("1"), TotalValue: d("1")}
	require.NoError(t, f.store.Update(ctx, func(tx dal.Tx) error {
		return txlog.Append(ctx, tx, pending)
	}))

	// complete 已暂存，fail 抢先提交
	err := f.store.Update(ctx, func(tx dal.Tx) error {
		if _, err := txlog.Complete(ctx, tx, pending.ID); err != nil {
			return err
		}
		require.NoError(t, f.store.Update(ctx, func(other dal.Tx) error {
			_, err := txlog.Fail(ctx, other, pending.ID)
			return err
		}))
		return nil
	})
	require.True(t, errs.IsKind(err, errs.Contention), "got %v", err)

	got, err := txlog.Get(ctx, "alice", pending.ID)
	require.NoError(t, err)
	require.Equal(t, model.TxFailed, got.Status)

	// 归档与状态变更同样互斥
	err = f.store.Update(ctx, func(tx dal.Tx) error {
		cur, err := tx.FindTransaction(ctx, pending.ID)
		if err != nil {
			return err
		}
		_, err = txlog.Archive(ctx, "alice", pending.ID)
		require.NoError(t, err)
		cur.CompletedAt = nil
		return tx.UpdateTransactionState(ctx, cur)
	})
	require.True(t, errs.IsKind(err, errs.Contention), "got %v", err)
	got, err = txlog.Get(ctx, "alice", pending.ID)
	require.NoError(t, err)
	require.True(t, got.Archived)
	require.NotNil(t, got.CompletedAt)
}
func TestAppendRejectsUnknownType(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	err := f.store.Update(ctx, func(tx dal.Tx) error {
		return f.ex.Transactions.Append(ctx, tx, &model.Transaction{UserID: "alice", Type: "transfer", Amount: d("1")})
	})
	require.True(t, errs.IsKind(err, errs.InvalidRequest))
}

func TestArchiveHidesTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	btc := f.asset(t, "BTC")
	first, err := f.ex.Deposit(ctx, "alice", btc.ID, d("1"))
	require.NoError(t, err)
	_, err = f.ex.Deposit(ctx, "alice", btc.ID, d("2"))
	require.NoError(t, err)

	archived, err := f.ex.ArchiveTransaction(ctx, "alice", first.ID)
	require.NoError(t, err)
	require.True(t, archived.Archived)
	_, err = f.ex.ArchiveTransaction(ctx, "alice", first.ID)
	require.NoError(t, err)

	visible, err := f.ex.GetTransactions(ctx, "alice", false)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	all, err := f.ex.GetTransactions(ctx, "alice", true)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// 归档不影响余额
	require.Equal(t, "3", f.mustBalance(t, "alice", "BTC").String())

	_, err = f.ex.ArchiveTransaction(ctx, "mallory", first.ID)
	require.True(t, errs.IsKind(err, errs.TransactionNotFound))
}
