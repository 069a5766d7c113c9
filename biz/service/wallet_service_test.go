package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/errs"
	"cex-ledger/biz/model"
)

func TestGetOrCreateWalletIsUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	btc := f.asset(t, "BTC")

	var first, second *model.Wallet
	require.NoError(t, f.store.Update(ctx, func(tx dal.Tx) error {
		var err error
		if first, err = f.ex.Wallets.GetOrCreateWallet(ctx, tx, "alice", btc.ID); err != nil {
			return err
		}
		second, err = f.ex.Wallets.GetOrCreateWallet(ctx, tx, "alice", btc.ID)
		return err
	}))
	require.Equal(t, first.ID, second.ID)
	require.True(t, first.Balance.IsZero())
	require.Equal(t, model.WalletAddress("alice", btc.ID), first.Address)
}

func TestDebitAndCreditRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.fund(t, "alice", "USDT", "100")
	wallets, err := f.ex.GetWallets(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	id := wallets[0].ID

	run := func(fn func(tx dal.Tx) error) error {
		return f.store.Update(ctx, fn)
	}
	err = run(func(tx dal.Tx) error { _, err := f.ex.Wallets.Debit(ctx, tx, id, d("0")); return err })
	require.True(t, errs.IsKind(err, errs.InvalidAmount))
	err = run(func(tx dal.Tx) error { _, err := f.ex.Wallets.Debit(ctx, tx, id, d("100.01")); return err })
	require.True(t, errs.IsKind(err, errs.InsufficientBalance))
	err = run(func(tx dal.Tx) error { _, err := f.ex.Wallets.Credit(ctx, tx, id, d("-1")); return err })
	require.True(t, errs.IsKind(err, errs.InvalidAmount))
	err = run(func(tx dal.Tx) error { _, err := f.ex.Wallets.Debit(ctx, tx, 99, d("1")); return err })
	require.True(t, errs.IsKind(err, errs.WalletNotFound))

	// 恰好扣到零是允许的
	err = run(func(tx dal.Tx) error { _, err := f.ex.Wallets.Debit(ctx, tx, id, d("100")); return err })
	require.NoError(t, err)
	err = run(func(tx dal.Tx) error { _, err := f.ex.Wallets.Credit(ctx, tx, id, d("0")); return err })
	require.NoError(t, err)
	require.True(t, f.mustBalance(t, "alice", "USDT").IsZero())
}

func TestDepositAndWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	eth := f.asset(t, "ETH")

	dep, err := f.ex.Deposit(ctx, "bob", eth.ID, d("2"))
	require.NoError(t, err)
	require.Equal(t, model.TxDeposit, dep.Type)
	require.Equal(t, model.TxCompleted, dep.Status)
	require.Equal(t, "4560.28", dep.TotalValue.String())

	wd, err := f.ex.Withdraw(ctx, "bob", eth.ID, d("0.5"))
	require.NoError(t, err)
	require.Equal(t, model.TxWithdraw, wd.Type)
	require.Equal(t, "1.5", f.mustBalance(t, "bob", "ETH").String())

	_, err = f.ex.Withdraw(ctx, "bob", eth.ID, d("2"))
	require.True(t, errs.IsKind(err, errs.InsufficientBalance))
	_, err = f.ex.Deposit(ctx, "bob", eth.ID, d("-2"))
	require.True(t, errs.IsKind(err, errs.InvalidAmount))
	_, err = f.ex.Deposit(ctx, "bob", 31337, d("1"))
	require.True(t, errs.IsKind(err, errs.AssetNotFound))

	txs, err := f.ex.GetTransactions(ctx, "bob", false)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	require.Equal(t, model.TxWithdraw, txs[0].Type)
	require.Equal(t, "ETH", txs[0].Asset.Symbol)
	require.Equal(t, 2, f.pub.count(model.EventWalletMovement))

	wallets, err := f.ex.GetWallets(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	require.Equal(t, "ETH", wallets[0].Asset.Symbol)
}

func TestDepositWithoutPriceHasZeroValue(t *testing.T) {
	f := newFixture(t)
	tx, err := f.ex.Deposit(context.Background(), "carol", f.asset(t, "NOPX").ID, d("7"))
	require.NoError(t, err)
	require.True(t, tx.TotalValue.IsZero())
	require.False(t, tx.Price.Valid)
}
