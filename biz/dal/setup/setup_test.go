package setup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"cex-ledger/biz/dal"
	"cex-ledger/biz/dal/memory"
	"cex-ledger/conf"
)

func TestInitMemoryWithoutInfra(t *testing.T) {
	cfg := &conf.Config{}
	cfg.Exchange.Storage = "memory"

	d, err := Init(context.Background(), cfg)
	require.NoError(t, err)
	defer d.Close()

	require.IsType(t, &memory.Store{}, d.Store)
	require.Equal(t, dal.NopCache{}, d.Cache)
	require.Nil(t, d.Events)
}
