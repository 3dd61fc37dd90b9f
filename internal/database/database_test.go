package database

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
)

func TestOpenDefaultsToSQLite(t *testing.T) {
	db, err := Open("file:database_test?mode=memory&cache=shared")
	require.NoError(t, err)
	require.Equal(t, "sqlite", db.Dialector.Name())

	_, err = Open("")
	require.Error(t, err)
}

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := ConnectRedis(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	_, err = ConnectRedis(context.Background(), "://bad")
	require.Error(t, err)
}
