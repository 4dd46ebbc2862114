package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustpay/internal/actions"
)

const testAccount = "0x60c977735cfBF44Cf5B33bD02a8B637765E7AbbB"

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trustpay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestOfflineWiring(t *testing.T) {
	configPath = writeConfig(t, "wallet:\n  account: \""+testAccount+"\"\nlog:\n  level: error\n")
	t.Cleanup(func() { configPath = "" })

	ctx := context.Background()
	a, err := loadApp(ctx)
	require.NoError(t, err)
	defer a.Close()

	_, offline := a.client.(*actions.FakeClient)
	assert.True(t, offline)
	assert.Nil(t, a.rpcHealth)

	state, err := a.connector.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAccount, state.Account)
	assert.Equal(t, uint64(50002), state.ChainID)

	role, err := a.client.ResolveRole(ctx, common.HexToAddress(testAccount))
	require.NoError(t, err)
	assert.Equal(t, actions.RoleNone, role)
}

func TestNoWalletConfigured(t *testing.T) {
	configPath = writeConfig(t, "log:\n  level: error\n")
	t.Cleanup(func() { configPath = "" })

	a, err := loadApp(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.watcher)
	_, err = a.connector.Connect(context.Background())
	assert.Error(t, err)
}

func TestChainCommand(t *testing.T) {
	path := writeConfig(t, "log:\n  level: error\n")
	t.Cleanup(func() { configPath = "" })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"chain", "--config", path})
	require.NoError(t, rootCmd.Execute())

	var got struct {
		ID    uint64 `json:"id"`
		HexID string `json:"hexId"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, uint64(50002), got.ID)
	assert.Equal(t, "0xc352", got.HexID)
}
