package cmd

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("POLYEDGE_STORE", "memory")
	userID, cfgFile, verbose = "", "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCreatePrintsAccount(t *testing.T) {
	out, err := run(t, "create", "--user", "u-1", "--type", "2-step", "--size", "5000")
	require.NoError(t, err)
	assert.Contains(t, out, "2-step")
	assert.Contains(t, out, "active")
	assert.Contains(t, out, "5000.00")
}

func TestCreateRejectsUnknownType(t *testing.T) {
	_, err := run(t, "create", "--user", "u-1", "--type", "3-step")
	assert.ErrorContains(t, err, "create account")
}

func TestListRequiresUser(t *testing.T) {
	_, err := run(t, "list")
	assert.ErrorContains(t, err, "missing --user")
}

func TestListEmpty(t *testing.T) {
	out, err := run(t, "list", "-u", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "no accounts")
}

func TestArchiveNeedsStorage(t *testing.T) {
	_, err := run(t, "archive", "list")
	assert.ErrorIs(t, err, errNoArchive)
}

func TestTradeOpenRequiresFlags(t *testing.T) {
	_, err := run(t, "trade", "open", "acct-1", "-u", "u-1")
	assert.ErrorContains(t, err, "required flag")
}
