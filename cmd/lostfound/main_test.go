package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func run(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHashKey(t *testing.T) {
	out, err := run(t, "hash-key", "sekret")
	require.NoError(t, err)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(strings.TrimSpace(out)), []byte("sekret")))
}

func TestVerify(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
server:
  publicBaseURL: http://localhost/item
  dataDir: `+dir+`
offices:
  wroclaw: {}
  krakow: {}
`), 0o644))

	out, err := run(t, "verify", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "wroclaw\tOK\t0 records")

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "krakow"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "krakow", "registry.csv"), []byte("garbage\n\"x"), 0o644))

	out, err = run(t, "verify", "--config", cfgPath)
	require.Error(t, err)
	assert.Contains(t, out, "krakow\tFAIL")
}
