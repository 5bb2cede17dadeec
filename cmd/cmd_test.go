package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"momo/access"
	"momo/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `[
  {"tx_ref":"TXN2","sender_phone":"250788000001","sender_name":"Alice","receiver_phone":"250788000002",
   "category":"P2P Transfer","amount":2500,"fee":50,"timestamp":"2026-01-01 11:00:00"},
  {"tx_ref":"TXN1","sender_phone":"250788000002","receiver_phone":"250788000003",
   "category":"Airtime","amount":"1000","fee":"0","balance_after":"4000","timestamp":"2026-01-01 10:00:00"},
  {"tx_ref":"TXN3","sender_phone":"250788000001","receiver_phone":"250788000003",
   "category":"Airtime","amount":"-5","timestamp":"2026-01-01 12:00:00"}
]`

// run 在临时 sqlite 库上执行一条命令
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupWorkspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MOMO_DATABASE_DRIVER", "sqlite")
	t.Setenv("MOMO_DATABASE_PATH", filepath.Join(dir, "cli.db"))
	t.Setenv("MOMO_DATABASE_LOG_LEVEL", "silent")
	configFile = ""

	path := filepath.Join(dir, "sample.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleJSON), 0o644))
	return path
}

func TestCLI_IngestLookupBench(t *testing.T) {
	sample := setupWorkspace(t)

	out, err := run(t, "ingest", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "新增 2，重复 0，拒绝 1")
	assert.Contains(t, out, "invalid_amount")

	out, err = run(t, "ingest", sample)
	require.NoError(t, err)
	assert.Contains(t, out, "新增 0，重复 2，拒绝 1")

	out, err = run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "transactions")
	assert.Contains(t, out, "audit_entries")

	out, err = run(t, "lookup", "--ref", "TXN1", "--strategy", "all")
	require.NoError(t, err)
	assert.Contains(t, out, `"tx_ref": "TXN1"`)
	assert.Contains(t, out, "3 种策略结果一致")

	_, err = run(t, "lookup", "--ref", "NOPE")
	assert.Error(t, err)
	_, err = run(t, "lookup")
	assert.Error(t, err)

	out, err = run(t, "bench", "-n", "5", "--json")
	require.NoError(t, err)
	var report struct {
		Size  int  `json:"size"`
		Agree bool `json:"agree"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 2, report.Size)
	assert.True(t, report.Agree)

	out, err = run(t, "bench", "-n", "5", "--ref", "TXN2", "--ref", "TXN9")
	require.NoError(t, err)
	assert.Contains(t, out, "All strategies returned identical results.")
}

func TestCLI_AuditExport(t *testing.T) {
	setupWorkspace(t)
	dest := filepath.Join(t.TempDir(), "audit.xlsx")

	out, err := run(t, "audit", "export", "--out", dest, "--since", "2026-01-01")
	require.NoError(t, err)
	assert.Contains(t, out, "审计记录 0 条")

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))

	_, err = run(t, "audit", "export", "--since", "01/01/2026")
	assert.Error(t, err)
}

func TestCLI_HashToken(t *testing.T) {
	configFile = ""

	out, err := run(t, "hash-token", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	require.True(t, strings.HasPrefix(hash, "$2"), hash)

	auth := access.NewAuthenticator([]config.ClientConfig{{Name: "ops", TokenBcrypt: hash}})
	name, ok := auth.Authenticate("Bearer s3cret")
	assert.True(t, ok)
	assert.Equal(t, "ops", name)
	_, ok = auth.Authenticate("other")
	assert.False(t, ok)

	root := NewRootCommand()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetIn(strings.NewReader("from-stdin\n"))
	root.SetArgs([]string{"hash-token"})
	require.NoError(t, root.Execute())
	auth = access.NewAuthenticator([]config.ClientConfig{{Name: "ops", TokenBcrypt: strings.TrimSpace(buf.String())}})
	_, ok = auth.Authenticate("from-stdin")
	assert.True(t, ok)

	_, err = run(t, "hash-token", "  ")
	assert.Error(t, err)
}
