package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeLedger(t *testing.T, dir string, n int) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("id,timestamp,amount,asset,counterparty,direction,category\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "T%d,2024-03-04T10:%02d:00Z,%d.50,ETH,cp%d,outbound,c%d\n", i, i%60, 100+i*17, i%5, i%3)
	}
	path := filepath.Join(dir, "ledger.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o600))
	return path
}

func writeBalances(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "balances.csv")
	require.NoError(t, os.WriteFile(path, []byte(
		"asset,account_type,recorded,observed,as_of\nBTC,custody,100,105,2024-06-30\nETH,hot,10,10,2024-06-30\n"), 0o600))
	return path
}

func TestScore(t *testing.T) {
	out, err := run(t, "score", "-l", "3", "-i", "4", "--control-effectiveness", "0.5")
	require.NoError(t, err)

	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, float64(12), res["inherent"])
	assert.Equal(t, 6.0, res["residual"])
	assert.Equal(t, "High", res["level"])

	_, err = run(t, "score", "-l", "6", "-i", "1")
	assert.Error(t, err)

	_, err = run(t, "score", "-l", "2")
	assert.Error(t, err, "impact is required")
}

func TestSample_Reproducible(t *testing.T) {
	ledger := writeLedger(t, t.TempDir(), 30)

	first, err := run(t, "sample", "-t", ledger, "-n", "6", "--seed", "42")
	require.NoError(t, err)
	second, err := run(t, "sample", "-t", ledger, "-n", "6", "--seed", "42")
	require.NoError(t, err)
	assert.JSONEq(t, first, second)

	var sel struct {
		Method string `json:"method"`
		Items  []any  `json:"items"`
	}
	require.NoError(t, json.Unmarshal([]byte(first), &sel))
	assert.Equal(t, "RANDOM", sel.Method)
	assert.Len(t, sel.Items, 6)
}

func TestAnomaliesAndBenford(t *testing.T) {
	ledger := writeLedger(t, t.TempDir(), 40)

	out, err := run(t, "anomalies", "-t", ledger, "--methods", "z-score,duplicate")
	require.NoError(t, err)
	var rep struct {
		Results []struct {
			Method string `json:"method"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	require.Len(t, rep.Results, 2)
	assert.Equal(t, "Z-SCORE", rep.Results[0].Method)

	out, err = run(t, "benford", "-t", ledger)
	require.NoError(t, err)
	assert.Contains(t, out, `"sample_size": 40`)
}

func TestReconcile(t *testing.T) {
	balances := writeBalances(t, t.TempDir())
	out, err := run(t, "reconcile", "-b", balances, "--price", "BTC=50000")
	require.NoError(t, err)

	var rep struct {
		WithVariance int    `json:"with_variance"`
		NetUSDDiff   string `json:"net_usd_diff"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, 1, rep.WithVariance)
	assert.Equal(t, "250000", rep.NetUSDDiff)
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, "analyze", "-t", writeLedger(t, dir, 35), "-b", writeBalances(t, dir),
		"--sections", "benford,reconciliation")
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Contains(t, rep, "benford")
	assert.Contains(t, rep, "reconciliation")
	assert.NotContains(t, rep, "sampling")

	_, err = run(t, "analyze")
	assert.Error(t, err)
}

func TestImportThenSampleFromSQLite(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "audit.db")
	out, err := run(t, "import", "--db", db, "-t", writeLedger(t, dir, 12), "-b", writeBalances(t, dir))
	require.NoError(t, err)
	assert.Contains(t, out, "transactions: 12 read, 12 inserted")
	assert.Contains(t, out, "balances: 2 stored")

	out, err = run(t, "sample", "-t", db, "-n", "3", "--seed", "1")
	require.NoError(t, err)
	assert.Contains(t, out, `"requested": 3`)

	_, err = run(t, "reconcile", "-b", db)
	require.NoError(t, err)
}

func TestProfileFlag(t *testing.T) {
	dir := t.TempDir()
	profile := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(profile, []byte("version: \"9\"\nsampling:\n  default_size: 4\n"), 0o600))

	out, err := run(t, "--profile", profile, "sample", "-t", writeLedger(t, dir, 10), "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, `"requested": 4`)

	_, err = run(t, "--profile", filepath.Join(dir, "missing.yaml"), "score", "-l", "1", "-i", "1")
	assert.Error(t, err)
}
