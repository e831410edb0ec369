package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/cryptoaudit/internal/anomaly"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/config"
	"github.com/gyaneshwarpardhi/cryptoaudit/internal/engine"
)

func newServer(t *testing.T, profiles ProfileSource) (http.Handler, *engine.Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	eng := engine.New(ctx, config.Default(), anomaly.DefaultRegistry(), zerolog.Nop())
	t.Cleanup(func() {
		eng.Shutdown()
		cancel()
	})
	return New(eng, profiles, zerolog.Nop()), eng
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

// txnsJSON renders n transactions on a Monday morning with varied amounts.
func txnsJSON(n int) string {
	var b bytes.Buffer
	b.WriteString("[")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		ts := time.Date(2024, 3, 4, 10, i%50, 0, 0, time.UTC).Format(time.RFC3339)
		fmt.Fprintf(&b, `{"id":"T%d","timestamp":%q,"amount":"%d.25","asset":"ETH","counterparty":"cp%d","direction":"outbound","category":"c%d"}`,
			i, ts, 100+i*13, i%4, i%2)
	}
	b.WriteString("]")
	return b.String()
}

func TestScoringRisk(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/scoring/risk", `{"likelihood":4,"impact":5,"control_effectiveness":0.25}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(20), body["inherent"])
	assert.Equal(t, 15.0, body["residual"])
	assert.Equal(t, "Critical", body["level"])

	rec = do(t, h, http.MethodPost, "/v1/scoring/risk", `{"likelihood":0,"impact":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decodeBody(t, rec)["kind"])

	rec = do(t, h, http.MethodPost, "/v1/scoring/risk", `{"likelihood":3,"impact":3,"control_effectiveness":1.5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScoringControlAndHeatmap(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/scoring/control", `{"score":59.9}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Ineffective", decodeBody(t, rec)["rating"])

	rec = do(t, h, http.MethodPost, "/v1/scoring/heatmap",
		`{"risks":[{"name":"a","likelihood":5,"impact":5},{"name":"b","likelihood":1,"impact":2},{"name":"bad","likelihood":9,"impact":1}]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, []any{"bad"}, body["rejected"])

	rec = do(t, h, http.MethodPost, "/v1/scoring/controls/summary",
		`{"controls":[{"name":"a","score":95},{"name":"b","tests":[{"name":"t1","passed":true},{"name":"t2","passed":false}]}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body = decodeBody(t, rec)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, 72.5, body["average_score"])
	assert.Equal(t, "Needs Improvement", body["overall_rating"])

	rec = do(t, h, http.MethodPost, "/v1/scoring/controls/summary", `{"controls":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSampling(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/sampling",
		`{"transactions":`+txnsJSON(20)+`,"method":"MONETARY_UNIT","size":5,"seed":11}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "MONETARY_UNIT", body["method"])
	assert.NotEmpty(t, body["interval"])
	assert.Len(t, body["items"], 5)

	rec = do(t, h, http.MethodPost, "/v1/sampling", `{"transactions":[],"size":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/v1/sampling", `{"transactions":`+txnsJSON(5)+`,"method":"CLUSTER","size":2}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnomalies(t *testing.T) {
	h, _ := newServer(t, nil)
	payload := `{"methods":["DUPLICATE"],"transactions":[
		{"id":"A","timestamp":"2024-03-04T10:00:00Z","amount":"500","asset":"USDC","counterparty":"X","direction":"outbound"},
		{"id":"B","timestamp":"2024-03-04T15:00:00Z","amount":"500","asset":"USDC","counterparty":"X","direction":"outbound"},
		{"id":"C","timestamp":"2024-03-04T10:00:00Z","amount":"500","asset":"USDC","counterparty":"Y","direction":"outbound"}]}`
	rec := do(t, h, http.MethodPost, "/v1/anomalies", payload)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var rep anomaly.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	require.Len(t, rep.Results, 1)
	groups := anomaly.Groups(rep.Results[0].Flags)
	require.Len(t, groups, 1)
	assert.Equal(t, []string{"A", "B"}, groups[0].TransactionIDs)
}

func TestAnomalies_MethodFailureStillOK(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/anomalies",
		`{"methods":["IQR","NOPE"],"transactions":`+txnsJSON(8)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var rep anomaly.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rep))
	require.Len(t, rep.Results, 2)
	assert.Empty(t, rep.Results[0].Error)
	assert.Equal(t, "invalid_input", rep.Results[1].ErrorKind)
}

func TestBenford_InsufficientDataIs200(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/benford", `{"amounts":["12.5","130","0","7"]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "INSUFFICIENT_DATA", body["conclusion"])
	assert.Equal(t, float64(3), body["sample_size"])
	assert.Equal(t, float64(1), body["excluded"])

	rec = do(t, h, http.MethodPost, "/v1/benford", `{"transactions":`+txnsJSON(40)+`}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, []any{"PASS", "FAIL"}, decodeBody(t, rec)["conclusion"])

	rec = do(t, h, http.MethodPost, "/v1/benford", `{"amounts":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReconciliation(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/reconciliation", `{
		"balances":[
			{"asset":"BTC","account_type":"custody","recorded":"100","observed":"105","as_of":"2024-06-30T00:00:00Z"},
			{"asset":"DOGE","account_type":"custody","recorded":"0","observed":"5","as_of":"2024-06-30T00:00:00Z"}],
		"prices":{"BTC":"60000"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	variances := body["variances"].([]any)
	btc := variances[0].(map[string]any)
	assert.Equal(t, "5", btc["absolute_diff"])
	assert.Equal(t, "0.05", btc["percent_diff"])
	doge := variances[1].(map[string]any)
	assert.Nil(t, doge["percent_diff"])
	assert.Equal(t, true, doge["percent_undefined"])
	assert.Equal(t, true, doge["unpriced"])

	rec = do(t, h, http.MethodPost, "/v1/reconciliation", `{"balances":[]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyses_Sync(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/analyses",
		`{"id":"run-1","transactions":`+txnsJSON(35)+`,"sampling":{"size":5,"seed":1}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "run-1", body["id"])
	assert.Contains(t, body, "sampling")
	assert.Contains(t, body, "anomalies")
	assert.Contains(t, body, "benford")
	assert.NotContains(t, body, "reconciliation")

	rec = do(t, h, http.MethodPost, "/v1/analyses", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyses_BatchAndPoll(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/analyses/batch",
		`[{"risks":[{"name":"r","likelihood":2,"impact":2}]},{}]`)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, float64(1), body["accepted"])
	items := body["items"].([]any)
	id := items[0].(map[string]any)["job_id"].(string)

	require.Eventually(t, func() bool {
		rec := do(t, h, http.MethodGet, "/v1/analyses/"+id, "")
		return rec.Code == http.StatusOK && decodeBody(t, rec)["status"] == "completed"
	}, 5*time.Second, 10*time.Millisecond)

	rec = do(t, h, http.MethodGet, "/v1/analyses/unknown", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	tooMany := "[" + strings.TrimSuffix(strings.Repeat(`{"risks":[]},`, 21), ",") + "]"
	rec = do(t, h, http.MethodPost, "/v1/analyses/batch", tooMany)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidJSON(t *testing.T) {
	h, _ := newServer(t, nil)
	for _, body := range []string{`{`, `{"likelihood":1,"impact":1,"surprise":true}`, `{"likelihood":1,"impact":1} {}`} {
		rec := do(t, h, http.MethodPost, "/v1/scoring/risk", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestProfileEndpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("version: \"7\"\n"), 0o600))
	loader, err := config.NewLoader(path)
	require.NoError(t, err)

	h, eng := newServer(t, loader)
	rec := do(t, h, http.MethodGet, "/v1/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", decodeBody(t, rec)["version"])

	rec = do(t, h, http.MethodPost, "/v1/profile/reload", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "7", eng.Profile().Version)

	require.NoError(t, os.WriteFile(path, []byte("version: \"8\"\nengine: { workers: -2 }\n"), 0o600))
	rec = do(t, h, http.MethodPost, "/v1/profile/reload", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "7", eng.Profile().Version)
}

func TestProfileReload_WithoutFile(t *testing.T) {
	h, _ := newServer(t, nil)
	rec := do(t, h, http.MethodPost, "/v1/profile/reload", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProbes(t *testing.T) {
	h, _ := newServer(t, nil)
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)

	rec := do(t, h, http.MethodGet, "/readyz", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", decodeBody(t, rec)["status"])

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "cryptoaudit_analyses_enqueued_total")

	rec = do(t, h, http.MethodGet, "/healthz", "")
	assert.NotEmpty(t, rec.Header().Get("Content-Type"))
}
