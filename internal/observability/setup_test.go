package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ncecere/spendwatch/internal/config"
)

func TestSetupDisabledReturnsNil(t *testing.T) {
	provider, err := Setup(context.Background(), config.ObservabilityConfig{})
	require.NoError(t, err)
	require.Nil(t, provider)

	// nil providers are safe to record against
	provider.RecordSync("openai", "success", 3, time.Second)
	provider.RecordAlert("budget_limit", "warning")
	require.Nil(t, provider.PrometheusHandler())
}

func TestMetricsExposeSyncCounters(t *testing.T) {
	provider, err := Setup(context.Background(), config.ObservabilityConfig{EnableMetrics: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	provider.RecordSync("openai", "success", 4, 250*time.Millisecond)
	provider.RecordAlert("budget_limit", "critical")
	provider.RecordHTTPRequest(context.Background(), http.MethodGet, "/api/usage", 200, 10*time.Millisecond)

	srv := httptest.NewServer(provider.PrometheusHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	require.True(t, strings.Contains(text, `spendwatch_usage_sync_runs_total{provider="openai",status="success"} 1`), text)
	require.True(t, strings.Contains(text, `spendwatch_usage_records_synced_total{provider="openai"} 4`), text)
	require.True(t, strings.Contains(text, `spendwatch_alerts_fired_total{severity="critical",type="budget_limit"} 1`), text)
}
