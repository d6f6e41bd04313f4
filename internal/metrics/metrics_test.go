package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は指定名のメトリクスファミリーからラベルが一致する値を探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := map[string]string{}
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestObserveOperation_CountsByResult は操作結果が成功・失敗別に数えられることを検証する。
func TestObserveOperation_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveOperation("login", nil)
	c.ObserveOperation("login", nil)
	c.ObserveOperation("login", errors.New("invalid credentials"))
	c.ObserveOperation("create_record", nil)

	cases := []struct {
		op, result string
		want       float64
	}{
		{"login", "success", 2},
		{"login", "failure", 1},
		{"create_record", "success", 1},
	}
	for _, tc := range cases {
		m := findMetric(t, reg, "studylog_operations_total", map[string]string{"operation": tc.op, "result": tc.result})
		if got := m.GetCounter().GetValue(); got != tc.want {
			t.Errorf("operations_total{%s,%s} = %v, want %v", tc.op, tc.result, got, tc.want)
		}
	}
}

// TestRecordHTTPRequest_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPRequest_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPRequest(http.MethodGet, 200, 100*time.Millisecond)
	c.RecordHTTPRequest(http.MethodGet, 200, 2*time.Second)
	c.RecordHTTPRequest(http.MethodPost, 303, time.Millisecond)

	m := findMetric(t, reg, "studylog_http_requests_total", map[string]string{"method": "GET", "status_code": "200"})
	if got := m.GetCounter().GetValue(); got != 2 {
		t.Errorf("http_requests_total{GET,200} = %v, want 2", got)
	}
	m = findMetric(t, reg, "studylog_http_requests_total", map[string]string{"method": "POST", "status_code": "303"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("http_requests_total{POST,303} = %v, want 1", got)
	}

	h := findMetric(t, reg, "studylog_http_request_duration_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 3 {
		t.Errorf("sample_count = %d, want 3", h.GetSampleCount())
	}
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestRecordCleanup_AddsDeletedRows はクリーンアップ削除件数が加算されることを検証する。
func TestRecordCleanup_AddsDeletedRows(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCleanup("sessions", 10)
	c.RecordCleanup("sessions", 5)
	c.RecordCleanup("password_reset_tokens", 0)
	c.RecordCleanupFailure()

	m := findMetric(t, reg, "studylog_cleanup_deleted_total", map[string]string{"table": "sessions"})
	if got := m.GetCounter().GetValue(); got != 15 {
		t.Errorf("cleanup_deleted_total{sessions} = %v, want 15", got)
	}
	m = findMetric(t, reg, "studylog_cleanup_failures_total", nil)
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("cleanup_failures_total = %v, want 1", got)
	}
}

// TestRegisterTrackerGauge_ReportsCurrentCount はゲージが取得時点の値を返すことを検証する。
func TestRegisterTrackerGauge_ReportsCurrentCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	n := 3
	RegisterTrackerGauge(reg, func() int { return n })

	if got := findMetric(t, reg, "studylog_active_trackers", nil).GetGauge().GetValue(); got != 3 {
		t.Errorf("active_trackers = %v, want 3", got)
	}

	n = 7
	if got := findMetric(t, reg, "studylog_active_trackers", nil).GetGauge().GetValue(); got != 7 {
		t.Errorf("active_trackers = %v, want 7", got)
	}
}

func TestRegisterRateLimiterGauge_ReportsPerType(t *testing.T) {
	reg := prometheus.NewRegistry()
	RegisterRateLimiterGauge(reg, func() int { return 4 }, func() int { return 1 })

	if got := findMetric(t, reg, "studylog_rate_limiter_keys", map[string]string{"limit_type": "general"}).GetGauge().GetValue(); got != 4 {
		t.Errorf("general = %v, want 4", got)
	}
	if got := findMetric(t, reg, "studylog_rate_limiter_keys", map[string]string{"limit_type": "auth"}).GetGauge().GetValue(); got != 1 {
		t.Errorf("auth = %v, want 1", got)
	}
}

// TestHTTPMiddleware_RecordsStatus はミドルウェアがレスポンスのステータスを記録することを検証する。
func TestHTTPMiddleware_RecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	handler := NewHTTPMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSeeOther)
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/login", nil))

	implicit := NewHTTPMiddleware(c)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	implicit.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	m := findMetric(t, reg, "studylog_http_requests_total", map[string]string{"method": "POST", "status_code": "303"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("http_requests_total{POST,303} = %v, want 1", got)
	}
	m = findMetric(t, reg, "studylog_http_requests_total", map[string]string{"method": "GET", "status_code": "200"})
	if got := m.GetCounter().GetValue(); got != 1 {
		t.Errorf("http_requests_total{GET,200} = %v, want 1", got)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveOperation("fetch_records", nil)
	c.RecordHTTPRequest(http.MethodGet, 200, 500*time.Millisecond)
	c.RecordCleanup("sessions", 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"studylog_operations_total",
		"studylog_http_requests_total",
		"studylog_http_request_duration_seconds",
		"studylog_cleanup_deleted_total",
		"studylog_cleanup_failures_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.ObserveOperation("logout", nil)
	c2.ObserveOperation("logout", nil)
	c2.ObserveOperation("logout", nil)

	labels := map[string]string{"operation": "logout", "result": "success"}
	if got := findMetric(t, reg1, "studylog_operations_total", labels).GetCounter().GetValue(); got != 1 {
		t.Errorf("reg1 logout = %v, want 1", got)
	}
	if got := findMetric(t, reg2, "studylog_operations_total", labels).GetCounter().GetValue(); got != 2 {
		t.Errorf("reg2 logout = %v, want 2", got)
	}
}
