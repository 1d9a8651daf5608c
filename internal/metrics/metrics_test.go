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

// findMetricFamily は収集結果から名前が一致するメトリクスファミリーを返す。
func findMetricFamily(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, l := range m.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestObserveHTTPRequest_CountsByLabels はHTTPリクエスト数がラベル別に記録されることを検証する。
func TestObserveHTTPRequest_CountsByLabels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHTTPRequest(http.MethodGet, "/api/courses", 200, 10*time.Millisecond)
	c.ObserveHTTPRequest(http.MethodGet, "/api/courses", 200, 20*time.Millisecond)
	c.ObserveHTTPRequest(http.MethodPut, "/api/courses/{id}", 404, 5*time.Millisecond)

	mf := findMetricFamily(t, reg, "capacita_http_requests_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		val := m.GetCounter().GetValue()
		switch labelValue(m, "status") {
		case "200":
			if val != 2 || labelValue(m, "route") != "/api/courses" {
				t.Errorf("http_requests_total{status=200} = %v (route %s), want 2", val, labelValue(m, "route"))
			}
		case "404":
			if val != 1 || labelValue(m, "route") != "/api/courses/{id}" {
				t.Errorf("http_requests_total{status=404} = %v, want 1", val)
			}
		default:
			t.Errorf("unexpected status label: %s", labelValue(m, "status"))
		}
	}

	hist := findMetricFamily(t, reg, "capacita_http_request_duration_seconds")
	var samples uint64
	for _, m := range hist.GetMetric() {
		samples += m.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Errorf("sample_count = %d, want 3", samples)
	}
}

// TestObserveHTTPRequest_EmptyRoute はルート未解決のリクエストが unmatched として記録されることを検証する。
func TestObserveHTTPRequest_EmptyRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHTTPRequest(http.MethodGet, "", 404, time.Millisecond)

	mf := findMetricFamily(t, reg, "capacita_http_requests_total")
	if got := labelValue(mf.GetMetric()[0], "route"); got != "unmatched" {
		t.Errorf("route = %q, want unmatched", got)
	}
}

// TestObserveStorageOp_RecordsResult はストレージ操作の結果がラベルに反映されることを検証する。
func TestObserveStorageOp_RecordsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveStorageOp("redis", "get", time.Millisecond, nil)
	c.ObserveStorageOp("redis", "get", time.Millisecond, errors.New("connection refused"))
	c.ObserveStorageOp("redis", "set_multi", 2*time.Millisecond, nil)

	mf := findMetricFamily(t, reg, "capacita_storage_operations_total")
	got := make(map[string]float64)
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "op")+"/"+labelValue(m, "result")] = m.GetCounter().GetValue()
	}
	want := map[string]float64{"get/ok": 1, "get/error": 1, "set_multi/ok": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("storage_operations_total{%s} = %v, want %v", k, got[k], v)
		}
	}
}

// TestRecordRegistrationAndLogin はユーザー登録とログインのカウンタを検証する。
func TestRecordRegistrationAndLogin(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRegistration("atirador")
	c.RecordRegistration("atirador")
	c.RecordRegistration("empregador")
	c.RecordLogin(true)
	c.RecordLogin(false)
	c.RecordLogin(false)

	regs := findMetricFamily(t, reg, "capacita_registrations_total")
	for _, m := range regs.GetMetric() {
		want := 2.0
		if labelValue(m, "kind") == "empregador" {
			want = 1
		}
		if v := m.GetCounter().GetValue(); v != want {
			t.Errorf("registrations_total{kind=%s} = %v, want %v", labelValue(m, "kind"), v, want)
		}
	}

	logins := findMetricFamily(t, reg, "capacita_logins_total")
	for _, m := range logins.GetMetric() {
		want := 1.0
		if labelValue(m, "result") == "failure" {
			want = 2
		}
		if v := m.GetCounter().GetValue(); v != want {
			t.Errorf("logins_total{result=%s} = %v, want %v", labelValue(m, "result"), v, want)
		}
	}
}

// TestRecordCounters は講座インポートと修復件数のカウンタが加算されることを検証する。
func TestRecordCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCoursesImported(10)
	c.RecordCoursesImported(5)
	c.RecordReconcileRepairs(2)

	if v := findMetricFamily(t, reg, "capacita_courses_imported_total").GetMetric()[0].GetCounter().GetValue(); v != 15 {
		t.Errorf("courses_imported_total = %v, want 15", v)
	}
	if v := findMetricFamily(t, reg, "capacita_reconcile_repairs_total").GetMetric()[0].GetCounter().GetValue(); v != 2 {
		t.Errorf("reconcile_repairs_total = %v, want 2", v)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHTTPRequest(http.MethodGet, "/api/health", 200, time.Millisecond)
	c.RecordLogin(true)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body, _ := io.ReadAll(w.Body)
	for _, name := range []string{"capacita_http_requests_total", "capacita_logins_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response should contain %s", name)
		}
	}
}
