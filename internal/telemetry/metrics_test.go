package telemetry

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// ---------------------------------------------------------------------------
// Registration: every exported collector carries its fully-qualified name.
// Describe() is used because Gather() omits *Vec metrics with no observed labels.
// ---------------------------------------------------------------------------

func TestMetrics_AllRegistered(t *testing.T) {
	cases := []struct {
		name string
		c    prometheus.Collector
	}{
		{"mailnow_http_requests_total", HTTPRequestsTotal},
		{"mailnow_http_request_duration_seconds", HTTPRequestDuration},
		{"mailnow_api_key_auth_total", APIKeyAuthTotal},
		{"mailnow_emails_recorded_total", EmailsRecordedTotal},
		{"mailnow_credit_deductions_total", CreditDeductionsTotal},
		{"mailnow_credit_resets_total", CreditResetsTotal},
		{"mailnow_credit_reset_run_duration_seconds", CreditResetRunDuration},
		{"mailnow_rate_limit_rejections_total", RateLimitRejectionsTotal},
		{"mailnow_log_exports_total", LogExportsTotal},
		{"mailnow_db_open_connections", DBOpenConnections},
		{"mailnow_db_in_use_connections", DBInUseConnections},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ch := make(chan *prometheus.Desc, 10)
			tc.c.Describe(ch)
			close(ch)
			for desc := range ch {
				if strings.Contains(desc.String(), `"`+tc.name+`"`) {
					return
				}
			}
			t.Errorf("metric %q: Describe() returned no descriptor with this fqName", tc.name)
		})
	}
}

func TestMetrics_CountersIncrement(t *testing.T) {
	cases := []struct {
		name   string
		cv     *prometheus.CounterVec
		labels prometheus.Labels
	}{
		{"http", HTTPRequestsTotal, prometheus.Labels{"method": "GET", "path": "/test", "status": "200"}},
		{"api key auth", APIKeyAuthTotal, prometheus.Labels{"result": "expired"}},
		{"emails", EmailsRecordedTotal, prometheus.Labels{"status": "queued"}},
		{"credit resets", CreditResetsTotal, prometheus.Labels{"trigger": "job"}},
		{"rate limit", RateLimitRejectionsTotal, prometheus.Labels{"backend": "memory"}},
		{"exports", LogExportsTotal, prometheus.Labels{"backend": "local", "result": "ok"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			before := counterValue(t, tc.cv, tc.labels)
			tc.cv.With(tc.labels).Inc()
			if after := counterValue(t, tc.cv, tc.labels); after-before < 1 {
				t.Errorf("counter did not increase (before=%.0f after=%.0f)", before, after)
			}
		})
	}
}

func TestRecordDBStats(t *testing.T) {
	RecordDBStats(sql.DBStats{OpenConnections: 7, InUse: 3})
	if got := gaugeValue(t, DBOpenConnections); got != 7 {
		t.Errorf("DBOpenConnections = %v, want 7", got)
	}
	if got := gaugeValue(t, DBInUseConnections); got != 3 {
		t.Errorf("DBInUseConnections = %v, want 3", got)
	}
	RecordDBStats(sql.DBStats{})
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func counterValue(t *testing.T, cv *prometheus.CounterVec, labels prometheus.Labels) float64 {
	t.Helper()
	ch := make(chan prometheus.Metric, 20)
	cv.Collect(ch)
	close(ch)
	for m := range ch {
		var dm dto.Metric
		if err := m.Write(&dm); err != nil {
			continue
		}
		if labelsMatch(dm.GetLabel(), labels) {
			return dm.GetCounter().GetValue()
		}
	}
	return 0
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()
	var dm dto.Metric
	if err := g.Write(&dm); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return dm.GetGauge().GetValue()
}

func labelsMatch(got []*dto.LabelPair, want prometheus.Labels) bool {
	for k, v := range want {
		found := false
		for _, lp := range got {
			if lp.GetName() == k && lp.GetValue() == v {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
