package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric returns the sample of name whose labels include want, or nil.
func findMetric(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) *dto.Metric {
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
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
					break
				}
			}
			if match {
				return m
			}
		}
	}
	return nil
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	m := findMetric(t, reg, name, labels)
	if m == nil {
		t.Fatalf("metric %s%v not found", name, labels)
	}
	return m.GetCounter().GetValue()
}

func TestNewCollector_ReturnsNonNil(t *testing.T) {
	if NewCollector(prometheus.NewRegistry()) == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestNewCollector_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewCollector(reg)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewCollector(reg)
}

func TestRecordAuthAttempt_LabelsByOperationAndOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAuthAttempt("login", "success")
	c.RecordAuthAttempt("login", "success")
	c.RecordAuthAttempt("login", "INVALID_CREDENTIALS")

	if v := counterValue(t, reg, "buildwise_auth_attempts_total", map[string]string{"operation": "login", "outcome": "success"}); v != 2 {
		t.Errorf("login/success = %v, want 2", v)
	}
	if v := counterValue(t, reg, "buildwise_auth_attempts_total", map[string]string{"operation": "login", "outcome": "INVALID_CREDENTIALS"}); v != 1 {
		t.Errorf("login/INVALID_CREDENTIALS = %v, want 1", v)
	}
}

func TestSessionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSessionCreated()
	c.RecordSessionsPurged(5)
	c.RecordSessionsPurged(2)

	if v := counterValue(t, reg, "buildwise_sessions_created_total", nil); v != 1 {
		t.Errorf("sessions_created = %v, want 1", v)
	}
	if v := counterValue(t, reg, "buildwise_sessions_purged_total", nil); v != 7 {
		t.Errorf("sessions_purged = %v, want 7", v)
	}
}

func TestEmailCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotificationQueued("USER_SIGNUP")
	c.RecordNotificationDropped("queue_full")
	c.RecordEmailSent("USER_SIGNUP")
	c.RecordEmailFailed("PASSWORD_RESET")

	checks := []struct {
		name   string
		labels map[string]string
	}{
		{"buildwise_email_notifications_queued_total", map[string]string{"event_type": "USER_SIGNUP"}},
		{"buildwise_email_notifications_dropped_total", map[string]string{"reason": "queue_full"}},
		{"buildwise_emails_sent_total", map[string]string{"event_type": "USER_SIGNUP"}},
		{"buildwise_emails_failed_total", map[string]string{"event_type": "PASSWORD_RESET"}},
	}
	for _, ck := range checks {
		if v := counterValue(t, reg, ck.name, ck.labels); v != 1 {
			t.Errorf("%s%v = %v, want 1", ck.name, ck.labels, v)
		}
	}
}

func TestRecordEmailSendLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEmailSendLatency(250 * time.Millisecond)

	m := findMetric(t, reg, "buildwise_email_send_latency_seconds", nil)
	if m == nil {
		t.Fatal("histogram not found")
	}
	if got := m.GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("sample count = %d, want 1", got)
	}
	if got := m.GetHistogram().GetSampleSum(); got != 0.25 {
		t.Errorf("sample sum = %v, want 0.25", got)
	}
}

func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(401)
	c.RecordHTTPStatus(401)

	if v := counterValue(t, reg, "buildwise_http_responses_total", map[string]string{"status_code": "401"}); v != 2 {
		t.Errorf("401 = %v, want 2", v)
	}
}
