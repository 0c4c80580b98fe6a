package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bft-labs/mirage/pkg/mirage"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestCollector_CountsTraffic(t *testing.T) {
	c := NewCollector()

	c.OnMessageSent(100)
	c.OnMessageSent(50)
	c.OnMessageReceived(25)
	c.OnMessageDropped()

	body := scrape(t, c)
	for _, want := range []string{
		"mirage_messages_sent_total 2",
		"mirage_bytes_sent_total 150",
		"mirage_messages_received_total 1",
		"mirage_bytes_received_total 25",
		"mirage_messages_dropped_total 1",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestCollector_TracksRunningState(t *testing.T) {
	c := NewCollector()

	c.OnStateChange(mirage.StateStarting, mirage.StateRunning, "transports established")
	if body := scrape(t, c); !strings.Contains(body, "mirage_running 1") {
		t.Error("running gauge not set after entering Running")
	}

	c.OnStateChange(mirage.StateRunning, mirage.StateStopping, "stop requested")
	body := scrape(t, c)
	if !strings.Contains(body, "mirage_running 0") {
		t.Error("running gauge not cleared after leaving Running")
	}
	if !strings.Contains(body, `mirage_state_transitions_total{from="Running",to="Stopping"} 1`) {
		t.Error("transition counter missing Running>Stopping sample")
	}
}
