package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/internal/journal"
	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newTestBreaker(t *testing.T, clk clock.Clock) *breaker.Breaker {
	t.Helper()
	br, err := breaker.New(breaker.Config{
		FailureThreshold: 0.5,
		MinSamples:       2,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
	}, clk, nil)
	if err != nil {
		t.Fatal(err)
	}
	return br
}

func startTestServer(t *testing.T, br *breaker.Breaker, clk clock.Clock) (string, func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := New(ln.Addr().String(), br, clk, journal.New(nil))
	go srv.StartOnListener(ln)
	baseURL := "http://" + ln.Addr().String()
	return baseURL, func() {
		srv.Shutdown(context.Background())
	}
}

func TestServer_Root(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body map[string]string
	json.NewDecoder(resp.Body).Decode(&body)
	if body["service"] != "tempo" {
		t.Errorf("service = %q, want %q", body["service"], "tempo")
	}
	if body["time"] != epoch.Format(time.RFC3339) {
		t.Errorf("time = %q, want virtual epoch", body["time"])
	}
}

func TestServer_Health(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestServer_NotFound(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/nonexistent")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestServer_CheckClosed(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/check/upstream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var decision breaker.Decision
	json.NewDecoder(resp.Body).Decode(&decision)
	if !decision.Allowed {
		t.Error("closed breaker should allow")
	}
	if resp.Header.Get("X-Breaker-State") != "closed" {
		t.Errorf("X-Breaker-State = %q, want closed", resp.Header.Get("X-Breaker-State"))
	}
}

func TestServer_CheckOpen(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	br := newTestBreaker(t, vc)
	baseURL, cleanup := startTestServer(t, br, vc)
	defer cleanup()

	// Trip the breaker via the report endpoint.
	for i := 0; i < 2; i++ {
		resp, err := http.Post(baseURL+"/api/report/upstream?fail=true", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(baseURL + "/api/check/upstream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if resp.Header.Get("Retry-After") == "" {
		t.Error("Retry-After header should be set")
	}

	var decision breaker.Decision
	json.NewDecoder(resp.Body).Decode(&decision)
	if decision.Allowed {
		t.Error("open breaker should reject")
	}
}

func TestServer_CheckEmptyKey(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/check/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_ReportRequiresPost(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/report/upstream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestServer_State(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	br := newTestBreaker(t, vc)
	baseURL, cleanup := startTestServer(t, br, vc)
	defer cleanup()

	// Seed one key.
	resp, err := http.Get(baseURL + "/api/check/upstream")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(baseURL + "/api/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Time string              `json:"time"`
		Keys []breaker.KeyStatus `json:"keys"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if len(body.Keys) != 1 || body.Keys[0].Key != "upstream" {
		t.Errorf("keys = %+v, want one entry for upstream", body.Keys)
	}
}

func TestServer_Clock(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	if err := vc.Schedule(10*time.Second, func(context.Context, clock.Clock) error { return nil }); err != nil {
		t.Fatal(err)
	}
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/api/clock")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}

	var body struct {
		Time      string `json:"time"`
		NextDueIn string `json:"next_action_due_in"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Time != epoch.Format(time.RFC3339) {
		t.Errorf("time = %q, want virtual epoch", body.Time)
	}
	if body.NextDueIn != "10s" {
		t.Errorf("next_action_due_in = %q, want 10s", body.NextDueIn)
	}
}

func TestServer_Trips(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	br := newTestBreaker(t, vc)
	baseURL, cleanup := startTestServer(t, br, vc)
	defer cleanup()

	for i := 0; i < 2; i++ {
		resp, err := http.Post(baseURL+"/api/report/upstream?fail=true", "", nil)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
	}

	resp, err := http.Get(baseURL + "/api/trips/upstream")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Key   string `json:"key"`
		Trips int64  `json:"trips"`
	}
	json.NewDecoder(resp.Body).Decode(&body)
	if body.Trips != 1 {
		t.Errorf("trips = %d, want 1", body.Trips)
	}
}

func TestServer_Dashboard(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	baseURL, cleanup := startTestServer(t, newTestBreaker(t, vc), vc)
	defer cleanup()

	resp, err := http.Get(baseURL + "/dashboard")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content type = %q, want text/html", ct)
	}
}
