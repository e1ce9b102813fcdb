package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/umbradim/umbra/internal/dimmer"
	"github.com/umbradim/umbra/internal/errors"
	"github.com/umbradim/umbra/internal/history"
)

func TestStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/status" {
			t.Errorf("path = %q, want /api/status", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(dimmer.Status{
			Paused:   true,
			Strength: 0.8,
			Displays: 2,
		})
	}))
	defer srv.Close()

	st, err := New(srv.URL).Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if !st.Paused || st.Strength != 0.8 || st.Displays != 2 {
		t.Errorf("Status = %+v, want paused, strength 0.8, 2 displays", st)
	}
}

func TestSetMonitors(t *testing.T) {
	var gotBody map[string][]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %q, want PUT", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(Monitors{Displays: 2, Active: gotBody["monitors"]})
	}))
	defer srv.Close()

	m, err := New(srv.URL).SetMonitors(context.Background(), []int{1, 2})
	if err != nil {
		t.Fatalf("SetMonitors returned error: %v", err)
	}
	if len(gotBody["monitors"]) != 2 {
		t.Errorf("request body monitors = %v, want [1 2]", gotBody["monitors"])
	}
	if len(m.Active) != 2 {
		t.Errorf("Active = %v, want [1 2]", m.Active)
	}
}

func TestErrorCodeMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error": "overlay creation failed",
			"code":  "OVERLAY_CREATE_FAILED",
		})
	}))
	defer srv.Close()

	_, err := New(srv.URL).SetMonitors(context.Background(), []int{3})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsCode(err, errors.CodeOverlayCreateFailed) {
		t.Errorf("error = %v, want code OVERLAY_CREATE_FAILED", err)
	}
}

func TestErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := New(srv.URL).Pause(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsCode(err, errors.CodeClientFailed) {
		t.Errorf("error = %v, want code CLIENT_FAILED", err)
	}
}

func TestDaemonUnreachable(t *testing.T) {
	// Nothing listens here.
	err := New("http://127.0.0.1:1").Pause(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.IsCode(err, errors.CodeUnavailable) {
		t.Errorf("error = %v, want code UNAVAILABLE", err)
	}
}

func TestHistoryQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("monitor") != "2" {
			t.Errorf("monitor = %q, want 2", q.Get("monitor"))
		}
		if q.Get("since") != "5m0s" {
			t.Errorf("since = %q, want 5m0s", q.Get("since"))
		}
		if q.Get("limit") != "100" {
			t.Errorf("limit = %q, want 100", q.Get("limit"))
		}
		_ = json.NewEncoder(w).Encode([]history.Sample{{MonitorID: 2, Brightness: 111}})
	}))
	defer srv.Close()

	samples, err := New(srv.URL).History(context.Background(), 2, 5*time.Minute, 100)
	if err != nil {
		t.Fatalf("History returned error: %v", err)
	}
	if len(samples) != 1 || samples[0].MonitorID != 2 {
		t.Errorf("samples = %+v, want one for monitor 2", samples)
	}
}
