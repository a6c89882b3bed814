package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pulsewatch/pulsewatch/monitor/internal/compute"
	"github.com/pulsewatch/pulsewatch/monitor/internal/config"
)

const systemJSON = `{
  "cpu": {"percent": 35.2, "count": 4},
  "memory": {"total": 16000, "available": 6000, "used": 10000, "percent": 62.5},
  "disk": {"total": 500000, "used": 400000, "free": 100000, "percent": 80},
  "platform": "Linux"
}`

const performanceJSON = `{
  "endpoint_stats": {
    "/api/v1/chat": {"count": 120, "avg_time": 0.8, "error_rate": 1.5},
    "/api/v1/auth/login": {"count": 40, "avg_time": 0.1, "error_rate": 0}
  },
  "total_requests": 160
}`

// backendServer serves the system and performance documents on two paths.
func backendServer(t *testing.T, perfStatus int) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/system", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(systemJSON))
	})
	mux.HandleFunc("/performance", func(w http.ResponseWriter, _ *http.Request) {
		if perfStatus != http.StatusOK {
			w.WriteHeader(perfStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(performanceJSON))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestBackendSource_Fetch(t *testing.T) {
	srv := backendServer(t, http.StatusOK)
	s := &backendSource{
		src: config.Source{
			ID:                  "backend",
			Type:                config.SourceBackend,
			Endpoint:            srv.URL + "/system",
			PerformanceEndpoint: srv.URL + "/performance",
		},
		client: srv.Client(),
	}

	snap, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if snap.CPU.Percent != 35.2 || snap.CPU.Count != 4 {
		t.Errorf("CPU = %+v", snap.CPU)
	}
	if snap.Memory.Used != 10000 || snap.Memory.Total != 16000 || snap.Memory.Percent != 62.5 {
		t.Errorf("Memory = %+v", snap.Memory)
	}
	if snap.Disk.Percent != 80 {
		t.Errorf("Disk.Percent = %v, want 80", snap.Disk.Percent)
	}
	if got := snap.EndpointStats["/api/v1/chat"]; got.Count != 120 || got.ErrorRate != 1.5 {
		t.Errorf("/api/v1/chat = %+v", got)
	}
	if err := snap.Validate(); err != nil {
		t.Errorf("fetched snapshot should be valid: %v", err)
	}
}

func TestBackendSource_NoPerformanceEndpoint(t *testing.T) {
	srv := backendServer(t, http.StatusOK)
	s := &backendSource{
		src:    config.Source{ID: "backend", Endpoint: srv.URL + "/system"},
		client: srv.Client(),
	}

	snap, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(snap.EndpointStats) != 0 {
		t.Errorf("EndpointStats = %v, want empty", snap.EndpointStats)
	}
}

func TestBackendSource_PerformanceFailureFailsFetch(t *testing.T) {
	srv := backendServer(t, http.StatusInternalServerError)
	s := &backendSource{
		src: config.Source{
			ID:                  "backend",
			Endpoint:            srv.URL + "/system",
			PerformanceEndpoint: srv.URL + "/performance",
		},
		client: srv.Client(),
	}

	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected error when performance endpoint returns 500, got nil")
	}
}

func TestBackendSource_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>login</html>"))
	}))
	defer srv.Close()

	s := &backendSource{src: config.Source{ID: "b", Endpoint: srv.URL}, client: srv.Client()}
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected decode error, got nil")
	}
}

func TestBackendSource_ConnectFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	s := &backendSource{src: config.Source{ID: "b", Endpoint: url}, client: http.DefaultClient}
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected connection error, got nil")
	}
}

func TestBackendSource_NegativeBytesAreInvalid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
  "cpu": {"percent": 10, "count": 4},
  "memory": {"percent": 50, "used": -1024, "total": 4096},
  "disk": {"percent": 10, "used": 1, "total": 10}
}`))
	}))
	defer srv.Close()

	s := &backendSource{src: config.Source{ID: "b", Endpoint: srv.URL}, client: srv.Client()}
	_, err := s.Fetch(context.Background())
	if !errors.Is(err, compute.ErrInvalidSnapshot) {
		t.Fatalf("Fetch() error = %v, want ErrInvalidSnapshot", err)
	}
	var ve *compute.ValidationError
	if !errors.As(err, &ve) || ve.Field != "memory.used" {
		t.Errorf("want *ValidationError on memory.used, got %v", err)
	}
}

func TestBackendSource_FractionalEndpointCountIsInvalid(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/system", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(systemJSON))
	})
	mux.HandleFunc("/performance", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"endpoint_stats": {"/x": {"count": 1.5, "avg_time": 0.1, "error_rate": 0}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := &backendSource{
		src:    config.Source{ID: "b", Endpoint: srv.URL + "/system", PerformanceEndpoint: srv.URL + "/performance"},
		client: srv.Client(),
	}
	if _, err := s.Fetch(context.Background()); !errors.Is(err, compute.ErrInvalidSnapshot) {
		t.Fatalf("Fetch() error = %v, want ErrInvalidSnapshot", err)
	}
}
