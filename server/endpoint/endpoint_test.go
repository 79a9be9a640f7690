package endpoint_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/diarizer/component"
	"github.com/kbukum/diarizer/server/endpoint"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(t *testing.T, h gin.HandlerFunc) (int, map[string]any) {
	t.Helper()
	engine := gin.New()
	engine.GET("/", h)
	rr := httptest.NewRecorder()
	engine.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return rr.Code, body
}

func checker(statuses ...component.HealthStatus) endpoint.HealthChecker {
	return func(context.Context) []component.Health {
		out := make([]component.Health, len(statuses))
		for i, s := range statuses {
			out[i] = component.Health{Name: "c", Status: s}
		}
		return out
	}
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		checker    endpoint.HealthChecker
		wantCode   int
		wantStatus string
	}{
		{"no checker", nil, http.StatusOK, "healthy"},
		{"all healthy", checker(component.StatusHealthy, component.StatusHealthy), http.StatusOK, "healthy"},
		{"degraded", checker(component.StatusHealthy, component.StatusDegraded), http.StatusOK, "degraded"},
		{"unhealthy", checker(component.StatusDegraded, component.StatusUnhealthy), http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := serve(t, endpoint.Health("diarizer", tt.checker))
			if code != tt.wantCode {
				t.Errorf("expected %d, got %d", tt.wantCode, code)
			}
			if body["status"] != tt.wantStatus {
				t.Errorf("expected status %s, got %v", tt.wantStatus, body["status"])
			}
			if body["service"] != "diarizer" {
				t.Errorf("unexpected service %v", body["service"])
			}
		})
	}
}

func TestReadiness(t *testing.T) {
	code, body := serve(t, endpoint.Readiness("diarizer", checker(component.StatusDegraded)))
	if code != http.StatusOK || body["status"] != "ready" {
		t.Fatalf("degraded should be ready, got %d %v", code, body["status"])
	}
	code, body = serve(t, endpoint.Readiness("diarizer", checker(component.StatusUnhealthy)))
	if code != http.StatusServiceUnavailable || body["status"] != "not_ready" {
		t.Fatalf("unhealthy should be not_ready, got %d %v", code, body["status"])
	}
}

func TestLiveness(t *testing.T) {
	code, body := serve(t, endpoint.Liveness("diarizer"))
	if code != http.StatusOK || body["status"] != "alive" {
		t.Fatalf("unexpected liveness %d %v", code, body)
	}
}

func TestInfo_MergesExtra(t *testing.T) {
	code, body := serve(t, endpoint.Info("diarizer", func(context.Context) map[string]any {
		return map[string]any{"provider": "energy", "device": "cpu"}
	}))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	for k, want := range map[string]string{"service": "diarizer", "provider": "energy", "device": "cpu"} {
		if body[k] != want {
			t.Errorf("%s: expected %s, got %v", k, want, body[k])
		}
	}
	if _, ok := body["version"]; !ok {
		t.Error("expected version field")
	}
}

func TestVersion(t *testing.T) {
	_, body := serve(t, endpoint.Version())
	if body["version"] == "" || body["version"] == nil {
		t.Fatalf("expected version, got %v", body)
	}
}

func TestMetrics_IncludesStats(t *testing.T) {
	_, body := serve(t, endpoint.Metrics(func() (string, any) {
		return "diarization", map[string]int{"in_use": 1}
	}))
	if _, ok := body["memory"]; !ok {
		t.Error("expected memory block")
	}
	stats, ok := body["diarization"].(map[string]any)
	if !ok || stats["in_use"] != float64(1) {
		t.Fatalf("unexpected diarization stats %v", body["diarization"])
	}
}
