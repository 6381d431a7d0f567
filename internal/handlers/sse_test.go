package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/RemyAM27/projet-dashboard/internal/models"
)

func testSSEHandlers(t *testing.T) *SSEHandlers {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewSSEHandlers(&fakeCharts{}, logger)
}

// signalsRequest builds a GET request carrying datastar signals the way
// the browser runtime sends them.
func signalsRequest(t *testing.T, path, signals string) *http.Request {
	t.Helper()
	target := path
	if signals != "" {
		target += "?datastar=" + url.QueryEscape(signals)
	}
	return httptest.NewRequest(http.MethodGet, target, nil)
}

func TestNewSSEHandlers(t *testing.T) {
	handlers := testSSEHandlers(t)
	if handlers == nil {
		t.Fatal("NewSSEHandlers() returned nil")
	}
	if handlers.charts == nil {
		t.Error("NewSSEHandlers() should set charts field")
	}
	if handlers.logger == nil {
		t.Error("NewSSEHandlers() should set logger field")
	}
}

func TestRenderDepartmentCard(t *testing.T) {
	info := &models.DepartmentInfo{
		DepartmentCount: models.DepartmentCount{
			Code: "75", Name: "Paris", Accidents: 42, Rank: 7, Share: 4.2, Class: "high",
		},
		TotalAccidents: 1000,
		Departments:    101,
	}

	html, err := renderDepartmentCard(info)
	if err != nil {
		t.Fatalf("renderDepartmentCard() failed: %v", err)
	}

	expectedContent := []string{
		`id="department-card"`,
		"75",
		"Paris",
		"42",
		"7 / 101",
		"4.2%",
		"class-high",
	}
	for _, content := range expectedContent {
		if !strings.Contains(html, content) {
			t.Errorf("expected HTML to contain %q", content)
		}
	}
}

func TestSSEHandlers_HandleDepartmentInfo(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/department-info", `{"department":"2A"}`)
	w := httptest.NewRecorder()

	handlers.HandleDepartmentInfo(w, req)

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
		t.Errorf("expected SSE content type, got %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "department-card") {
		t.Error("expected department-card fragment in stream")
	}
	if !strings.Contains(body, "Corse-du-Sud") {
		t.Error("expected the selected department name in stream")
	}
}

func TestSSEHandlers_HandleDepartmentInfo_DefaultsToParis(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/department-info", "")
	w := httptest.NewRecorder()

	handlers.HandleDepartmentInfo(w, req)

	if !strings.Contains(w.Body.String(), "Paris") {
		t.Error("missing department signal should fall back to Paris")
	}
}

func TestSSEHandlers_HandleDepartmentInfo_UnknownCode(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/department-info", `{"department":"999"}`)
	w := httptest.NewRecorder()

	handlers.HandleDepartmentInfo(w, req)

	if !strings.Contains(w.Body.String(), "Unknown department") {
		t.Error("unknown department should patch an error fragment")
	}
}

func TestSSEHandlers_HandleSeverity(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/severity", `{"profile":"majors"}`)
	w := httptest.NewRecorder()

	handlers.HandleSeverity(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "severityData") {
		t.Error("expected severityData signal patch in stream")
	}
	if !strings.Contains(body, "severity-content") {
		t.Error("expected severity table fragment in stream")
	}
	if !strings.Contains(body, "Killed") {
		t.Error("expected severity classes in the rendered table")
	}
}

func TestSSEHandlers_HandleSeverity_BadProfile(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/severity", `{"profile":"cyclists"}`)
	w := httptest.NewRecorder()

	handlers.HandleSeverity(w, req)

	if !strings.Contains(w.Body.String(), "Unknown victim profile") {
		t.Error("invalid profile should patch an error fragment")
	}
}

func TestSSEHandlers_HandleAgeHistogram(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/age-histogram", `{"population":"drivers"}`)
	w := httptest.NewRecorder()

	handlers.HandleAgeHistogram(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "histogramData") {
		t.Error("expected histogramData signal patch in stream")
	}
	if !strings.Contains(body, "drivers") {
		t.Error("expected the selected population in the signal payload")
	}
}

func TestSSEHandlers_HandleMonthlyTrend(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/monthly-trend", "")
	w := httptest.NewRecorder()

	handlers.HandleMonthlyTrend(w, req)

	if !strings.Contains(w.Body.String(), "trendData") {
		t.Error("expected trendData signal patch in stream")
	}
}

func TestSSEHandlers_HandleChoropleth(t *testing.T) {
	handlers := testSSEHandlers(t)

	req := signalsRequest(t, "/sse/choropleth", "")
	w := httptest.NewRecorder()

	handlers.HandleChoropleth(w, req)

	body := w.Body.String()
	if !strings.Contains(body, "mapData") {
		t.Error("expected mapData signal patch in stream")
	}
	if !strings.Contains(body, "very high") {
		t.Error("expected department classes in the signal payload")
	}
}
