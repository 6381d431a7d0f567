package handlers

import (
	"encoding/json"
	"html/template"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/RemyAM27/projet-dashboard/internal/models"
	"github.com/RemyAM27/projet-dashboard/internal/services"
)

var departmentCardTemplate = template.Must(template.New("departmentCard").Parse(`
<div id="department-card">
<h3>{{.Code}} — {{.Name}}</h3>
<dl class="kpi-grid">
<dt>Accidents</dt><dd>{{.Accidents}}</dd>
<dt>Rank</dt><dd>{{.Rank}} / {{.Departments}}</dd>
<dt>Share of total</dt><dd>{{printf "%.1f" .Share}}%</dd>
<dt>Level</dt><dd><span class="class-badge class-{{.Class}}">{{.Class}}</span></dd>
</dl>
</div>`))

var severityTableTemplate = template.Must(template.New("severityTable").Parse(`
<div id="severity-content">
<table class="modern-table">
<thead><tr><th>Severity</th><th>Victims</th><th>Share</th></tr></thead>
<tbody>
{{range .Counts}}<tr>
<td>{{.Severity}}</td>
<td>{{.Victims}}</td>
<td><strong>{{printf "%.1f" .Percent}}%</strong></td>
</tr>{{end}}
</tbody>
</table>
<p class="total-line">{{.Total}} victims</p>
</div>`))

type SSEHandlers struct {
	charts services.Charts
	logger *slog.Logger
}

func NewSSEHandlers(charts services.Charts, logger *slog.Logger) *SSEHandlers {
	return &SSEHandlers{charts: charts, logger: logger}
}

// filterSignals are the browser-side signals datastar sends back on
// every filter interaction.
type filterSignals struct {
	Department string `json:"department"`
	Profile    string `json:"profile"`
	Population string `json:"population"`
}

func readSignals(r *http.Request) filterSignals {
	var signals filterSignals
	// Missing or malformed signals fall back to the unfiltered view.
	_ = datastar.ReadSignals(r, &signals)
	return signals
}

// HandleDepartmentInfo re-renders the department search card for the
// department selected in the browser.
func (h *SSEHandlers) HandleDepartmentInfo(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	signals := readSignals(r)

	code := signals.Department
	if code == "" {
		code = "75"
	}

	info, err := h.charts.DepartmentInfo(r.Context(), code)
	if err != nil {
		h.logger.Warn("department info", "code", code, "error", err)
		sse.PatchElements(`<div id="department-card">Unknown department</div>`)
		return
	}

	html, err := renderDepartmentCard(info)
	if err != nil {
		h.logger.Error("render department card", "error", err)
		return
	}
	sse.PatchElements(html)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

func renderDepartmentCard(info *models.DepartmentInfo) (string, error) {
	var buf strings.Builder
	err := departmentCardTemplate.Execute(&buf, info)
	return buf.String(), err
}

// HandleSeverity re-renders the donut for the selected victim profile:
// both the table fragment and the chart data signal.
func (h *SSEHandlers) HandleSeverity(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	signals := readSignals(r)

	profile, err := services.ParseProfile(signals.Profile)
	if err != nil {
		h.logger.Warn("severity donut", "profile", signals.Profile, "error", err)
		sse.PatchElements(`<div id="severity-content">Unknown victim profile</div>`)
		return
	}

	dist, err := h.charts.SeverityDistribution(r.Context(), profile)
	if err != nil {
		h.logger.Error("severity distribution", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{"severityData": dist})
	if err != nil {
		h.logger.Error("marshal severity data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	var buf strings.Builder
	if err := severityTableTemplate.Execute(&buf, dist); err != nil {
		h.logger.Error("render severity table", "error", err)
		return
	}
	sse.PatchElements(buf.String())

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleAgeHistogram pushes bucketed ages for the selected population
// as a chart data signal.
func (h *SSEHandlers) HandleAgeHistogram(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)
	signals := readSignals(r)

	population, err := services.ParsePopulation(signals.Population)
	if err != nil {
		h.logger.Warn("age histogram", "population", signals.Population, "error", err)
		sse.PatchElements(`<div id="histogram-content">Unknown population</div>`)
		return
	}

	hist, err := h.charts.AgeHistogram(r.Context(), population)
	if err != nil {
		h.logger.Error("age histogram", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{"histogramData": hist})
	if err != nil {
		h.logger.Error("marshal histogram data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="histogram-content">Histogram data loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleMonthlyTrend pushes the twelve-point trend line.
func (h *SSEHandlers) HandleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	trend, err := h.charts.MonthlyTrend(r.Context())
	if err != nil {
		h.logger.Error("monthly trend", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{"trendData": trend})
	if err != nil {
		h.logger.Error("marshal trend data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="trend-content">Monthly trend loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}

// HandleChoropleth pushes the per-department counts and classes that
// color the map.
func (h *SSEHandlers) HandleChoropleth(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	counts, err := h.charts.DepartmentCounts(r.Context())
	if err != nil {
		h.logger.Error("department counts", "error", err)
		return
	}

	jsonData, err := json.Marshal(map[string]any{"mapData": counts})
	if err != nil {
		h.logger.Error("marshal map data", "error", err)
		return
	}
	sse.PatchSignals(jsonData)

	sse.PatchElements(`<div id="map-content">Map data loaded</div>`)

	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
