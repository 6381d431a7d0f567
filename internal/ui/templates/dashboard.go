// Package templates renders the dashboard page shell. The page is
// static: every figure loads and refreshes itself through the SSE
// endpoints, so there is nothing to re-render server side except the
// fragments the handlers patch in.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/RemyAM27/projet-dashboard/internal/geo"
)

// Dashboard is the single page of the application.
func Dashboard() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageTop); err != nil {
			return err
		}
		if err := departmentSelect().Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, pageBottom)
		return err
	})
}

// departmentSelect lists the reference geography in canonical order so
// the search covers departments with zero accidents too.
func departmentSelect() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<select data-bind-department data-on-change="@get('/sse/department-info')">`); err != nil {
			return err
		}
		for _, code := range geo.Codes() {
			selected := ""
			if code == "75" {
				selected = " selected"
			}
			option := fmt.Sprintf(`<option value=%q%s>%s - %s</option>`,
				code, selected, code, templ.EscapeString(geo.Name(code)))
			if _, err := io.WriteString(w, option); err != nil {
				return err
			}
		}
		_, err := io.WriteString(w, `</select>`)
		return err
	})
}

const pageTop = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Road accidents in France — 2024</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"></script>
<script src="https://cdn.jsdelivr.net/npm/chart.js@4.4.7/dist/chart.umd.min.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 0 auto; max-width: 1100px; padding: 1rem; background: #fff; color: #111827; }
h1 { color: #b91c1c; text-align: center; }
section { background: #fff; border: 1px solid #e5e7eb; border-radius: 12px; padding: 10px; margin-bottom: 1rem; }
.modern-table { width: 100%; border-collapse: collapse; }
.modern-table th, .modern-table td { padding: 6px 10px; border-bottom: 1px solid #e5e7eb; text-align: left; }
.kpi-grid { display: grid; grid-template-columns: auto auto; gap: 4px 16px; }
.class-badge { padding: 2px 8px; border-radius: 6px; background: #f3f4f6; }
select { max-width: 520px; margin: 6px 0 12px 0; }
.total-line { color: #6b7280; font-size: 0.9rem; }
</style>
</head>
<body data-signals="{department: '75', profile: 'all', population: 'all'}">
<h1>Road accidents in France — 2024</h1>

<section id="map-section" data-on-load="@get('/sse/choropleth')">
<h2>Accidents by department</h2>
<div id="map-content">Loading map data…</div>
</section>

<section id="department-section">
<h2>Department search</h2>
`

const pageBottom = `
<div id="department-card" data-on-load="@get('/sse/department-info')">Loading…</div>
</section>

<section id="histogram-section">
<h2>Victims by age</h2>
<select data-bind-population data-on-change="@get('/sse/age-histogram')">
<option value="all">All victims</option>
<option value="drivers">Drivers</option>
<option value="killed">Killed</option>
</select>
<div id="histogram-content" data-on-load="@get('/sse/age-histogram')">Loading…</div>
</section>

<section id="severity-section">
<h2>Severity</h2>
<select data-bind-profile data-on-change="@get('/sse/severity')">
<option value="all">All victims</option>
<option value="drivers">Drivers</option>
<option value="passengers">Passengers</option>
<option value="majors">Majors</option>
<option value="minors">Minors</option>
</select>
<div id="severity-content" data-on-load="@get('/sse/severity')">Loading…</div>
</section>

<section id="trend-section" data-on-load="@get('/sse/monthly-trend')">
<h2>Monthly trend</h2>
<div id="trend-content">Loading…</div>
</section>

</body>
</html>
`
