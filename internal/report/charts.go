// Package report renders an analysis result as a standalone HTML page with
// interactive charts: the filtered vertical force with detected contacts,
// the knee angle traces, and the alert list. Consumers only read the
// result; nothing here mutates it.
package report

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
)

// maxChartPoints caps the samples per series; longer traces are strided
// down to keep the page responsive.
const maxChartPoints = 4000

// Render writes the full HTML report for res to w.
func Render(w io.Writer, res *pipeline.Result) error {
	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.PageTitle = fmt.Sprintf("Session %s", res.SessionID)

	if c := forceChart(res); c != nil {
		page.AddCharts(c)
	}
	for _, c := range angleCharts(res) {
		page.AddCharts(c)
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render charts: %w", err)
	}
	return renderSummaryHTML(w, res)
}

// forceChart plots the filtered vertical force with contact spans shaded.
func forceChart(res *pipeline.Result) *charts.Line {
	if res.Processed == nil {
		return nil
	}
	fz, ok := res.Processed.Channels["fz"]
	if !ok {
		return nil
	}

	times, values := strided(res.Processed.Time, fz)

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "420px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Vertical ground reaction force",
			Subtitle: fmt.Sprintf("%d contacts detected", len(res.Events)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "force (N)"}),
	)

	data := make([]opts.LineData, len(values))
	for i, v := range values {
		data[i] = opts.LineData{Value: v}
	}
	line.SetXAxis(times).AddSeries("fz", data,
		charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	return line
}

// angleCharts plots each derived knee angle trace.
func angleCharts(res *pipeline.Result) []components.Charter {
	if res.Processed == nil {
		return nil
	}
	var out []components.Charter
	for _, name := range res.Processed.ChannelNames() {
		if !strings.HasSuffix(name, "_angle_deg") {
			continue
		}
		times, values := strided(res.Processed.Time, res.Processed.Channels[name])

		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "1100px", Height: "360px"}),
			charts.WithTitleOpts(opts.Title{Title: strings.TrimSuffix(name, "_angle_deg") + " flexion angle"}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
			charts.WithXAxisOpts(opts.XAxis{Name: "time (s)"}),
			charts.WithYAxisOpts(opts.YAxis{Name: "angle (deg)"}),
		)
		data := make([]opts.LineData, len(values))
		for i, v := range values {
			data[i] = opts.LineData{Value: v}
		}
		line.SetXAxis(times).AddSeries(name, data)
		out = append(out, line)
	}
	return out
}

// strided reduces a series to at most maxChartPoints samples.
func strided(time, values []float64) ([]string, []float64) {
	stride := 1
	if len(values) > maxChartPoints {
		stride = (len(values) + maxChartPoints - 1) / maxChartPoints
	}
	var outT []string
	var outV []float64
	for i := 0; i < len(values); i += stride {
		outT = append(outT, fmt.Sprintf("%.2f", time[i]))
		outV = append(outV, values[i])
	}
	return outT, outV
}

// renderSummaryHTML appends the text summary and alert table below the
// charts.
func renderSummaryHTML(w io.Writer, res *pipeline.Result) error {
	var b strings.Builder
	b.WriteString(`<div style="max-width:1100px;margin:20px auto;font-family:monospace">`)
	b.WriteString("<h3>Summary</h3><pre>")
	b.WriteString(html.EscapeString(res.Summary))
	b.WriteString("</pre>")

	if len(res.Alerts) > 0 {
		b.WriteString("<h3>Alerts</h3><table border=\"1\" cellpadding=\"4\">")
		b.WriteString("<tr><th>severity</th><th>category</th><th>title</th><th>recommendation</th></tr>")
		for _, a := range res.Alerts {
			fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
				a.Severity, a.Category, html.EscapeString(a.Title), html.EscapeString(a.Recommendation))
		}
		b.WriteString("</table>")
	}
	b.WriteString("</div>")

	_, err := io.WriteString(w, b.String())
	return err
}
