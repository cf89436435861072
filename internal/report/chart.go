package report

import (
	"bytes"
	"html/template"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// ChartAssetURL is the echarts script the rendered snippet depends on.
const ChartAssetURL = "https://go-echarts.github.io/go-echarts-assets/assets/echarts.min.js"

const (
	colorPresent = "#4CAF50"
	colorAbsent  = "#F44336"
)

// PieChart builds the present/absent distribution chart.
func PieChart(s *Summary, theme string) *charts.Pie {
	boolPtr := func(b bool) *bool { return &b }

	init := opts.Initialization{Width: "100%", Height: "360px"}
	if theme == "dark" {
		init.Theme = "dark"
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(init),
		charts.WithTitleOpts(opts.Title{Title: "Attendance Distribution"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: boolPtr(true)}),
		charts.WithLegendOpts(opts.Legend{Show: boolPtr(true), Bottom: "0"}),
	)

	pie.AddSeries("Attendance", []opts.PieData{
		{Name: "Present", Value: len(s.Present), ItemStyle: &opts.ItemStyle{Color: colorPresent}},
		{Name: "Absent", Value: len(s.Absent), ItemStyle: &opts.ItemStyle{Color: colorAbsent}},
	}).SetSeriesOptions(
		charts.WithLabelOpts(opts.Label{Show: boolPtr(true), Formatter: "{b}: {d}%"}),
	)

	return pie
}

var snippetTmpl = template.Must(template.New("snippet").Parse(`{{.Element}} {{.Script}}`))

// RenderPieChart renders the chart as an HTML fragment for embedding in a page.
func RenderPieChart(s *Summary, theme string) (template.HTML, error) {
	snippet := PieChart(s, theme).RenderSnippet()

	data := struct {
		Element template.HTML
		Script  template.HTML
	}{
		Element: template.HTML(snippet.Element), //nolint:gosec // generated by go-echarts
		Script:  template.HTML(snippet.Script),  //nolint:gosec // generated by go-echarts
	}

	var buf bytes.Buffer
	if err := snippetTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil //nolint:gosec // assembled from trusted snippet
}
