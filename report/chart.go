package report

import (
	"fmt"
	"io"
	"strconv"

	"filterproof/session"
	"filterproof/tolerance"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

func toBarItems(vals []int) []opts.BarData {
	out := make([]opts.BarData, len(vals))
	for i, v := range vals {
		out[i] = opts.BarData{Value: v}
	}
	return out
}

// DeviationChart plots pixel counts per absolute deviation. Bins past the
// largest observed deviation are left out.
func DeviationChart(title string, hist [256]int, st tolerance.Summary) *charts.Bar {
	last := int(st.Max)
	labels := make([]string, last+1)
	for i := range labels {
		labels[i] = strconv.Itoa(i)
	}
	bar := charts.NewBar()
	subtitle := fmt.Sprintf("max=%d, l1=%d, mean=%.4f", st.Max, st.L1, st.Mean)
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: subtitle}),
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "1200px", Height: "600px"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "|output - reference|"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "pixels"}),
	)
	bar.SetXAxis(labels).
		AddSeries("count", toBarItems(hist[:last+1])).
		SetSeriesOptions(charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}))
	return bar
}

// RenderHistograms writes one HTML page with a chart per result.
func RenderHistograms(w io.Writer, results []*session.Result) error {
	page := components.NewPage()
	for i, r := range results {
		page.AddCharts(DeviationChart(fmt.Sprintf("channel %d deviation", i), r.Histogram, r.Stats))
	}
	return page.Render(w)
}
