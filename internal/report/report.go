// Package report renders the equity curve and trade history as a
// self-contained HTML page, optionally snapshotted to PNG through a
// headless browser.
package report

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"papertrade/internal/sink"
	"papertrade/internal/venue"
)

const (
	colorBackground    = "#060c1b"
	colorTextPrimary   = "#eceff4"
	colorTextSecondary = "#9ca3af"
	colorEquity        = "#3b82f6"
	colorCash          = "#fbbf24"
	colorWin           = "#34d399"
	colorLoss          = "#f87171"

	chartWidthPx   = 1400
	equityHeightPx = 520
	tradesHeightPx = 320
)

// Input collects everything one report draws.
type Input struct {
	Title  string
	Curve  []sink.EquitySample
	Trades []venue.FillRecord
}

// BuildHTML renders the report page. It fails only when there is nothing
// to draw.
func BuildHTML(input Input) ([]byte, error) {
	if len(input.Curve) == 0 {
		return nil, fmt.Errorf("equity curve is empty")
	}
	title := input.Title
	if title == "" {
		title = "paper trading session"
	}

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(buildEquityChart(title, input.Curve))
	if len(input.Trades) > 0 {
		page.AddCharts(buildTradesChart(input.Trades))
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteHTML renders the report and writes it to path.
func WriteHTML(input Input, path string) error {
	html, err := BuildHTML(input)
	if err != nil {
		return err
	}
	return os.WriteFile(path, html, 0o644)
}

func buildEquityChart(title string, curve []sink.EquitySample) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", equityHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:         title,
			Subtitle:      equitySubtitle(curve),
			Left:          "left",
			Top:           "10",
			TitleStyle:    &opts.TextStyle{Color: colorTextPrimary, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorTextSecondary},
		}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), TextStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider", XAxisIndex: []int{0}}),
		charts.WithXAxisOpts(opts.XAxis{
			Type:      "category",
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(false)},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.2)}},
		}),
	)
	line.SetSeriesOptions(
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
	)

	xAxis := make([]string, len(curve))
	equity := make([]opts.LineData, len(curve))
	cash := make([]opts.LineData, len(curve))
	for i, s := range curve {
		xAxis[i] = s.Timestamp.UTC().Format("01-02 15:04:05")
		equity[i] = opts.LineData{Value: round(s.Equity, 2)}
		cash[i] = opts.LineData{Value: round(s.Cash, 2)}
	}
	line.SetXAxis(xAxis)
	line.AddSeries("Equity", equity, charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}))
	line.AddSeries("Cash", cash, charts.WithLineStyleOpts(opts.LineStyle{Color: colorCash, Width: 1}))
	return line
}

func buildTradesChart(trades []venue.FillRecord) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", tradesHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "Realized PnL per fill", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextPrimary}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Color: colorTextSecondary}}),
		charts.WithYAxisOpts(opts.YAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSecondary},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSecondary, Opacity: opts.Float(0.15)}},
		}),
	)

	xAxis := make([]string, len(trades))
	data := make([]opts.BarData, len(trades))
	for i, tr := range trades {
		xAxis[i] = fmt.Sprintf("%s %s %s", tr.Timestamp.UTC().Format("15:04:05"), tr.Side, tr.Symbol)
		color := colorLoss
		if tr.RealizedDelta >= 0 {
			color = colorWin
		}
		data[i] = opts.BarData{
			Value:     round(tr.RealizedDelta, 4),
			ItemStyle: &opts.ItemStyle{Color: color, Opacity: opts.Float(0.8)},
		}
	}
	bar.SetXAxis(xAxis)
	bar.AddSeries("Realized", data)
	return bar
}

func equitySubtitle(curve []sink.EquitySample) string {
	first := curve[0]
	last := curve[len(curve)-1]
	ret := 0.0
	if first.Equity > 0 {
		ret = (last.Equity - first.Equity) / first.Equity * 100
	}
	return fmt.Sprintf("%.2f -> %.2f USD (%.2f%%) over %d samples",
		first.Equity, last.Equity, ret, len(curve))
}

func round(val float64, decimals int) float64 {
	if decimals <= 0 {
		return math.Round(val)
	}
	scale := math.Pow10(decimals)
	return math.Round(val*scale) / scale
}

var (
	headlessOnce sync.Once
	headlessErr  error
)

// EnsureHeadlessAvailable probes for a usable headless browser once.
func EnsureHeadlessAvailable(ctx context.Context) error {
	headlessOnce.Do(func() {
		targetCtx := ctx
		if targetCtx == nil {
			targetCtx = context.Background()
		}
		parent, cancel := chromedp.NewContext(targetCtx)
		if cancel != nil {
			defer cancel()
		}
		headlessErr = chromedp.Run(parent)
	})
	return headlessErr
}

// RenderPNG snapshots the report HTML through a headless browser.
func RenderPNG(ctx context.Context, input Input) ([]byte, error) {
	if err := EnsureHeadlessAvailable(ctx); err != nil {
		return nil, err
	}
	html, err := BuildHTML(input)
	if err != nil {
		return nil, err
	}
	height := equityHeightPx
	if len(input.Trades) > 0 {
		height += tradesHeightPx
	}
	return renderHTMLToPNG(ctx, html, chartWidthPx, height)
}

func renderHTMLToPNG(ctx context.Context, html []byte, width, height int) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	parent, cancel := chromedp.NewContext(ctx)
	defer cancel()

	timeoutCtx, cancelTimeout := context.WithTimeout(parent, 20*time.Second)
	defer cancelTimeout()

	dataURI := "data:text/html;base64," + base64.StdEncoding.EncodeToString(html)
	var screenshot []byte
	tasks := chromedp.Tasks{
		chromedp.EmulateViewport(int64(width), int64(height)),
		chromedp.Navigate(dataURI),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(1500 * time.Millisecond),
		chromedp.FullScreenshot(&screenshot, 0),
	}
	if err := chromedp.Run(timeoutCtx, tasks...); err != nil {
		return nil, err
	}
	return screenshot, nil
}
