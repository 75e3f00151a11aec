package reporting

import (
	"errors"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"

	"breakout-lab/internal/risk"
)

const (
	chartWidthPx   = 1200
	equityHeight   = 420
	perTradeHeight = 260

	colorBackground = "#0f172a"
	colorText       = "#e2e8f0"
	colorMuted      = "#94a3b8"
	colorEquity     = "#38bdf8"
	colorWin        = "#22c55e"
	colorLoss       = "#ef4444"
)

// ErrNothingToChart is returned when a report has no resolved trades.
var ErrNothingToChart = errors.New("no trades to chart")

// EquityPoint is the cumulative R after one trade.
type EquityPoint struct {
	TradeID     string
	RealizedR   float64
	CumulativeR float64
}

// EquityCurve walks the report trades in exit order.
func EquityCurve(r *Report) []EquityPoint {
	points := make([]EquityPoint, 0, len(r.Trades))
	var cum float64
	for _, t := range r.Trades {
		cum = risk.RoundR(cum + t.RealizedR)
		points = append(points, EquityPoint{TradeID: t.TradeID, RealizedR: t.RealizedR, CumulativeR: cum})
	}
	return points
}

// RenderEquityChart writes an HTML page with the equity curve and the
// per-trade R bars.
func RenderEquityChart(r *Report, w io.Writer) error {
	points := EquityCurve(r)
	if len(points) == 0 {
		return ErrNothingToChart
	}

	xAxis := make([]string, len(points))
	equity := make([]opts.LineData, len(points))
	perTrade := make([]opts.BarData, len(points))
	for i, p := range points {
		xAxis[i] = p.TradeID
		equity[i] = opts.LineData{Value: p.CumulativeR}
		color := colorWin
		if p.RealizedR < 0 {
			color = colorLoss
		}
		perTrade[i] = opts.BarData{
			Value:     p.RealizedR,
			ItemStyle: &opts.ItemStyle{Color: color},
		}
	}

	subtitle := fmt.Sprintf("%d trades", len(points))
	if r.Aggregate != nil {
		subtitle = fmt.Sprintf("%d trades | win rate %.1f%% | total %.2fR | max drawdown %.2fR",
			r.Aggregate.TotalTrades, r.Aggregate.WinRate*100, r.Aggregate.TotalR, r.Aggregate.MaxDrawdownR)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(equityHeight)),
		charts.WithTitleOpts(opts.Title{
			Title:         fmt.Sprintf("%s equity (R)", r.Symbol),
			Subtitle:      subtitle,
			TitleStyle:    &opts.TextStyle{Color: colorText, FontSize: 18},
			SubtitleStyle: &opts.TextStyle{Color: colorMuted},
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{
			Scale:     opts.Bool(true),
			AxisLabel: &opts.AxisLabel{Color: colorMuted},
		}),
	)
	line.SetXAxis(xAxis)
	line.AddSeries("Cumulative R", equity,
		charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)}),
		charts.WithLineStyleOpts(opts.LineStyle{Color: colorEquity, Width: 2}),
	)

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(initOpts(perTradeHeight)),
		charts.WithTitleOpts(opts.Title{Title: "R per trade", TitleStyle: &opts.TextStyle{Color: colorText}}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Show: opts.Bool(false)}}),
		charts.WithYAxisOpts(opts.YAxis{AxisLabel: &opts.AxisLabel{Color: colorMuted}}),
	)
	bar.SetXAxis(xAxis)
	bar.AddSeries("R", perTrade)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(line, bar)
	return page.Render(w)
}

func initOpts(heightPx int) opts.Initialization {
	return opts.Initialization{
		Theme:           types.ThemeWesteros,
		Width:           fmt.Sprintf("%dpx", chartWidthPx),
		Height:          fmt.Sprintf("%dpx", heightPx),
		BackgroundColor: colorBackground,
	}
}
