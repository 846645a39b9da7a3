package stats

import (
	"fmt"
	"image/color"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"spacey/internal/model"
)

const (
	FitnessPlotFile  = "fitness.png"
	FitnessChartFile = "fitness.html"
)

var (
	bestColor = color.RGBA{R: 0xd6, G: 0x27, B: 0x28, A: 0xff}
	meanColor = color.RGBA{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff}
	minColor  = color.RGBA{R: 0x7f, G: 0x7f, B: 0x7f, A: 0xff}
)

// PlotFitnessHistory saves best, mean and min fitness per generation as an
// image. The format follows the extension of path.
func PlotFitnessHistory(path, title string, generations []model.GenerationRecord) error {
	if len(generations) == 0 {
		return fmt.Errorf("no generations to plot")
	}

	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Generation"
	p.Y.Label.Text = "Fitness"
	p.Add(plotter.NewGrid())

	best := make(plotter.XYs, len(generations))
	mean := make(plotter.XYs, len(generations))
	low := make(plotter.XYs, len(generations))
	for i, g := range generations {
		x := float64(g.Generation)
		best[i] = plotter.XY{X: x, Y: g.BestFitness}
		mean[i] = plotter.XY{X: x, Y: g.MeanFitness}
		low[i] = plotter.XY{X: x, Y: g.MinFitness}
	}

	series := []struct {
		label string
		pts   plotter.XYs
		color color.Color
	}{
		{"best", best, bestColor},
		{"mean", mean, meanColor},
		{"min", low, minColor},
	}
	for _, s := range series {
		line, err := plotter.NewLine(s.pts)
		if err != nil {
			return err
		}
		line.Color = s.color
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.label, line)
	}
	p.Legend.Top = true

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}

// RenderFitnessChart writes an interactive html page with the same series as
// PlotFitnessHistory.
func RenderFitnessChart(w io.Writer, title string, generations []model.GenerationRecord) error {
	x := make([]string, len(generations))
	best := make([]opts.LineData, len(generations))
	mean := make([]opts.LineData, len(generations))
	low := make([]opts.LineData, len(generations))
	for i, g := range generations {
		x[i] = fmt.Sprintf("%d", g.Generation)
		best[i] = opts.LineData{Value: g.BestFitness}
		mean[i] = opts.LineData{Value: g.MeanFitness}
		low[i] = opts.LineData{Value: g.MinFitness}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("%d generations", len(generations))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Generation", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Fitness", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(x).
		AddSeries("best", best).
		AddSeries("mean", mean).
		AddSeries("min", low)

	page := components.NewPage()
	page.AddCharts(line)
	return page.Render(w)
}
