package visualization

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"hsibatch/pkg/batch"
)

// PlotComposition writes a stacked bar chart with one bar per batch and one
// stack segment per class id
func PlotComposition(batches []batch.Batch, outPath string) error {
	if len(batches) == 0 {
		return fmt.Errorf("no batches to plot")
	}

	comps := batch.Summarize(batches)
	classSet := make(map[int]struct{})
	for _, c := range comps {
		for _, id := range c.Classes {
			classSet[id] = struct{}{}
		}
	}
	classes := make([]int, 0, len(classSet))
	for id := range classSet {
		classes = append(classes, id)
	}
	sort.Ints(classes)

	p := plot.New()
	p.Title.Text = "Class composition per batch"
	p.X.Label.Text = "batch"
	p.Y.Label.Text = "samples"

	var below *plotter.BarChart
	for i, id := range classes {
		values := make(plotter.Values, len(comps))
		for b, c := range comps {
			for k, cid := range c.Classes {
				if cid == id {
					values[b] = float64(c.Counts[k])
				}
			}
		}
		bars, err := plotter.NewBarChart(values, vg.Points(8))
		if err != nil {
			return err
		}
		bars.LineStyle.Width = vg.Length(0)
		bars.Color = plotutil.Color(i)
		if below != nil {
			bars.StackOn(below)
		}
		p.Add(bars)
		p.Legend.Add(fmt.Sprintf("class %d", id), bars)
		below = bars
	}
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return err
	}
	return p.Save(10*vg.Inch, 5*vg.Inch, outPath)
}
