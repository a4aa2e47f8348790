package metrics

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// History keeps the held-out accuracy of every evaluated epoch of one run.
type History struct {
	RunID  string
	points plotter.XYs
}

// NewHistory starts an empty history tagged with a fresh run id.
func NewHistory() *History {
	return &History{RunID: uuid.NewString()}
}

// Add records the accuracy reached at the end of epoch.
func (h *History) Add(epoch int, accuracy float64) {
	h.points = append(h.points, plotter.XY{X: float64(epoch), Y: accuracy})
}

// Len returns the number of recorded epochs.
func (h *History) Len() int { return len(h.points) }

// Best returns the epoch with the highest accuracy; the earliest wins ties.
// ok is false for an empty history.
func (h *History) Best() (epoch int, accuracy float64, ok bool) {
	for i, pt := range h.points {
		if i == 0 || pt.Y > accuracy {
			epoch, accuracy = int(pt.X), pt.Y
		}
	}
	return epoch, accuracy, len(h.points) > 0
}

// WritePlot draws accuracy against epoch and saves it to path. The image
// format follows the file extension (png, svg, pdf, ...).
func (h *History) WritePlot(path string) error {
	if len(h.points) == 0 {
		return errors.New("metrics: no epochs to plot")
	}
	p := plot.New()
	p.Title.Text = "Held-out accuracy (run " + shortID(h.RunID) + ")"
	p.X.Label.Text = "epoch"
	p.Y.Label.Text = "accuracy"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())
	if err := plotutil.AddLinePoints(p, "accuracy", h.points); err != nil {
		return errors.Wrap(err, "metrics: build plot")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "metrics: create %s", dir)
		}
	}
	if err := p.Save(8*vg.Inch, 4*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "metrics: save plot %s", path)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
