package trail

import (
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/cxd309/lawnmower-engine/internal/geometry"
	"github.com/cxd309/lawnmower-engine/internal/odometry"
	"github.com/cxd309/lawnmower-engine/internal/workspace"
)

// ErrEmpty is returned when plotting a trail with no points.
var ErrEmpty = errors.New("trail: no points to plot")

var (
	pathColor    = color.RGBA{B: 255, A: 255}
	robotColor   = color.RGBA{R: 255, G: 140, A: 255}
	fenceColor   = color.RGBA{R: 128, G: 128, B: 128, A: 255}
	defaultWidth = 6 * vg.Inch
)

// PlotOptions controls how a trail is rendered.
type PlotOptions struct {
	Title     string
	Width     vg.Length // defaults to 6in
	Height    vg.Length // defaults to Width
	Workspace workspace.Bounds
	// Pose, when set, marks the final robot position and heading.
	Pose *odometry.Pose
	// HeadingLength is the length of the heading marker in metres.
	HeadingLength float64
}

// Plot renders the trail to path. The image format follows the file extension
// (.png, .svg, .pdf, ...).
func (t *Trail) Plot(path string, opts PlotOptions) error {
	if t.Len() == 0 {
		return ErrEmpty
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "x (m)"
	p.Y.Label.Text = "y (m)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, t.Len())
	for i, v := range t.points {
		pts[i] = plotter.XY{X: v.X, Y: v.Y}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("creating path line: %w", err)
	}
	line.LineStyle.Color = pathColor
	line.LineStyle.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("path", line)

	if !opts.Workspace.IsZero() {
		b := opts.Workspace
		fence, err := plotter.NewLine(plotter.XYs{
			{X: b.XMin, Y: b.YMin}, {X: b.XMax, Y: b.YMin},
			{X: b.XMax, Y: b.YMax}, {X: b.XMin, Y: b.YMax},
			{X: b.XMin, Y: b.YMin},
		})
		if err != nil {
			return fmt.Errorf("creating workspace outline: %w", err)
		}
		fence.LineStyle.Color = fenceColor
		fence.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(fence)
		p.Legend.Add("workspace", fence)
	}

	if opts.Pose != nil {
		if err := addRobot(p, *opts.Pose, opts.HeadingLength); err != nil {
			return err
		}
	}

	w := opts.Width
	if w <= 0 {
		w = defaultWidth
	}
	h := opts.Height
	if h <= 0 {
		h = w
	}
	if err := p.Save(w, h, path); err != nil {
		return fmt.Errorf("saving trail plot: %w", err)
	}
	return nil
}

// addRobot marks the robot position with a dot and its heading with a short line.
func addRobot(p *plot.Plot, pose odometry.Pose, length float64) error {
	if length <= 0 {
		length = 0.5
	}
	pos := pose.Position()
	tip := geometry.Heading(pose.Theta)

	dot, err := plotter.NewScatter(plotter.XYs{{X: pos.X, Y: pos.Y}})
	if err != nil {
		return fmt.Errorf("creating robot marker: %w", err)
	}
	dot.GlyphStyle.Color = robotColor
	dot.GlyphStyle.Radius = vg.Points(4)
	dot.GlyphStyle.Shape = draw.CircleGlyph{}

	heading, err := plotter.NewLine(plotter.XYs{
		{X: pos.X, Y: pos.Y},
		{X: pos.X + length*tip.X, Y: pos.Y + length*tip.Y},
	})
	if err != nil {
		return fmt.Errorf("creating heading marker: %w", err)
	}
	heading.LineStyle.Color = robotColor
	heading.LineStyle.Width = vg.Points(2)

	p.Add(dot, heading)
	p.Legend.Add("robot", dot)
	return nil
}
