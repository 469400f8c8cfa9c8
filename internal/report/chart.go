package report

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// TrajectoryReport is a parsed sync trajectory report.
type TrajectoryReport struct {
	ComparedRows    int
	IntervalMinutes float64
	ColumnSteps     int
	Columns         [][]float64
}

// ParseTrajectories reads the format produced by Writer.Trajectories.
func ParseTrajectories(r io.Reader) (TrajectoryReport, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return TrajectoryReport{}, err
		}
		return TrajectoryReport{}, fmt.Errorf("trajectory report is empty")
	}
	header := splitFields(sc.Text(), ',')
	if len(header) != 3 {
		return TrajectoryReport{}, fmt.Errorf("trajectory header: expected 3 fields, got %d", len(header))
	}
	var rep TrajectoryReport
	var err error
	if rep.ComparedRows, err = strconv.Atoi(header[0]); err != nil {
		return TrajectoryReport{}, fmt.Errorf("trajectory header rows: %w", err)
	}
	if rep.IntervalMinutes, err = strconv.ParseFloat(header[1], 64); err != nil {
		return TrajectoryReport{}, fmt.Errorf("trajectory header interval: %w", err)
	}
	if rep.ColumnSteps, err = strconv.Atoi(header[2]); err != nil {
		return TrajectoryReport{}, fmt.Errorf("trajectory header column steps: %w", err)
	}

	for line := 2; sc.Scan(); line++ {
		fields := splitFields(sc.Text(), ',')
		values := make([]float64, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return TrajectoryReport{}, fmt.Errorf("trajectory line %d: %w", line, err)
			}
			values = append(values, v)
		}
		rep.Columns = append(rep.Columns, values)
	}
	return rep, sc.Err()
}

func splitFields(line string, sep rune) []string {
	return strings.FieldsFunc(strings.TrimSpace(line), func(r rune) bool { return r == sep })
}

var columnColors = []drawing.Color{
	chart.ColorBlue,
	chart.ColorGreen,
	chart.ColorRed,
	chart.ColorOrange,
	chart.ColorCyan,
	chart.ColorAlternateGray,
}

// RenderTrajectoryPNG draws one line per column, with minutes since the
// column's birth on the x axis. Columns with fewer than two points are skipped.
func RenderTrajectoryPNG(w io.Writer, rep TrajectoryReport, title string) error {
	step := rep.IntervalMinutes / 2
	if step <= 0 {
		step = 1
	}
	series := make([]chart.Series, 0, len(rep.Columns))
	for i, col := range rep.Columns {
		if len(col) < 2 {
			continue
		}
		xs := make([]float64, len(col))
		for j := range xs {
			xs[j] = float64(j) * step
		}
		color := columnColors[i%len(columnColors)]
		series = append(series, chart.ContinuousSeries{
			Name:    fmt.Sprintf("column %d", i),
			XValues: xs,
			YValues: append([]float64(nil), col...),
			Style:   chart.Style{StrokeColor: color, StrokeWidth: 1.5},
		})
	}
	if len(series) == 0 {
		return fmt.Errorf("trajectory report has no column with two or more points")
	}

	ch := chart.Chart{
		Title:      title,
		Width:      900,
		Height:     420,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      chart.XAxis{Name: "minutes"},
		YAxis:      chart.YAxis{Name: "sync", Range: &chart.ContinuousRange{Min: -1, Max: 1}},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return fmt.Errorf("render trajectory chart: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
