package report

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"psmfeats/internal/features"
	"psmfeats/internal/model"
)

const (
	featurePeriod    = "period"
	featureAmplitude = "amplitude"
	featureSync      = "sync"
)

// FileName is the report name of one feature of one gene.
func FileName(setNum int, feature string, gene model.Gene, section string) string {
	return fmt.Sprintf("set_%d_%s_%s_%s.feats", setNum, feature, gene, section)
}

// Writer renders analysis diagnostics into .feats reports.
type Writer struct {
	Sink   Sink
	SetNum int
	Params model.SimParams
}

// Write stores every report derivable from diag and returns their names.
func (w Writer) Write(ctx context.Context, diag features.Diagnostics) ([]string, error) {
	if w.Sink == nil {
		return nil, fmt.Errorf("report sink is required")
	}
	var names []string
	put := func(name string, data []byte) error {
		if err := w.Sink.Put(ctx, name, data); err != nil {
			return fmt.Errorf("write report %s: %w", name, err)
		}
		names = append(names, name)
		return nil
	}

	for _, g := range model.AnteriorGenes {
		cells, ok := diag.Anterior[g]
		if !ok {
			continue
		}
		periods, amplitudes := w.Anterior(cells)
		if err := put(FileName(w.SetNum, featurePeriod, g, "ant"), periods); err != nil {
			return names, err
		}
		if err := put(FileName(w.SetNum, featureAmplitude, g, "ant"), amplitudes); err != nil {
			return names, err
		}
	}
	for _, g := range model.PosteriorGenes {
		cells, ok := diag.Posterior[g]
		if !ok {
			continue
		}
		periods, amplitudes := w.Posterior(cells)
		if err := put(FileName(w.SetNum, featurePeriod, g, "post"), periods); err != nil {
			return names, err
		}
		if err := put(FileName(w.SetNum, featureAmplitude, g, "post"), amplitudes); err != nil {
			return names, err
		}
	}
	if len(diag.SyncTrajectories) > 0 {
		data := w.Trajectories(diag.SyncTrajectories, diag.SyncInterval)
		if err := put(FileName(w.SetNum, featureSync, model.GeneHer1, "ant"), data); err != nil {
			return names, err
		}
	}
	return names, nil
}

// Anterior renders the period and amplitude reports: a height,width_total
// header followed by a positions line and a values line per cell.
func (w Writer) Anterior(cells []features.CellReport) (periods, amplitudes []byte) {
	var pb, ab bytes.Buffer
	fmt.Fprintf(&pb, "%d,%d\n", w.Params.Height, w.Params.WidthTotal)
	fmt.Fprintf(&ab, "%d,%d\n", w.Params.Height, w.Params.WidthTotal)
	for _, c := range cells {
		writeInts(&pb, c.PeriodPositions)
		writeFloats(&pb, c.Periods, ',')
		writeInts(&ab, c.AmplitudePositions)
		writeFloats(&ab, c.Amplitudes, ',')
	}
	return pb.Bytes(), ab.Bytes()
}

// Posterior renders one space-separated line per posterior cell under a
// height,width_initial header.
func (w Writer) Posterior(cells []features.PosteriorReport) (periods, amplitudes []byte) {
	var pb, ab bytes.Buffer
	fmt.Fprintf(&pb, "%d,%d\n", w.Params.Height, w.Params.WidthInitial)
	fmt.Fprintf(&ab, "%d,%d\n", w.Params.Height, w.Params.WidthInitial)
	for _, c := range cells {
		writeFloats(&pb, c.Periods, ' ')
		writeFloats(&ab, c.Amplitudes, ' ')
	}
	return pb.Bytes(), ab.Bytes()
}

// Trajectories renders one line per analyzed column after the
// compared-rows,interval,column-steps header.
func (w Writer) Trajectories(lines [][]float64, intervalMinutes float64) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "%d,%s,%d\n", w.Params.Height-1, formatFloat(intervalMinutes), w.Params.StepsSplit*w.Params.SmallGran)
	for _, line := range lines {
		writeFloats(&b, line, ',')
	}
	return b.Bytes()
}

func writeInts(b *bytes.Buffer, values []int) {
	for _, v := range values {
		b.WriteString(strconv.Itoa(v))
		b.WriteByte(',')
	}
	b.WriteByte('\n')
}

func writeFloats(b *bytes.Buffer, values []float64, sep byte) {
	for _, v := range values {
		b.WriteString(formatFloat(v))
		b.WriteByte(sep)
	}
	b.WriteByte('\n')
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}
