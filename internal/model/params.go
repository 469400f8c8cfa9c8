package model

import "fmt"

// SimParams describes the geometry and time granularity of a simulated PSM.
type SimParams struct {
	Height         int     `json:"height"`
	WidthTotal     int     `json:"width_total"`
	WidthInitial   int     `json:"width_initial"`
	WidthCurrent   int     `json:"width_current"`
	StepSize       float64 `json:"step_size"`
	BigGran        int     `json:"big_gran"`
	SmallGran      int     `json:"small_gran"`
	StepsSplit     int     `json:"steps_split"`
	StepsTilGrowth int     `json:"steps_til_growth"`
	StepsTotal     int     `json:"steps_total"`
}

func (p SimParams) Validate() error {
	switch {
	case p.Height <= 0:
		return fmt.Errorf("height must be positive, got %d", p.Height)
	case p.WidthTotal <= 0:
		return fmt.Errorf("width_total must be positive, got %d", p.WidthTotal)
	case p.WidthInitial < 0 || p.WidthInitial > p.WidthTotal:
		return fmt.Errorf("width_initial %d out of range [0,%d]", p.WidthInitial, p.WidthTotal)
	case p.WidthCurrent < 0 || p.WidthCurrent > p.WidthTotal:
		return fmt.Errorf("width_current %d out of range [0,%d]", p.WidthCurrent, p.WidthTotal)
	case p.StepSize <= 0:
		return fmt.Errorf("step_size must be positive, got %g", p.StepSize)
	case p.BigGran <= 0:
		return fmt.Errorf("big_gran must be positive, got %d", p.BigGran)
	case p.StepsSplit <= 0:
		return fmt.Errorf("steps_split must be positive, got %d", p.StepsSplit)
	}
	return nil
}

// Cells is the number of storage slots of the tissue grid.
func (p SimParams) Cells() int {
	return p.Height * p.WidthTotal
}

// RecordMinutes is the biological time between two stored records.
func (p SimParams) RecordMinutes() float64 {
	return p.StepSize * float64(p.BigGran)
}

// AnteriorTime converts a simulation step to a record index.
func (p SimParams) AnteriorTime(step int) int {
	return step / p.BigGran
}

// RecordAtMinute returns the record holding the given simulated minute.
func (p SimParams) RecordAtMinute(minute float64) int {
	return p.AnteriorTime(int(minute / p.StepSize))
}

// FullTime is the first record at which every PSM column holds cells.
func (p SimParams) FullTime() int {
	return p.FillTime(0)
}

// FillTime is the record at which the PSM lacks only the given number of columns.
func (p SimParams) FillTime(missing int) int {
	return p.AnteriorTime(p.StepsTilGrowth + (p.WidthTotal-p.WidthInitial-missing)*p.StepsSplit)
}

// ColumnRecords is the number of records between two new columns.
func (p SimParams) ColumnRecords() int {
	n := p.StepsSplit / p.BigGran
	if n < 1 {
		return 1
	}
	return n
}

// LifetimeRecords bounds the records a cell spends crossing the PSM.
func (p SimParams) LifetimeRecords() int {
	n := p.WidthTotal*p.StepsSplit/p.BigGran - 2
	if n < 0 {
		return 0
	}
	return n
}

// AnteriorStart is the first spatial offset of the anterior band.
func (p SimParams) AnteriorStart(fraction float64) int {
	return int(fraction * float64(p.WidthTotal))
}
