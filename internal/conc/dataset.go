package conc

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"psmfeats/internal/model"
)

// DatasetFile is the on-disk form of a simulated run.
type DatasetFile struct {
	Params      model.SimParams        `json:"params"`
	ActiveStart []int                  `json:"active_start"`
	Species     map[string][][]float64 `json:"species"`
}

// Dataset is a loaded run ready for analysis.
type Dataset struct {
	Params      model.SimParams
	ActiveStart ActiveStart
	Store       *Grid
}

func ReadDataset(path string) (Dataset, error) {
	if strings.TrimSpace(path) == "" {
		return Dataset{}, fmt.Errorf("dataset path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Dataset{}, err
	}
	var file DatasetFile
	if err := json.Unmarshal(data, &file); err != nil {
		return Dataset{}, fmt.Errorf("decode dataset %s: %w", path, err)
	}
	return FromFile(file)
}

func FromFile(file DatasetFile) (Dataset, error) {
	if err := file.Params.Validate(); err != nil {
		return Dataset{}, err
	}
	birth, ok := file.Species[model.SpeciesBirth.String()]
	if !ok {
		return Dataset{}, fmt.Errorf("dataset is missing the %s channel", model.SpeciesBirth)
	}
	records := len(birth)
	cells := file.Params.Cells()
	grid := NewGrid(records, cells)

	names := make([]string, 0, len(file.Species))
	for name := range file.Species {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		species, err := model.ParseSpecies(name)
		if err != nil {
			return Dataset{}, err
		}
		rows := file.Species[name]
		if len(rows) != records {
			return Dataset{}, fmt.Errorf("species %s has %d records, expected %d", name, len(rows), records)
		}
		for r, row := range rows {
			if len(row) != cells {
				return Dataset{}, fmt.Errorf("species %s record %d has %d cells, expected %d", name, r, len(row), cells)
			}
			for c, v := range row {
				grid.Set(species, r, c, v)
			}
		}
	}

	starts := ActiveStart(append([]int(nil), file.ActiveStart...))
	if err := Check(grid, starts, file.Params); err != nil {
		return Dataset{}, err
	}
	return Dataset{Params: file.Params, ActiveStart: starts, Store: grid}, nil
}

// ToFile flattens the dataset. Only the listed species are exported; birth is always included.
func (d Dataset) ToFile(species ...model.Species) DatasetFile {
	file := DatasetFile{
		Params:      d.Params,
		ActiveStart: append([]int(nil), d.ActiveStart...),
		Species:     make(map[string][][]float64, len(species)+1),
	}
	export := append([]model.Species{model.SpeciesBirth}, species...)
	for _, s := range export {
		rows := make([][]float64, d.Store.Records())
		for r := range rows {
			row := make([]float64, d.Store.Cells())
			for c := range row {
				row[c] = d.Store.Value(s, r, c)
			}
			rows[r] = row
		}
		file.Species[s.String()] = rows
	}
	return file
}

func WriteDataset(path string, file DatasetFile) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("dataset path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(file)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}
