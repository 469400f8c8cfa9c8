package model

import (
	"fmt"
	"strings"
)

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Gene indexes the per-gene slots of a FeatureRecord.
type Gene int

const (
	GeneHer1 Gene = iota
	GeneHer7
	GeneMespa
	GeneMespb
	GeneDeltaC
)

const NumGenes = 5

var geneNames = [NumGenes]string{"mh1", "mh7", "mespa", "mespb", "mdelta"}

func (g Gene) String() string {
	if g < 0 || int(g) >= NumGenes {
		return fmt.Sprintf("gene(%d)", int(g))
	}
	return geneNames[g]
}

// Species returns the concentration channel holding the gene's mRNA.
func (g Gene) Species() Species {
	return Species(int(g) + 1)
}

// AnteriorRestricted reports whether the gene only expresses in the anterior PSM.
func (g Gene) AnteriorRestricted() bool {
	return g == GeneMespa || g == GeneMespb
}

// AnteriorGenes is the iteration order of the anterior pass.
var AnteriorGenes = []Gene{GeneHer1, GeneHer7, GeneDeltaC, GeneMespa, GeneMespb}

// PosteriorGenes is the iteration order of the posterior pass.
var PosteriorGenes = []Gene{GeneHer1, GeneHer7, GeneDeltaC}

// Species indexes a channel of the concentration store.
type Species int

const (
	SpeciesBirth Species = iota
	SpeciesMH1
	SpeciesMH7
	SpeciesMespa
	SpeciesMespb
	SpeciesMDelta
	SpeciesPH1
	SpeciesPH7
	SpeciesPMespa
	SpeciesPMespb
	SpeciesPDelta
)

const NumSpecies = 11

var speciesNames = [NumSpecies]string{
	"birth", "mh1", "mh7", "mmespa", "mmespb", "mdelta",
	"ph1", "ph7", "pmespa", "pmespb", "pdelta",
}

func (s Species) String() string {
	if s < 0 || int(s) >= NumSpecies {
		return fmt.Sprintf("species(%d)", int(s))
	}
	return speciesNames[s]
}

func ParseSpecies(name string) (Species, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range speciesNames {
		if candidate == name {
			return Species(i), nil
		}
	}
	return 0, fmt.Errorf("unknown species: %s", name)
}

// MutantKind selects the rule set applied by an analysis pass.
type MutantKind string

const (
	MutantWildType  MutantKind = "wildtype"
	MutantDelta     MutantKind = "delta"
	MutantHer7Over  MutantKind = "her7over"
	MutantHer1Over  MutantKind = "her1over"
	MutantDAPT      MutantKind = "dapt"
	MutantMespaOver MutantKind = "mespaover"
	MutantMespbOver MutantKind = "mespbover"
)

var MutantKinds = []MutantKind{
	MutantWildType,
	MutantDelta,
	MutantHer7Over,
	MutantHer1Over,
	MutantDAPT,
	MutantMespaOver,
	MutantMespbOver,
}

func ParseMutantKind(name string) (MutantKind, error) {
	normalized := MutantKind(strings.ToLower(strings.TrimSpace(name)))
	switch normalized {
	case "", "wt", "wild_type", "wild-type":
		return MutantWildType, nil
	}
	for _, kind := range MutantKinds {
		if kind == normalized {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown mutant: %s", name)
}
