package domain

import (
	"fmt"
	"math"
	"strings"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// Species identifies the electronic role of a chromophore.
type Species uint8

const (
	SpeciesUnknown Species = iota
	SpeciesDonor
	SpeciesAcceptor
)

// ParseSpecies maps a case-insensitive species label to a Species.
func ParseSpecies(value string) (Species, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "donor":
		return SpeciesDonor, nil
	case "acceptor":
		return SpeciesAcceptor, nil
	default:
		return SpeciesUnknown, apperrors.WithMetadata(
			apperrors.CodeNetworkInvalid,
			fmt.Sprintf("unknown chromophore species %q", value),
			map[string]string{"species": value},
		)
	}
}

func (s Species) String() string {
	switch s {
	case SpeciesDonor:
		return "donor"
	case SpeciesAcceptor:
		return "acceptor"
	default:
		return "unknown"
	}
}

// Image is a periodic-image offset in units of box lengths.
type Image [3]int

// Add returns the componentwise sum of two offsets.
func (i Image) Add(other Image) Image {
	return Image{i[0] + other[0], i[1] + other[1], i[2] + other[2]}
}

// Box holds the periodic simulation box edge lengths, in Å.
type Box struct {
	Lx, Ly, Lz float64
}

// Unwrap converts an image offset into a real-space translation.
func (b Box) Unwrap(image Image) r3.Vec {
	return r3.Vec{
		X: float64(image[0]) * b.Lx,
		Y: float64(image[1]) * b.Ly,
		Z: float64(image[2]) * b.Lz,
	}
}

func (b Box) valid() bool {
	return b.Lx > 0 && b.Ly > 0 && b.Lz > 0
}

// Neighbor is one hop target of a chromophore.
type Neighbor struct {
	ID    int
	Image Image
	// TransferIntegral is the electronic coupling in eV. It is meaningless
	// when Unavailable is set.
	TransferIntegral float64
	// Unavailable marks a pair whose coupling could not be computed. Such
	// pairs are never hop candidates.
	Unavailable bool
	// EnergyGap is ΔE between source and neighbor, in eV.
	EnergyGap float64
}

// Chromophore is one localisation site of the network.
type Chromophore struct {
	ID                   int
	Position             r3.Vec
	Species              Species
	ReorganisationEnergy float64 // eV
	VRHDelocalisation    float64 // m
	Neighbors            []Neighbor
}

// Network is the immutable chromophore graph shared by all workers.
type Network struct {
	chromophores []Chromophore
	box          Box
}

// NewNetwork validates and copies chromophores into a read-only network.
// Chromophore ids must be dense and match their slice index.
func NewNetwork(chromophores []Chromophore, box Box) (*Network, error) {
	if !box.valid() {
		return nil, apperrors.New(apperrors.CodeNetworkInvalid, "box lengths must be positive")
	}
	if len(chromophores) == 0 {
		return nil, apperrors.New(apperrors.CodeNetworkInvalid, "network has no chromophores")
	}
	copied := make([]Chromophore, len(chromophores))
	for i, chromo := range chromophores {
		if chromo.ID != i {
			return nil, apperrors.New(
				apperrors.CodeNetworkInvalid,
				fmt.Sprintf("chromophore at index %d has id %d", i, chromo.ID),
			)
		}
		if chromo.Species != SpeciesDonor && chromo.Species != SpeciesAcceptor {
			return nil, apperrors.New(
				apperrors.CodeNetworkInvalid,
				fmt.Sprintf("chromophore %d has no species", i),
			)
		}
		if !positiveFinite(chromo.ReorganisationEnergy) {
			return nil, apperrors.WithMetadata(
				apperrors.CodeNetworkInvalid,
				fmt.Sprintf("chromophore %d has reorganisation energy %g, want a positive value", i, chromo.ReorganisationEnergy),
				map[string]string{"chromophore": fmt.Sprint(i)},
			)
		}
		for _, neighbor := range chromo.Neighbors {
			if neighbor.ID < 0 || neighbor.ID >= len(chromophores) {
				return nil, apperrors.New(
					apperrors.CodeNetworkInvalid,
					fmt.Sprintf("chromophore %d references unknown neighbor %d", i, neighbor.ID),
				)
			}
		}
		chromo.Neighbors = append([]Neighbor(nil), chromo.Neighbors...)
		copied[i] = chromo
	}
	return &Network{chromophores: copied, box: box}, nil
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 1)
}

// Len returns the number of chromophores.
func (n *Network) Len() int {
	if n == nil {
		return 0
	}
	return len(n.chromophores)
}

// Box returns the periodic box.
func (n *Network) Box() Box {
	return n.box
}

// Chromophore returns the chromophore with the given id. Callers must not
// mutate the returned value.
func (n *Network) Chromophore(id int) *Chromophore {
	return &n.chromophores[id]
}

// StartCandidates lists chromophore ids of the given species, in id order.
// With excludeLast the highest id is never offered, reproducing the
// historical [0, n-1) start draw.
func (n *Network) StartCandidates(species Species, excludeLast bool) []int {
	limit := len(n.chromophores)
	if excludeLast {
		limit--
	}
	ids := make([]int, 0, limit)
	for id := 0; id < limit; id++ {
		if n.chromophores[id].Species == species {
			ids = append(ids, id)
		}
	}
	return ids
}
