package input

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"gonum.org/v1/gonum/spatial/r3"
)

type networkDocument struct {
	Box          boxDocument           `json:"box"`
	AtomCount    int                   `json:"atom_count"`
	Bonds        [][2]int              `json:"bonds"`
	Chromophores []chromophoreDocument `json:"chromophores"`
}

type boxDocument struct {
	Lx float64 `json:"lx"`
	Ly float64 `json:"ly"`
	Lz float64 `json:"lz"`
}

type chromophoreDocument struct {
	ID                   int                `json:"id"`
	Position             [3]float64         `json:"position"`
	Species              string             `json:"species"`
	ReorganisationEnergy float64            `json:"reorganisation_energy"`
	VRHDelocalisation    float64            `json:"vrh_delocalisation"`
	RepresentativeAtom   *int               `json:"representative_atom"`
	Neighbors            []neighborDocument `json:"neighbors"`
}

type neighborDocument struct {
	ID    int    `json:"id"`
	Image [3]int `json:"image"`
	// TransferIntegral is null when the coupling could not be computed.
	TransferIntegral *float64 `json:"transfer_integral"`
	DeltaE           float64  `json:"delta_e"`
}

// Morphology is a loaded network plus the bonded-atom data needed to
// partition chromophores into molecules.
type Morphology struct {
	Network   *domain.Network
	AtomCount int
	Bonds     [][2]int
	// Representatives maps chromophore id to its representative atom. It is
	// empty when the document carries no atom data.
	Representatives map[int]int
}

// Molecules partitions the chromophores into molecules.
func (m Morphology) Molecules() (domain.MoleculeIDs, error) {
	if m.Network == nil {
		return nil, fmt.Errorf("morphology has no network")
	}
	if len(m.Representatives) != m.Network.Len() {
		return nil, apperrors.New(
			apperrors.CodeConfigMissingParameter,
			fmt.Sprintf("molecule partition needs a representative atom for all %d chromophores, have %d", m.Network.Len(), len(m.Representatives)),
		)
	}
	return domain.PartitionMolecules(m.AtomCount, m.Bonds, m.Representatives)
}

// LoadNetwork reads a network document from path.
func LoadNetwork(path string) (Morphology, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return Morphology{}, apperrors.New(apperrors.CodeConfigMissingParameter, "network path is required")
	}
	file, err := os.Open(trimmed)
	if err != nil {
		return Morphology{}, fmt.Errorf("open network file: %w", err)
	}
	defer file.Close()

	morphology, err := ReadNetwork(file)
	if err != nil {
		return Morphology{}, fmt.Errorf("load network %s: %w", trimmed, err)
	}
	return morphology, nil
}

// ReadNetwork decodes a network document.
func ReadNetwork(r io.Reader) (Morphology, error) {
	var doc networkDocument
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&doc); err != nil {
		return Morphology{}, apperrors.Wrap(apperrors.CodeNetworkInvalid, "decode network document", err)
	}

	chromophores := make([]domain.Chromophore, len(doc.Chromophores))
	representatives := make(map[int]int, len(doc.Chromophores))
	for i, entry := range doc.Chromophores {
		species, err := domain.ParseSpecies(entry.Species)
		if err != nil {
			return Morphology{}, apperrors.Wrap(
				apperrors.CodeNetworkInvalid,
				fmt.Sprintf("chromophore %d", entry.ID),
				err,
			)
		}
		neighbors := make([]domain.Neighbor, len(entry.Neighbors))
		for j, n := range entry.Neighbors {
			neighbors[j] = domain.Neighbor{
				ID:          n.ID,
				Image:       domain.Image(n.Image),
				Unavailable: n.TransferIntegral == nil,
				EnergyGap:   n.DeltaE,
			}
			if n.TransferIntegral != nil {
				neighbors[j].TransferIntegral = *n.TransferIntegral
			}
		}
		chromophores[i] = domain.Chromophore{
			ID:                   entry.ID,
			Position:             r3.Vec{X: entry.Position[0], Y: entry.Position[1], Z: entry.Position[2]},
			Species:              species,
			ReorganisationEnergy: entry.ReorganisationEnergy,
			VRHDelocalisation:    entry.VRHDelocalisation,
			Neighbors:            neighbors,
		}
		if entry.RepresentativeAtom != nil {
			representatives[entry.ID] = *entry.RepresentativeAtom
		}
	}

	network, err := domain.NewNetwork(chromophores, domain.Box{Lx: doc.Box.Lx, Ly: doc.Box.Ly, Lz: doc.Box.Lz})
	if err != nil {
		return Morphology{}, err
	}
	return Morphology{
		Network:         network,
		AtomCount:       doc.AtomCount,
		Bonds:           doc.Bonds,
		Representatives: representatives,
	}, nil
}
