package input

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
)

const networkJSON = `{
  "box": {"lx": 10, "ly": 20, "lz": 30},
  "atom_count": 4,
  "bonds": [[0, 1], [2, 3]],
  "chromophores": [
    {
      "id": 0, "position": [0, 0, 0], "species": "donor",
      "reorganisation_energy": 0.3, "vrh_delocalisation": 2e-10, "representative_atom": 0,
      "neighbors": [
        {"id": 1, "image": [0, 0, 0], "transfer_integral": 0.05, "delta_e": 0.01},
        {"id": 2, "image": [1, 0, 0], "transfer_integral": null, "delta_e": 0}
      ]
    },
    {
      "id": 1, "position": [1, 0, 0], "species": "Donor",
      "reorganisation_energy": 0.3, "vrh_delocalisation": 2e-10, "representative_atom": 1,
      "neighbors": [{"id": 0, "image": [0, 0, 0], "transfer_integral": 0.05, "delta_e": -0.01}]
    },
    {
      "id": 2, "position": [9, 0, 0], "species": "acceptor",
      "reorganisation_energy": 0.2, "vrh_delocalisation": 1e-10, "representative_atom": 3,
      "neighbors": []
    }
  ]
}`

func TestReadNetwork(t *testing.T) {
	morphology, err := ReadNetwork(strings.NewReader(networkJSON))
	if err != nil {
		t.Fatalf("ReadNetwork: %v", err)
	}
	network := morphology.Network
	if network.Len() != 3 {
		t.Fatalf("chromophores = %d, want 3", network.Len())
	}
	if box := network.Box(); box != (domain.Box{Lx: 10, Ly: 20, Lz: 30}) {
		t.Fatalf("box = %+v", box)
	}
	first := network.Chromophore(0)
	if first.Species != domain.SpeciesDonor || first.ReorganisationEnergy != 0.3 {
		t.Fatalf("chromophore 0 = %+v", first)
	}
	if len(first.Neighbors) != 2 {
		t.Fatalf("neighbors = %d, want 2", len(first.Neighbors))
	}
	if first.Neighbors[0].Unavailable || first.Neighbors[0].TransferIntegral != 0.05 {
		t.Fatalf("neighbor 0 = %+v", first.Neighbors[0])
	}
	if !first.Neighbors[1].Unavailable {
		t.Fatal("null transfer integral should mark the neighbor unavailable")
	}
	if first.Neighbors[1].Image != (domain.Image{1, 0, 0}) {
		t.Fatalf("neighbor image = %v", first.Neighbors[1].Image)
	}
	if network.Chromophore(2).Species != domain.SpeciesAcceptor {
		t.Fatal("chromophore 2 should be an acceptor")
	}

	molecules, err := morphology.Molecules()
	if err != nil {
		t.Fatalf("Molecules: %v", err)
	}
	if !molecules.SameMolecule(0, 1) || molecules.SameMolecule(1, 2) {
		t.Fatalf("molecules = %v", molecules)
	}
}

func TestReadNetworkRejectsBadDocuments(t *testing.T) {
	invalid := apperrors.New(apperrors.CodeNetworkInvalid, "")
	cases := map[string]string{
		"malformed":       `{"box":`,
		"unknown field":   `{"box": {"lx": 1, "ly": 1, "lz": 1}, "colour": "red"}`,
		"unknown species": `{"box": {"lx": 1, "ly": 1, "lz": 1}, "chromophores": [{"id": 0, "species": "quark"}]}`,
		"flat box":        `{"box": {"lx": 0, "ly": 1, "lz": 1}, "chromophores": [{"id": 0, "species": "donor"}]}`,
		"dangling":        `{"box": {"lx": 1, "ly": 1, "lz": 1}, "chromophores": [{"id": 0, "species": "donor", "reorganisation_energy": 0.3, "neighbors": [{"id": 4}]}]}`,
		"no lambda":       `{"box": {"lx": 1, "ly": 1, "lz": 1}, "chromophores": [{"id": 0, "species": "donor"}]}`,
		"sparse ids":      `{"box": {"lx": 1, "ly": 1, "lz": 1}, "chromophores": [{"id": 1, "species": "donor"}]}`,
		"no chromophores": `{"box": {"lx": 1, "ly": 1, "lz": 1}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ReadNetwork(strings.NewReader(doc))
			if !errors.Is(err, invalid) {
				t.Fatalf("error = %v, want network invalid", err)
			}
		})
	}
}

func TestMoleculesRequiresRepresentatives(t *testing.T) {
	doc := `{"box": {"lx": 1, "ly": 1, "lz": 1}, "chromophores": [{"id": 0, "species": "donor", "reorganisation_energy": 0.3}]}`
	morphology, err := ReadNetwork(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("ReadNetwork: %v", err)
	}
	if _, err := morphology.Molecules(); apperrors.CodeOf(err) != apperrors.CodeConfigMissingParameter {
		t.Fatalf("error = %v, want missing parameter", err)
	}
}

func TestLoadNetwork(t *testing.T) {
	path := filepath.Join(t.TempDir(), "network.json")
	if err := os.WriteFile(path, []byte(networkJSON), 0o600); err != nil {
		t.Fatalf("write network: %v", err)
	}
	morphology, err := LoadNetwork(path)
	if err != nil {
		t.Fatalf("LoadNetwork: %v", err)
	}
	if morphology.AtomCount != 4 || len(morphology.Bonds) != 2 {
		t.Fatalf("morphology = %+v", morphology)
	}

	if _, err := LoadNetwork(" "); apperrors.CodeOf(err) != apperrors.CodeConfigMissingParameter {
		t.Fatalf("blank path error = %v", err)
	}
	if _, err := LoadNetwork(filepath.Join(t.TempDir(), "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("missing file error = %v", err)
	}
}
