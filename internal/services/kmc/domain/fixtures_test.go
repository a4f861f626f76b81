package domain

import (
	"testing"

	"gonum.org/v1/gonum/spatial/r3"
)

var testBox = Box{Lx: 10, Ly: 10, Lz: 10}

func testMarcusModel() HopRateModel {
	return HopRateModel{
		Policy:      RatePolicyMarcus,
		Temperature: 300,
		Prefactor:   1,
		Box:         testBox,
	}
}

// lineNetwork builds A(donor,0) -> B(donor,1) -> C(acceptor,2) with B also
// pointing back at A.
func lineNetwork(t *testing.T) *Network {
	t.Helper()
	network, err := NewNetwork([]Chromophore{
		{
			ID: 0, Position: r3.Vec{X: 0}, Species: SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []Neighbor{{ID: 1, TransferIntegral: 0.05}},
		},
		{
			ID: 1, Position: r3.Vec{X: 3}, Species: SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []Neighbor{
				{ID: 0, TransferIntegral: 0.05},
				{ID: 2, TransferIntegral: 0.02, EnergyGap: 0.01},
			},
		},
		{
			ID: 2, Position: r3.Vec{X: 6}, Species: SpeciesAcceptor, ReorganisationEnergy: 0.3,
			Neighbors: []Neighbor{{ID: 1, TransferIntegral: 0.02}},
		},
	}, testBox)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return network
}

// ringNetwork is a single donor that hops onto its own periodic image along x.
func ringNetwork(t *testing.T) *Network {
	t.Helper()
	network, err := NewNetwork([]Chromophore{
		{
			ID: 0, Position: r3.Vec{X: 1, Y: 2, Z: 3}, Species: SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []Neighbor{{ID: 0, Image: Image{1, 0, 0}, TransferIntegral: 0.05}},
		},
	}, testBox)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	return network
}

type interruptFlag bool

func (f *interruptFlag) Interrupted() bool { return bool(*f) }
