package domain

import (
	"fmt"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
)

// MoleculeIDs maps chromophore id to molecule id.
type MoleculeIDs map[int]int

// SameMolecule reports whether two chromophores belong to one molecule.
// Unknown chromophores are never considered bonded.
func (m MoleculeIDs) SameMolecule(a, b int) bool {
	molA, okA := m[a]
	molB, okB := m[b]
	return okA && okB && molA == molB
}

// PartitionMolecules labels the connected components of the bonded-atom
// graph and returns, for every chromophore, the molecule id of its
// representative atom. A molecule id is the lowest atom index in its
// component, so a system without bonds puts every atom in its own molecule.
func PartitionMolecules(atomCount int, bonds [][2]int, representatives map[int]int) (MoleculeIDs, error) {
	if atomCount < 0 {
		return nil, apperrors.New(apperrors.CodeNetworkInvalid, "atom count must not be negative")
	}
	sets := newDisjointSet(atomCount)
	for _, bond := range bonds {
		a, b := bond[0], bond[1]
		if a < 0 || a >= atomCount || b < 0 || b >= atomCount {
			return nil, apperrors.New(
				apperrors.CodeNetworkInvalid,
				fmt.Sprintf("bond [%d %d] references an atom outside [0, %d)", a, b, atomCount),
			)
		}
		sets.union(a, b)
	}

	// Lowest atom index per component root.
	label := make(map[int]int)
	for atom := 0; atom < atomCount; atom++ {
		root := sets.find(atom)
		if _, ok := label[root]; !ok {
			label[root] = atom
		}
	}

	molecules := make(MoleculeIDs, len(representatives))
	for chromoID, atom := range representatives {
		if atom < 0 || atom >= atomCount {
			return nil, apperrors.New(
				apperrors.CodeNetworkInvalid,
				fmt.Sprintf("chromophore %d representative atom %d is outside [0, %d)", chromoID, atom, atomCount),
			)
		}
		molecules[chromoID] = label[sets.find(atom)]
	}
	return molecules, nil
}

// disjointSet is an iterative union-find with path compression and union by
// size.
type disjointSet struct {
	parent []int
	size   []int
}

func newDisjointSet(n int) *disjointSet {
	parent := make([]int, n)
	size := make([]int, n)
	for i := range parent {
		parent[i] = i
		size[i] = 1
	}
	return &disjointSet{parent: parent, size: size}
}

func (d *disjointSet) find(x int) int {
	root := x
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for d.parent[x] != root {
		next := d.parent[x]
		d.parent[x] = root
		x = next
	}
	return root
}

func (d *disjointSet) union(a, b int) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	if d.size[ra] < d.size[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	d.size[ra] += d.size[rb]
}
