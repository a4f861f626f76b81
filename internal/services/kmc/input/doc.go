// Package input loads the documents a mobility run consumes: the
// chromophore network produced by the quantum-chemistry stage and the run
// parameters.
package input
