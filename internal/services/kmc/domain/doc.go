// Package domain implements the kinetic Monte Carlo mobility engine: the
// chromophore network, hop-rate policies, molecule partitioning, carrier
// stepping, job planning and result aggregation.
//
// Nothing in this package performs I/O. A Network is immutable once built
// and may be shared by any number of workers; a Carrier and its history
// matrix belong to exactly one worker.
package domain
