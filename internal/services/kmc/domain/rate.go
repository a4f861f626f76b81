package domain

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Physical constants in SI units.
const (
	ElementaryCharge = 1.60217657e-19 // C
	Boltzmann        = 1.3806488e-23  // J/K
	ReducedPlanck    = 1.05457173e-34 // J s

	angstrom = 1e-10 // m
)

// RatePolicy selects how hop rates are evaluated.
type RatePolicy uint8

const (
	// RatePolicyMarcus evaluates the semiclassical Marcus rate.
	RatePolicyMarcus RatePolicy = iota
	// RatePolicyVRH adds a variable-range-hopping distance penalty.
	RatePolicyVRH
	// RatePolicyAverage uses fixed intra/inter-molecular rates.
	RatePolicyAverage
)

func (p RatePolicy) String() string {
	switch p {
	case RatePolicyMarcus:
		return "marcus"
	case RatePolicyVRH:
		return "vrh"
	case RatePolicyAverage:
		return "average"
	default:
		return "unknown"
	}
}

// MarcusRate returns the nonadiabatic hop rate in 1/s. All energies are in
// joules and temperature in kelvin. A zero transfer integral yields zero.
func MarcusRate(lambda, transferIntegral, deltaE, prefactor, temperature float64, simplePenalty bool) float64 {
	return hopRate(lambda, transferIntegral, deltaE, prefactor, temperature, 1, simplePenalty)
}

// VRHRate is MarcusRate multiplied by exp(-separation/delocalisation), with
// both lengths in metres.
func VRHRate(lambda, transferIntegral, deltaE, prefactor, temperature, separation, delocalisation float64, simplePenalty bool) float64 {
	return hopRate(lambda, transferIntegral, deltaE, prefactor, temperature, math.Exp(-separation/delocalisation), simplePenalty)
}

func hopRate(lambda, transferIntegral, deltaE, prefactor, temperature, distanceTerm float64, simplePenalty bool) float64 {
	if transferIntegral == 0 {
		return 0
	}
	kT := Boltzmann * temperature
	rate := prefactor * (2 * math.Pi / ReducedPlanck) * transferIntegral * transferIntegral *
		math.Sqrt(1/(4*lambda*math.Pi*kT))
	rate *= distanceTerm
	if simplePenalty {
		if deltaE > 0 {
			rate *= math.Exp(-deltaE / kT)
		}
		return rate
	}
	return rate * math.Exp(-((deltaE+lambda)*(deltaE+lambda))/(4*lambda*kT))
}

// HopRateModel evaluates hop rates for a carrier. It is a value type and
// safe to share between workers.
type HopRateModel struct {
	Policy                 RatePolicy
	Temperature            float64
	Prefactor              float64
	SimpleEnergeticPenalty bool
	// Koopmans treats every energy gap as zero.
	Koopmans  bool
	IntraRate float64
	InterRate float64
	// Molecules classifies hops for RatePolicyAverage.
	Molecules MoleculeIDs
	Box       Box
}

// HopSite carries the per-carrier quantities the rate depends on, captured
// from the carrier's starting chromophore.
type HopSite struct {
	Source         *Chromophore
	Destination    *Chromophore
	Reorganisation float64 // eV
	Delocalisation float64 // m
}

// Rate returns the rate for hopping along neighbor, or false when the
// neighbor is not a candidate. Energies are converted from eV here.
func (m HopRateModel) Rate(site HopSite, neighbor Neighbor) (float64, bool) {
	if neighbor.Unavailable {
		return 0, false
	}
	switch m.Policy {
	case RatePolicyAverage:
		if m.Molecules.SameMolecule(site.Source.ID, neighbor.ID) {
			return m.IntraRate, true
		}
		return m.InterRate, true
	case RatePolicyVRH:
		target := r3.Add(site.Destination.Position, m.Box.Unwrap(neighbor.Image))
		separation := r3.Norm(r3.Sub(target, site.Source.Position)) * angstrom
		return VRHRate(
			site.Reorganisation*ElementaryCharge,
			neighbor.TransferIntegral*ElementaryCharge,
			m.energyGap(neighbor)*ElementaryCharge,
			m.Prefactor,
			m.Temperature,
			separation,
			site.Delocalisation,
			m.SimpleEnergeticPenalty,
		), true
	default:
		return MarcusRate(
			site.Reorganisation*ElementaryCharge,
			neighbor.TransferIntegral*ElementaryCharge,
			m.energyGap(neighbor)*ElementaryCharge,
			m.Prefactor,
			m.Temperature,
			m.SimpleEnergeticPenalty,
		), true
	}
}

func (m HopRateModel) energyGap(neighbor Neighbor) float64 {
	if m.Koopmans {
		return 0
	}
	return neighbor.EnergyGap
}
