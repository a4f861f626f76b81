package domain

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LifetimeStats aggregates carriers of one type and lifetime.
type LifetimeStats struct {
	Type                    CarrierType
	Lifetime                float64
	Carriers                int
	MeanDisplacement        float64 // Å
	MeanSquaredDisplacement float64 // Å²
	MeanElapsedTime         float64 // s
}

// MobilityEstimate is the Einstein-relation mobility fitted from MSD(t).
type MobilityEstimate struct {
	Type      CarrierType
	Points    int
	Diffusion float64 // cm²/s
	Mobility  float64 // cm²/(V s)
	RSquared  float64
}

const squareAngstromToCm = 1e-16

// Summarize groups records by carrier type and lifetime, ordered by type
// then ascending lifetime.
func Summarize(records []CarrierRecord) []LifetimeStats {
	type groupKey struct {
		carrierType CarrierType
		lifetime    float64
	}
	groups := make(map[groupKey][]CarrierRecord)
	for _, record := range records {
		key := groupKey{carrierType: record.Type, lifetime: record.Lifetime}
		groups[key] = append(groups[key], record)
	}

	stats := make([]LifetimeStats, 0, len(groups))
	for key, group := range groups {
		displacement := make([]float64, len(group))
		squared := make([]float64, len(group))
		elapsed := make([]float64, len(group))
		for i, record := range group {
			displacement[i] = record.Displacement
			squared[i] = record.Displacement * record.Displacement
			elapsed[i] = record.ElapsedTime
		}
		stats = append(stats, LifetimeStats{
			Type:                    key.carrierType,
			Lifetime:                key.lifetime,
			Carriers:                len(group),
			MeanDisplacement:        stat.Mean(displacement, nil),
			MeanSquaredDisplacement: stat.Mean(squared, nil),
			MeanElapsedTime:         stat.Mean(elapsed, nil),
		})
	}
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Type != stats[j].Type {
			return stats[i].Type < stats[j].Type
		}
		return stats[i].Lifetime < stats[j].Lifetime
	})
	return stats
}

// EstimateMobility fits MSD against mean elapsed time for one carrier type
// and applies D = slope/6, μ = eD/(kB T). At least two lifetimes are needed.
func EstimateMobility(stats []LifetimeStats, carrierType CarrierType, temperature float64) (MobilityEstimate, error) {
	var times, msd []float64
	for _, s := range stats {
		if s.Type != carrierType {
			continue
		}
		times = append(times, s.MeanElapsedTime)
		msd = append(msd, s.MeanSquaredDisplacement*squareAngstromToCm)
	}
	if len(times) < 2 {
		return MobilityEstimate{}, fmt.Errorf("mobility fit for %s needs at least two lifetimes, have %d", carrierType, len(times))
	}
	if temperature <= 0 {
		return MobilityEstimate{}, fmt.Errorf("temperature must be positive")
	}
	alpha, beta := stat.LinearRegression(times, msd, nil, false)
	diffusion := beta / 6
	return MobilityEstimate{
		Type:      carrierType,
		Points:    len(times),
		Diffusion: diffusion,
		Mobility:  diffusion * ElementaryCharge / (Boltzmann * temperature),
		RSquared:  stat.RSquared(times, msd, nil, alpha, beta),
	}, nil
}
