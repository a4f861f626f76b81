package domain

import (
	"fmt"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
)

// Params is the physics and job configuration of a mobility run. Field tags
// carry the historical parameter-file key names.
type Params struct {
	HopLimit                   int       `mapstructure:"hop_limit"`
	SystemTemperature          float64   `mapstructure:"system_temperature"`
	SimulationTimes            []float64 `mapstructure:"simulation_times"`
	HolesPerSimulationTime     int       `mapstructure:"number_of_holes_per_simulation_time"`
	ElectronsPerSimulationTime int       `mapstructure:"number_of_electrons_per_simulation_time"`
	RecordCarrierHistory       bool      `mapstructure:"record_carrier_history"`
	UseAverageHopRates         bool      `mapstructure:"use_average_hop_rates"`
	AverageIntraHopRate        float64   `mapstructure:"average_intra_hop_rate"`
	AverageInterHopRate        float64   `mapstructure:"average_inter_hop_rate"`
	UseKoopmansApproximation   bool      `mapstructure:"use_koopmans_approximation"`
	UseSimpleEnergeticPenalty  bool      `mapstructure:"use_simple_energetic_penalty"`
	UseVRH                     bool      `mapstructure:"use_VRH"`
	HoppingPrefactor           float64   `mapstructure:"hopping_prefactor"`
	RandomSeedOverride         *uint64   `mapstructure:"random_seed_override"`
	CombineKMCResults          bool      `mapstructure:"combine_KMC_results"`
	ProcIDs                    []int     `mapstructure:"proc_IDs"`
	// ExcludeLastStartChromophore keeps the highest chromophore id out of
	// the start draw, matching the historical sampler.
	ExcludeLastStartChromophore bool `mapstructure:"exclude_last_start_chromophore"`
}

// DefaultParams returns the defaults applied to optional keys.
func DefaultParams() Params {
	return Params{
		HoppingPrefactor:            1.0,
		ExcludeLastStartChromophore: true,
	}
}

// Validate checks the parameters for a run.
func (p Params) Validate() error {
	if p.HopLimit < 0 {
		return invalidParam("hop_limit", "must not be negative")
	}
	if p.SystemTemperature <= 0 {
		return invalidParam("system_temperature", "must be positive")
	}
	if len(p.SimulationTimes) == 0 {
		return invalidParam("simulation_times", "must list at least one lifetime")
	}
	for _, lifetime := range p.SimulationTimes {
		if lifetime <= 0 {
			return invalidParam("simulation_times", fmt.Sprintf("lifetime %g must be positive", lifetime))
		}
	}
	if p.HolesPerSimulationTime < 0 {
		return invalidParam("number_of_holes_per_simulation_time", "must not be negative")
	}
	if p.ElectronsPerSimulationTime < 0 {
		return invalidParam("number_of_electrons_per_simulation_time", "must not be negative")
	}
	if p.HolesPerSimulationTime+p.ElectronsPerSimulationTime == 0 {
		return invalidParam("number_of_holes_per_simulation_time", "no carriers requested")
	}
	if len(p.ProcIDs) == 0 {
		return invalidParam("proc_IDs", "at least one worker is required")
	}
	if p.HoppingPrefactor <= 0 {
		return invalidParam("hopping_prefactor", "must be positive")
	}
	if p.UseAverageHopRates {
		if p.AverageIntraHopRate <= 0 {
			return invalidParam("average_intra_hop_rate", "must be positive when use_average_hop_rates is set")
		}
		if p.AverageInterHopRate <= 0 {
			return invalidParam("average_inter_hop_rate", "must be positive when use_average_hop_rates is set")
		}
	}
	return nil
}

// RatePolicy returns the policy selected by the flags. Average rates win
// over VRH.
func (p Params) RatePolicy() RatePolicy {
	switch {
	case p.UseAverageHopRates:
		return RatePolicyAverage
	case p.UseVRH:
		return RatePolicyVRH
	default:
		return RatePolicyMarcus
	}
}

// RateModel builds the hop-rate model for network. molecules is required
// only for the average-rate policy, and the VRH policy requires a positive
// delocalisation length on every chromophore.
func (p Params) RateModel(network *Network, molecules MoleculeIDs) (HopRateModel, error) {
	policy := p.RatePolicy()
	if policy == RatePolicyAverage && molecules == nil {
		return HopRateModel{}, apperrors.New(
			apperrors.CodeConfigMissingParameter,
			"use_average_hop_rates requires a molecule partition",
		)
	}
	if policy == RatePolicyVRH {
		for id := 0; id < network.Len(); id++ {
			if delocalisation := network.Chromophore(id).VRHDelocalisation; !positiveFinite(delocalisation) {
				return HopRateModel{}, apperrors.WithMetadata(
					apperrors.CodeNetworkInvalid,
					fmt.Sprintf("use_VRH requires a positive delocalisation, chromophore %d has %g", id, delocalisation),
					map[string]string{"chromophore": fmt.Sprint(id)},
				)
			}
		}
	}
	return HopRateModel{
		Policy:                 policy,
		Temperature:            p.SystemTemperature,
		Prefactor:              p.HoppingPrefactor,
		SimpleEnergeticPenalty: p.UseSimpleEnergeticPenalty,
		Koopmans:               p.UseKoopmansApproximation,
		IntraRate:              p.AverageIntraHopRate,
		InterRate:              p.AverageInterHopRate,
		Molecules:              molecules,
		Box:                    network.Box(),
	}, nil
}

func invalidParam(key, reason string) error {
	return apperrors.WithMetadata(
		apperrors.CodeConfigInvalidParameter,
		fmt.Sprintf("%s %s", key, reason),
		map[string]string{"parameter": key},
	)
}
