package domain

import (
	"errors"
	"testing"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

func TestParamsValidate(t *testing.T) {
	invalid := apperrors.New(apperrors.CodeConfigInvalidParameter, "")
	cases := []struct {
		name   string
		mutate func(*Params)
		param  string
	}{
		{name: "negative hop limit", mutate: func(p *Params) { p.HopLimit = -1 }, param: "hop_limit"},
		{name: "zero temperature", mutate: func(p *Params) { p.SystemTemperature = 0 }, param: "system_temperature"},
		{name: "no lifetimes", mutate: func(p *Params) { p.SimulationTimes = nil }, param: "simulation_times"},
		{name: "negative lifetime", mutate: func(p *Params) { p.SimulationTimes = []float64{-1} }, param: "simulation_times"},
		{name: "no carriers", mutate: func(p *Params) { p.HolesPerSimulationTime, p.ElectronsPerSimulationTime = 0, 0 }, param: "number_of_holes_per_simulation_time"},
		{name: "no workers", mutate: func(p *Params) { p.ProcIDs = nil }, param: "proc_IDs"},
		{name: "average without intra", mutate: func(p *Params) { p.UseAverageHopRates = true; p.AverageInterHopRate = 1 }, param: "average_intra_hop_rate"},
		{name: "average without inter", mutate: func(p *Params) { p.UseAverageHopRates = true; p.AverageIntraHopRate = 1 }, param: "average_inter_hop_rate"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := testParams()
			tc.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, invalid) {
				t.Fatalf("error = %v, want invalid parameter", err)
			}
			var appErr *apperrors.Error
			if !errors.As(err, &appErr) {
				t.Fatalf("error %T is not an app error", err)
			}
			if appErr.Metadata["parameter"] != tc.param {
				t.Fatalf("parameter = %q, want %q", appErr.Metadata["parameter"], tc.param)
			}
		})
	}
	if err := testParams().Validate(); err != nil {
		t.Fatalf("valid params: %v", err)
	}
}

func TestParamsRatePolicy(t *testing.T) {
	p := testParams()
	if p.RatePolicy() != RatePolicyMarcus {
		t.Fatalf("policy = %v, want marcus", p.RatePolicy())
	}
	p.UseVRH = true
	if p.RatePolicy() != RatePolicyVRH {
		t.Fatalf("policy = %v, want vrh", p.RatePolicy())
	}
	p.UseAverageHopRates = true
	if p.RatePolicy() != RatePolicyAverage {
		t.Fatalf("policy = %v, want average", p.RatePolicy())
	}
	if _, err := p.RateModel(lineNetwork(t), nil); err == nil {
		t.Fatal("average policy without molecules should fail")
	}
	model, err := p.RateModel(lineNetwork(t), MoleculeIDs{0: 0})
	if err != nil {
		t.Fatalf("rate model: %v", err)
	}
	if model.Temperature != 290 || model.Prefactor != 1 || model.Box != testBox {
		t.Fatalf("model = %+v", model)
	}
}

func TestRateModelVRHRequiresDelocalisation(t *testing.T) {
	p := testParams()
	p.UseVRH = true
	_, err := p.RateModel(lineNetwork(t), nil)
	if apperrors.CodeOf(err) != apperrors.CodeNetworkInvalid {
		t.Fatalf("error = %v, want network invalid", err)
	}

	network, err := NewNetwork([]Chromophore{
		{ID: 0, Species: SpeciesDonor, ReorganisationEnergy: 0.3, VRHDelocalisation: 1e-10},
		{ID: 1, Position: r3.Vec{X: 2}, Species: SpeciesDonor, ReorganisationEnergy: 0.3, VRHDelocalisation: 1e-10},
	}, testBox)
	if err != nil {
		t.Fatalf("new network: %v", err)
	}
	model, err := p.RateModel(network, nil)
	if err != nil {
		t.Fatalf("rate model: %v", err)
	}
	if model.Policy != RatePolicyVRH {
		t.Fatalf("policy = %v, want vrh", model.Policy)
	}

	p.UseVRH = false
	if _, err := p.RateModel(lineNetwork(t), nil); err != nil {
		t.Fatalf("marcus policy should not need delocalisation: %v", err)
	}
}
