package domain

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"gonum.org/v1/gonum/spatial/r3"
)

// CarrierType is the charge of a carrier.
type CarrierType uint8

const (
	CarrierUnknown CarrierType = iota
	CarrierHole
	CarrierElectron
)

// ParseCarrierType maps "hole" or "electron" to a CarrierType.
func ParseCarrierType(value string) (CarrierType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "hole":
		return CarrierHole, nil
	case "electron":
		return CarrierElectron, nil
	default:
		return CarrierUnknown, apperrors.WithMetadata(
			apperrors.CodeConfigInvalidCarrierType,
			fmt.Sprintf("unknown carrier type %q", value),
			map[string]string{"carrier_type": value},
		)
	}
}

func (t CarrierType) String() string {
	switch t {
	case CarrierHole:
		return "hole"
	case CarrierElectron:
		return "electron"
	default:
		return "unknown"
	}
}

// Species returns the chromophore species a carrier of this type lives on.
func (t CarrierType) Species() Species {
	switch t {
	case CarrierHole:
		return SpeciesDonor
	case CarrierElectron:
		return SpeciesAcceptor
	default:
		return SpeciesUnknown
	}
}

// TerminationReason explains why a carrier stopped hopping. Every reason is
// a normal outcome.
type TerminationReason uint8

const (
	ReasonNone TerminationReason = iota
	ReasonLifetimeExceeded
	ReasonHopLimitExceeded
	ReasonInterrupted
	ReasonTrapped
)

func (r TerminationReason) String() string {
	switch r {
	case ReasonLifetimeExceeded:
		return "lifetime exceeded"
	case ReasonHopLimitExceeded:
		return "hop limit exceeded"
	case ReasonInterrupted:
		return "externally interrupted"
	case ReasonTrapped:
		return "trapped"
	default:
		return "active"
	}
}

// StepOutcome is the result of one engine step.
type StepOutcome struct {
	Terminated bool
	Reason     TerminationReason
}

// Continue is the outcome of a committed hop.
var Continue = StepOutcome{}

// Interrupt is polled once before every step.
type Interrupt interface {
	Interrupted() bool
}

// Carrier is one simulated charge. It is owned by a single worker.
type Carrier struct {
	ID       int
	Type     CarrierType
	Lifetime float64

	start   *Chromophore
	current *Chromophore
	image   Image
	elapsed float64
	hops    int
	history *HistoryMatrix

	reorganisation float64
	delocalisation float64

	reason       TerminationReason
	displacement float64
}

// NewCarrier places a carrier on chromophore start. The chromophore species
// must match the carrier type.
func NewCarrier(id int, carrierType CarrierType, start int, lifetime float64, network *Network, recordHistory bool) (*Carrier, error) {
	if start < 0 || start >= network.Len() {
		return nil, fmt.Errorf("start chromophore %d outside network of %d", start, network.Len())
	}
	if carrierType.Species() == SpeciesUnknown {
		return nil, apperrors.New(apperrors.CodeConfigInvalidCarrierType, "carrier type is required")
	}
	chromo := network.Chromophore(start)
	if chromo.Species != carrierType.Species() {
		return nil, fmt.Errorf("%s cannot start on %s chromophore %d", carrierType, chromo.Species, start)
	}
	c := &Carrier{
		ID:             id,
		Type:           carrierType,
		Lifetime:       lifetime,
		start:          chromo,
		current:        chromo,
		reorganisation: chromo.ReorganisationEnergy,
		delocalisation: chromo.VRHDelocalisation,
	}
	if recordHistory {
		c.history = NewHistoryMatrix(network.Len())
	}
	return c, nil
}

// ChooseStart draws a starting chromophore for carrierType uniformly from
// the network's start candidates.
func ChooseStart(network *Network, carrierType CarrierType, rng *rand.Rand, excludeLast bool) (int, error) {
	candidates := network.StartCandidates(carrierType.Species(), excludeLast)
	if len(candidates) == 0 {
		return 0, apperrors.New(
			apperrors.CodeNoStartChromophore,
			fmt.Sprintf("no %s chromophore available to start a %s", carrierType.Species(), carrierType),
		)
	}
	return candidates[rng.IntN(len(candidates))], nil
}

func (c *Carrier) Start() int              { return c.start.ID }
func (c *Carrier) Current() int            { return c.current.ID }
func (c *Carrier) Image() Image            { return c.image }
func (c *Carrier) Elapsed() float64        { return c.elapsed }
func (c *Carrier) Hops() int               { return c.hops }
func (c *Carrier) History() *HistoryMatrix { return c.history }

// Terminated reports whether the carrier has stopped.
func (c *Carrier) Terminated() bool { return c.reason != ReasonNone }

// Reason returns why the carrier stopped, or ReasonNone while active.
func (c *Carrier) Reason() TerminationReason { return c.reason }

// Displacement returns the unwrapped start-to-end distance, in Å. It is
// zero until the carrier terminates.
func (c *Carrier) Displacement() float64 { return c.displacement }

func (c *Carrier) terminate(reason TerminationReason, box Box) StepOutcome {
	c.reason = reason
	delta := r3.Add(r3.Sub(c.current.Position, c.start.Position), box.Unwrap(c.image))
	c.displacement = r3.Norm(delta)
	return StepOutcome{Terminated: true, Reason: reason}
}

// Engine drives carriers over a shared network. HopLimit > 0 selects
// hop-limited mode; otherwise each carrier's lifetime bounds the run.
type Engine struct {
	network  *Network
	rates    HopRateModel
	hopLimit int
}

// NewEngine creates an engine. hopLimit 0 disables the hop limit.
func NewEngine(network *Network, rates HopRateModel, hopLimit int) *Engine {
	return &Engine{network: network, rates: rates, hopLimit: hopLimit}
}

// Network returns the engine's network.
func (e *Engine) Network() *Network { return e.network }

// Step advances c by at most one hop.
func (e *Engine) Step(c *Carrier, rng *rand.Rand, interrupt Interrupt) StepOutcome {
	if c.Terminated() {
		return StepOutcome{Terminated: true, Reason: c.reason}
	}
	if interrupt != nil && interrupt.Interrupted() {
		return c.terminate(ReasonInterrupted, e.network.box)
	}
	if e.hopLimit > 0 && c.hops+1 > e.hopLimit {
		return c.terminate(ReasonHopLimitExceeded, e.network.box)
	}

	best := -1
	bestTau := math.Inf(1)
	site := HopSite{
		Source:         c.current,
		Reorganisation: c.reorganisation,
		Delocalisation: c.delocalisation,
	}
	for i, neighbor := range c.current.Neighbors {
		site.Destination = e.network.Chromophore(neighbor.ID)
		rate, ok := e.rates.Rate(site, neighbor)
		if !ok || math.IsNaN(rate) || math.IsInf(rate, 0) {
			continue
		}
		tau := WaitingTime(rng, rate)
		if best < 0 || tau < bestTau {
			best, bestTau = i, tau
		}
	}
	if best < 0 || math.IsInf(bestTau, 1) {
		return c.terminate(ReasonTrapped, e.network.box)
	}
	if e.hopLimit == 0 && c.elapsed+bestTau > c.Lifetime {
		return c.terminate(ReasonLifetimeExceeded, e.network.box)
	}

	neighbor := c.current.Neighbors[best]
	from := c.current.ID
	c.image = c.image.Add(neighbor.Image)
	c.current = e.network.Chromophore(neighbor.ID)
	c.elapsed += bestTau
	c.hops++
	c.history.Increment(from, neighbor.ID)
	return Continue
}

// Run steps c until it terminates and returns the reason.
func (e *Engine) Run(c *Carrier, rng *rand.Rand, interrupt Interrupt) TerminationReason {
	for {
		if outcome := e.Step(c, rng, interrupt); outcome.Terminated {
			return outcome.Reason
		}
	}
}

// WaitingTime draws the first firing time of a Poisson clock with the given
// rate. Rates that are not positive and finite never fire.
func WaitingTime(rng *rand.Rand, rate float64) float64 {
	if !(rate > 0) || math.IsInf(rate, 1) {
		return math.Inf(1)
	}
	for {
		if u := rng.Float64(); u > 0 {
			return -math.Log(u) / rate
		}
	}
}
