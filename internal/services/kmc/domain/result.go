package domain

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// CarrierRecord summarises one terminated carrier.
type CarrierRecord struct {
	ID               int
	Type             CarrierType
	Image            Image
	Lifetime         float64
	ElapsedTime      float64
	Hops             int
	Displacement     float64
	InitialPosition  r3.Vec
	FinalPosition    r3.Vec
	StartChromophore int
	FinalChromophore int
	Reason           TerminationReason
}

// SimulationResult accumulates carrier records for one worker, or for a
// whole run after Combine.
type SimulationResult struct {
	// Seeds holds the worker seed; a combined result lists every worker's
	// seed in worker order.
	Seeds    []uint64
	Carriers []CarrierRecord
	// HoleHistory and ElectronHistory are nil when history recording is off.
	HoleHistory     *HistoryMatrix
	ElectronHistory *HistoryMatrix
}

// NewSimulationResult creates an empty result for a worker.
func NewSimulationResult(seed uint64, chromophores int, recordHistory bool) SimulationResult {
	result := SimulationResult{Seeds: []uint64{seed}}
	if recordHistory {
		result.HoleHistory = NewHistoryMatrix(chromophores)
		result.ElectronHistory = NewHistoryMatrix(chromophores)
	}
	return result
}

// Len returns the number of carrier records.
func (r SimulationResult) Len() int {
	return len(r.Carriers)
}

// Append records a terminated carrier and folds its history into the
// matching per-type matrix.
func (r *SimulationResult) Append(c *Carrier) error {
	if !c.Terminated() {
		return fmt.Errorf("carrier %d is still active", c.ID)
	}
	r.Carriers = append(r.Carriers, CarrierRecord{
		ID:               c.ID,
		Type:             c.Type,
		Image:            c.image,
		Lifetime:         c.Lifetime,
		ElapsedTime:      c.elapsed,
		Hops:             c.hops,
		Displacement:     c.displacement,
		InitialPosition:  c.start.Position,
		FinalPosition:    c.current.Position,
		StartChromophore: c.start.ID,
		FinalChromophore: c.current.ID,
		Reason:           c.reason,
	})
	switch c.Type {
	case CarrierHole:
		return r.HoleHistory.Add(c.history)
	case CarrierElectron:
		return r.ElectronHistory.Add(c.history)
	}
	return nil
}

// RemoveLast drops the most recent carrier record and subtracts history, the
// hops that carrier contributed, from the matching per-type matrix.
func (r *SimulationResult) RemoveLast(history *HistoryMatrix) (CarrierRecord, error) {
	if len(r.Carriers) == 0 {
		return CarrierRecord{}, fmt.Errorf("result holds no carriers")
	}
	last := r.Carriers[len(r.Carriers)-1]
	var err error
	switch last.Type {
	case CarrierHole:
		err = r.HoleHistory.Subtract(history)
	case CarrierElectron:
		err = r.ElectronHistory.Subtract(history)
	}
	if err != nil {
		return CarrierRecord{}, fmt.Errorf("remove carrier %d history: %w", last.ID, err)
	}
	r.Carriers = r.Carriers[:len(r.Carriers)-1]
	return last, nil
}

// Clone returns a deep copy.
func (r SimulationResult) Clone() SimulationResult {
	return SimulationResult{
		Seeds:           append([]uint64(nil), r.Seeds...),
		Carriers:        append([]CarrierRecord(nil), r.Carriers...),
		HoleHistory:     r.HoleHistory.Clone(),
		ElectronHistory: r.ElectronHistory.Clone(),
	}
}

// Combine concatenates carrier records in argument order and sums the
// history matrices. Inputs are not modified.
func Combine(results ...SimulationResult) (SimulationResult, error) {
	var combined SimulationResult
	for i, result := range results {
		combined.Seeds = append(combined.Seeds, result.Seeds...)
		combined.Carriers = append(combined.Carriers, result.Carriers...)
		var err error
		if combined.HoleHistory, err = sumHistory(combined.HoleHistory, result.HoleHistory); err != nil {
			return SimulationResult{}, fmt.Errorf("combine result %d hole history: %w", i, err)
		}
		if combined.ElectronHistory, err = sumHistory(combined.ElectronHistory, result.ElectronHistory); err != nil {
			return SimulationResult{}, fmt.Errorf("combine result %d electron history: %w", i, err)
		}
	}
	return combined, nil
}

func sumHistory(acc, next *HistoryMatrix) (*HistoryMatrix, error) {
	if next == nil {
		return acc, nil
	}
	if acc == nil {
		return next.Clone(), nil
	}
	if err := acc.Add(next); err != nil {
		return nil, err
	}
	return acc, nil
}

// Aggregate returns one combined result when combine is set, otherwise the
// per-worker results unchanged.
func Aggregate(results []SimulationResult, combine bool) ([]SimulationResult, error) {
	if !combine {
		return results, nil
	}
	combined, err := Combine(results...)
	if err != nil {
		return nil, err
	}
	return []SimulationResult{combined}, nil
}
