package app

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"gonum.org/v1/gonum/spatial/r3"
)

// ringNetwork is four donors in a periodic ring plus two acceptor pairs.
func ringNetwork(t *testing.T) *domain.Network {
	t.Helper()
	box := domain.Box{Lx: 40, Ly: 10, Lz: 10}
	link := func(id int, image domain.Image) domain.Neighbor {
		return domain.Neighbor{ID: id, Image: image, TransferIntegral: 0.05}
	}
	chromophores := []domain.Chromophore{
		{ID: 0, Position: r3.Vec{X: 5}, Species: domain.SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []domain.Neighbor{link(1, domain.Image{}), link(3, domain.Image{-1, 0, 0})}},
		{ID: 1, Position: r3.Vec{X: 15}, Species: domain.SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []domain.Neighbor{link(0, domain.Image{}), link(2, domain.Image{})}},
		{ID: 2, Position: r3.Vec{X: 25}, Species: domain.SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []domain.Neighbor{link(1, domain.Image{}), link(3, domain.Image{})}},
		{ID: 3, Position: r3.Vec{X: 35}, Species: domain.SpeciesDonor, ReorganisationEnergy: 0.3,
			Neighbors: []domain.Neighbor{link(2, domain.Image{}), link(0, domain.Image{1, 0, 0})}},
		{ID: 4, Position: r3.Vec{Y: 5}, Species: domain.SpeciesAcceptor, ReorganisationEnergy: 0.2,
			Neighbors: []domain.Neighbor{link(5, domain.Image{})}},
		{ID: 5, Position: r3.Vec{Y: 5, Z: 5}, Species: domain.SpeciesAcceptor, ReorganisationEnergy: 0.2,
			Neighbors: []domain.Neighbor{link(4, domain.Image{})}},
		{ID: 6, Position: r3.Vec{Z: 9}, Species: domain.SpeciesAcceptor, ReorganisationEnergy: 0.2},
	}
	network, err := domain.NewNetwork(chromophores, box)
	if err != nil {
		t.Fatalf("build network: %v", err)
	}
	return network
}

func testParams() domain.Params {
	p := domain.DefaultParams()
	p.SystemTemperature = 290
	p.SimulationTimes = []float64{1e-12, 1e-11}
	p.HolesPerSimulationTime = 3
	p.ElectronsPerSimulationTime = 2
	p.RecordCarrierHistory = true
	p.ProcIDs = []int{0, 1}
	return p
}

func testEngine(t *testing.T, network *domain.Network, p domain.Params) *domain.Engine {
	t.Helper()
	rates, err := p.RateModel(network, nil)
	if err != nil {
		t.Fatalf("rate model: %v", err)
	}
	return domain.NewEngine(network, rates, p.HopLimit)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// stepClock advances by step on every call and runs onCall with the call
// number before returning.
type stepClock struct {
	mu     sync.Mutex
	now    time.Time
	step   time.Duration
	calls  int
	onCall func(n int)
}

func newStepClock(step time.Duration) *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.now = c.now.Add(c.step)
	now := c.now
	hook := c.onCall
	c.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return now
}

// memStore keeps the latest record per slot plus every save in order.
type memStore struct {
	mu      sync.Mutex
	records map[int]storage.CheckpointRecord
	saves   []storage.CheckpointRecord
	// failures makes the next N saves fail.
	failures int
	attempts int
}

func newMemStore() *memStore {
	return &memStore{records: make(map[int]storage.CheckpointRecord)}
}

var errStoreUnavailable = errors.New("store unavailable")

func (s *memStore) SaveCheckpoint(ctx context.Context, record storage.CheckpointRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.failures > 0 {
		s.failures--
		return errStoreUnavailable
	}
	record.Result = record.Result.Clone()
	s.records[record.Worker] = record
	s.saves = append(s.saves, record)
	return nil
}

func (s *memStore) LoadCheckpoint(ctx context.Context, worker int) (storage.CheckpointRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CheckpointRecord{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[worker]
	if !ok {
		return storage.CheckpointRecord{}, storage.ErrNotFound
	}
	record.Result = record.Result.Clone()
	return record, nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) savesFor(worker int) []storage.CheckpointRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.CheckpointRecord
	for _, record := range s.saves {
		if record.Worker == worker {
			out = append(out, record)
		}
	}
	return out
}
