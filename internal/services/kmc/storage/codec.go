package storage

import (
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"gonum.org/v1/gonum/spatial/r3"
)

const checkpointVersion = 1

type checkpointWire struct {
	Version         int           `cbor:"1,keyasint"`
	RunID           string        `cbor:"2,keyasint,omitempty"`
	Worker          int           `cbor:"3,keyasint"`
	Seed            uint64        `cbor:"4,keyasint"`
	Completed       int           `cbor:"5,keyasint"`
	Total           int           `cbor:"6,keyasint"`
	Interrupted     bool          `cbor:"7,keyasint,omitempty"`
	UpdatedAt       int64         `cbor:"8,keyasint"`
	Seeds           []uint64      `cbor:"9,keyasint"`
	Carriers        []carrierWire `cbor:"10,keyasint"`
	HoleHistory     *historyWire  `cbor:"11,keyasint,omitempty"`
	ElectronHistory *historyWire  `cbor:"12,keyasint,omitempty"`
	Truncated       *historyWire  `cbor:"13,keyasint,omitempty"`
}

type carrierWire struct {
	_                struct{} `cbor:",toarray"`
	ID               int
	Type             uint8
	Image            [3]int
	Lifetime         float64
	ElapsedTime      float64
	Hops             int
	Displacement     float64
	InitialPosition  [3]float64
	FinalPosition    [3]float64
	StartChromophore int
	FinalChromophore int
	Reason           uint8
}

type historyWire struct {
	Size    int         `cbor:"1,keyasint"`
	Entries []entryWire `cbor:"2,keyasint"`
}

type entryWire struct {
	_     struct{} `cbor:",toarray"`
	From  int
	To    int
	Count uint64
}

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	mode, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("checkpoint cbor mode: %v", err))
	}
	return mode
}

// EncodeCheckpoint serialises a record to its binary form.
func EncodeCheckpoint(record CheckpointRecord) ([]byte, error) {
	wire := checkpointWire{
		Version:         checkpointVersion,
		RunID:           record.RunID,
		Worker:          record.Worker,
		Seed:            record.Seed,
		Completed:       record.Completed,
		Total:           record.Total,
		Interrupted:     record.Interrupted,
		UpdatedAt:       unixNano(record.UpdatedAt),
		Seeds:           record.Result.Seeds,
		Carriers:        make([]carrierWire, len(record.Result.Carriers)),
		HoleHistory:     encodeHistory(record.Result.HoleHistory),
		ElectronHistory: encodeHistory(record.Result.ElectronHistory),
		Truncated:       encodeHistory(record.TruncatedHistory),
	}
	for i, c := range record.Result.Carriers {
		wire.Carriers[i] = carrierWire{
			ID:               c.ID,
			Type:             uint8(c.Type),
			Image:            c.Image,
			Lifetime:         c.Lifetime,
			ElapsedTime:      c.ElapsedTime,
			Hops:             c.Hops,
			Displacement:     c.Displacement,
			InitialPosition:  vecArray(c.InitialPosition),
			FinalPosition:    vecArray(c.FinalPosition),
			StartChromophore: c.StartChromophore,
			FinalChromophore: c.FinalChromophore,
			Reason:           uint8(c.Reason),
		}
	}
	data, err := encMode.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encode checkpoint: %w", err)
	}
	return data, nil
}

// DecodeCheckpoint parses a record produced by EncodeCheckpoint.
func DecodeCheckpoint(data []byte) (CheckpointRecord, error) {
	var wire checkpointWire
	if err := cbor.Unmarshal(data, &wire); err != nil {
		return CheckpointRecord{}, fmt.Errorf("decode checkpoint: %w", err)
	}
	if wire.Version != checkpointVersion {
		return CheckpointRecord{}, fmt.Errorf("checkpoint version %d is not supported", wire.Version)
	}
	record := CheckpointRecord{
		RunID:       wire.RunID,
		Worker:      wire.Worker,
		Seed:        wire.Seed,
		Completed:   wire.Completed,
		Total:       wire.Total,
		Interrupted: wire.Interrupted,
		UpdatedAt:   fromUnixNano(wire.UpdatedAt),
		Result: domain.SimulationResult{
			Seeds:    wire.Seeds,
			Carriers: make([]domain.CarrierRecord, len(wire.Carriers)),
		},
	}
	for i, c := range wire.Carriers {
		record.Result.Carriers[i] = domain.CarrierRecord{
			ID:               c.ID,
			Type:             domain.CarrierType(c.Type),
			Image:            domain.Image(c.Image),
			Lifetime:         c.Lifetime,
			ElapsedTime:      c.ElapsedTime,
			Hops:             c.Hops,
			Displacement:     c.Displacement,
			InitialPosition:  arrayVec(c.InitialPosition),
			FinalPosition:    arrayVec(c.FinalPosition),
			StartChromophore: c.StartChromophore,
			FinalChromophore: c.FinalChromophore,
			Reason:           domain.TerminationReason(c.Reason),
		}
	}
	var err error
	if record.Result.HoleHistory, err = decodeHistory(wire.HoleHistory); err != nil {
		return CheckpointRecord{}, fmt.Errorf("decode hole history: %w", err)
	}
	if record.Result.ElectronHistory, err = decodeHistory(wire.ElectronHistory); err != nil {
		return CheckpointRecord{}, fmt.Errorf("decode electron history: %w", err)
	}
	if record.TruncatedHistory, err = decodeHistory(wire.Truncated); err != nil {
		return CheckpointRecord{}, fmt.Errorf("decode truncated history: %w", err)
	}
	return record, nil
}

func encodeHistory(h *domain.HistoryMatrix) *historyWire {
	if h == nil {
		return nil
	}
	entries := h.Entries()
	wire := &historyWire{Size: h.Size(), Entries: make([]entryWire, len(entries))}
	for i, e := range entries {
		wire.Entries[i] = entryWire{From: e.From, To: e.To, Count: e.Count}
	}
	return wire
}

func decodeHistory(wire *historyWire) (*domain.HistoryMatrix, error) {
	if wire == nil {
		return nil, nil
	}
	entries := make([]domain.HistoryEntry, len(wire.Entries))
	for i, e := range wire.Entries {
		entries[i] = domain.HistoryEntry{From: e.From, To: e.To, Count: e.Count}
	}
	return domain.HistoryFromEntries(wire.Size, entries)
}

func vecArray(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func arrayVec(a [3]float64) r3.Vec {
	return r3.Vec{X: a[0], Y: a[1], Z: a[2]}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
