package domain

import (
	"math/rand/v2"
)

// Job is one carrier to simulate.
type Job struct {
	CarrierNo int
	Lifetime  float64
	Type      CarrierType
}

// Assignment is the job chunk and seed handed to one worker.
type Assignment struct {
	Worker int
	Seed   uint64
	Jobs   []Job
}

// JobPlan is the deterministic outcome of building, shuffling and
// partitioning jobs from a master seed.
type JobPlan struct {
	Seed        uint64
	Total       int
	Assignments []Assignment
}

// BuildJobs lists every (lifetime, carrier) combination, holes before
// electrons within each lifetime.
func BuildJobs(p Params) []Job {
	jobs := make([]Job, 0, len(p.SimulationTimes)*(p.HolesPerSimulationTime+p.ElectronsPerSimulationTime))
	for _, lifetime := range p.SimulationTimes {
		for n := 0; n < p.HolesPerSimulationTime; n++ {
			jobs = append(jobs, Job{CarrierNo: n, Lifetime: lifetime, Type: CarrierHole})
		}
		for n := 0; n < p.ElectronsPerSimulationTime; n++ {
			jobs = append(jobs, Job{CarrierNo: n, Lifetime: lifetime, Type: CarrierElectron})
		}
	}
	return jobs
}

// PartitionJobs splits jobs into consecutive chunks of ceil(len/workers).
// Fewer chunks than workers are returned when jobs run out.
func PartitionJobs(jobs []Job, workers int) [][]Job {
	if workers <= 0 || len(jobs) == 0 {
		return nil
	}
	step := (len(jobs) + workers - 1) / workers
	chunks := make([][]Job, 0, workers)
	for i := 0; i < len(jobs); i += step {
		end := min(i+step, len(jobs))
		chunks = append(chunks, jobs[i:end:end])
	}
	return chunks
}

// PlanJobs builds, shuffles and partitions the jobs for p, then draws one
// seed in [0, 2^32) per worker, all from a generator seeded with seed.
func PlanJobs(p Params, seed uint64) JobPlan {
	rng := NewRand(seed, 0)
	jobs := BuildJobs(p)
	rng.Shuffle(len(jobs), func(i, j int) {
		jobs[i], jobs[j] = jobs[j], jobs[i]
	})
	chunks := PartitionJobs(jobs, len(p.ProcIDs))
	plan := JobPlan{Seed: seed, Total: len(jobs), Assignments: make([]Assignment, len(chunks))}
	for i, chunk := range chunks {
		plan.Assignments[i] = Assignment{
			Worker: i,
			Seed:   uint64(rng.Uint32()),
			Jobs:   chunk,
		}
	}
	return plan
}

// NewRand returns a generator for one (seed, stream) pair. Workers use the
// job index as stream so each job's draws are independent of the others.
func NewRand(seed, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, stream))
}
