package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"github.com/louisbranch/morphkmc/internal/random"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"github.com/louisbranch/morphkmc/internal/services/kmc/input"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	kmcbbolt "github.com/louisbranch/morphkmc/internal/services/kmc/storage/bbolt"
	kmcfile "github.com/louisbranch/morphkmc/internal/services/kmc/storage/file"
	kmcsqlite "github.com/louisbranch/morphkmc/internal/services/kmc/storage/sqlite"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// Store backends accepted by RuntimeConfig.Store.
const (
	StoreFile   = "file"
	StoreSQLite = "sqlite"
	StoreBBolt  = "bbolt"
)

const (
	defaultOutputDir   = "data/kmc"
	healthServiceName  = "kmc.runtime"
	sqliteCheckpointDB = "kmc.sqlite"
	bboltCheckpointDB  = "kmc.db"
	checkpointDir      = "checkpoints"
)

// RuntimeConfig controls a mobility run.
type RuntimeConfig struct {
	NetworkPath        string
	ParamsPath         string
	OutputDir          string
	Store              string
	CheckpointInterval time.Duration
	Resume             bool
	// HealthPort serves gRPC health while the run is in progress; 0
	// disables it.
	HealthPort int
}

// Run loads the inputs, simulates every carrier and persists the results.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(cfg.OutputDir) == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if strings.TrimSpace(cfg.Store) == "" {
		cfg.Store = StoreFile
	}

	morphology, err := input.LoadNetwork(cfg.NetworkPath)
	if err != nil {
		return err
	}
	params, err := input.LoadParams(cfg.ParamsPath)
	if err != nil {
		return err
	}
	if cfg.Resume && params.RandomSeedOverride == nil {
		return apperrors.New(
			apperrors.CodeConfigMissingParameter,
			"resuming a run requires random_seed_override",
		)
	}

	var molecules domain.MoleculeIDs
	if params.UseAverageHopRates {
		if molecules, err = morphology.Molecules(); err != nil {
			return err
		}
	}
	rates, err := params.RateModel(morphology.Network, molecules)
	if err != nil {
		return err
	}
	engine := domain.NewEngine(morphology.Network, rates, params.HopLimit)

	seed, source, err := random.ResolveSeed(params.RandomSeedOverride, random.NewSeed)
	if err != nil {
		return err
	}
	plan := domain.PlanJobs(params, seed)
	log.Printf("Using %s seed %d for %d jobs over %d workers (%s rates)", source, seed, plan.Total, len(plan.Assignments), rates.Policy)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	store, err := OpenStore(cfg.Store, cfg.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			log.Printf("close checkpoint store: %v", closeErr)
		}
	}()

	if cfg.HealthPort > 0 {
		listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HealthPort))
		if err != nil {
			return fmt.Errorf("listen on health port %d: %w", cfg.HealthPort, err)
		}
		stop := serveHealth(listener)
		defer stop()
		log.Printf("kmc health server listening at %v", listener.Addr())
	}

	scheduler, err := NewScheduler(SchedulerConfig{
		Engine:             engine,
		Params:             params,
		Store:              store,
		Logs:               FileLogs(cfg.OutputDir),
		CheckpointInterval: cfg.CheckpointInterval,
		Resume:             cfg.Resume,
	})
	if err != nil {
		return err
	}
	report, err := scheduler.Run(ctx, plan)
	if err != nil {
		return err
	}
	if err := Finish(context.WithoutCancel(ctx), store, params, plan.Seed, report); err != nil {
		return err
	}
	return errors.Join(report.Failures...)
}

// Finish aggregates the workers' results, persists the combined slot when
// requested and logs the mobility summary.
func Finish(ctx context.Context, store storage.CheckpointStore, params domain.Params, seed uint64, report RunReport) error {
	aggregated, err := domain.Aggregate(report.Results(), params.CombineKMCResults)
	if err != nil {
		return fmt.Errorf("aggregate results: %w", err)
	}
	if params.CombineKMCResults && len(aggregated) == 1 {
		combined := aggregated[0]
		if err := store.SaveCheckpoint(ctx, storage.CheckpointRecord{
			RunID:       report.RunID,
			Worker:      storage.CombinedSlot,
			Seed:        seed,
			Completed:   combined.Len(),
			Total:       combined.Len(),
			Interrupted: report.Interrupted(),
			Result:      combined,
			UpdatedAt:   time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("save combined result: %w", err)
		}
		log.Printf("Combined %d carriers from %d workers", combined.Len(), len(report.Outcomes))
	}

	var records []domain.CarrierRecord
	for _, result := range aggregated {
		records = append(records, result.Carriers...)
	}
	stats := domain.Summarize(records)
	for _, s := range stats {
		log.Printf("%s lifetime %.3e s: %d carriers, <r> = %.3f Å, <r²> = %.3f Å², <t> = %.3e s",
			s.Type, s.Lifetime, s.Carriers, s.MeanDisplacement, s.MeanSquaredDisplacement, s.MeanElapsedTime)
	}
	for _, carrierType := range []domain.CarrierType{domain.CarrierHole, domain.CarrierElectron} {
		estimate, err := domain.EstimateMobility(stats, carrierType, params.SystemTemperature)
		if err != nil {
			continue
		}
		log.Printf("%s mobility %.3e cm²/(V s), D = %.3e cm²/s, R² = %.4f over %d lifetimes",
			carrierType, estimate.Mobility, estimate.Diffusion, estimate.RSquared, estimate.Points)
	}
	return nil
}

// OpenStore opens the named checkpoint backend under dir.
func OpenStore(kind, dir string) (storage.CheckpointStore, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case StoreFile:
		return kmcfile.Open(filepath.Join(dir, checkpointDir))
	case StoreSQLite:
		return kmcsqlite.Open(filepath.Join(dir, sqliteCheckpointDB))
	case StoreBBolt:
		return kmcbbolt.Open(filepath.Join(dir, bboltCheckpointDB))
	default:
		return nil, apperrors.WithMetadata(
			apperrors.CodeConfigInvalidParameter,
			fmt.Sprintf("unknown checkpoint store %q", kind),
			map[string]string{"parameter": "store"},
		)
	}
}

// serveHealth reports kmc.runtime SERVING on listener until the returned
// stop function is called.
func serveHealth(listener net.Listener) func() {
	grpcServer := grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler()))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- grpcServer.Serve(listener)
	}()
	return func() {
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		<-serveErr
	}
}
