package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/pipeline"
	"github.com/sells-group/parcel-leads/internal/snapshot"
)

var (
	batchAreasFile   string
	batchConcurrency int
	batchSave        bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Build lead snapshots for every area in an areas file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		areas, err := loadAreas(batchAreasFile)
		if err != nil {
			return err
		}

		env, err := initEnv(ctx, cfg, batchSave, progressLogger(zap.L()))
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.MaxConcurrentAreas
		}

		write := func(ctx context.Context, snap *snapshot.Snapshot) error {
			if err := snapshot.WriteFile(snapshotPath(cfg.Snapshot.Dir, snap), snap); err != nil {
				return err
			}
			if env.Store == nil {
				return nil
			}
			_, err := env.Store.SaveSnapshot(ctx, snap)
			return err
		}

		sum, err := processBatch(ctx, areas, concurrency, env.Snapshot, write)
		if err != nil {
			return err
		}
		if sum.Failed > 0 {
			return eris.Errorf("batch: %d of %d areas failed", sum.Failed, sum.Total)
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchAreasFile, "areas", "areas.yaml", "YAML file listing the areas to run")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "areas processed at once (default batch.max_concurrent_areas)")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "also save each snapshot to the store")
	rootCmd.AddCommand(batchCmd)
}

// progressLogger logs each stage transition with its area. Failures log
// at warn.
func progressLogger(log *zap.Logger) pipeline.ProgressFunc {
	return func(area model.Area, stage model.Stage, st model.StageStatus) {
		fields := []zap.Field{
			zap.String("borough", area.Borough),
			zap.String("area", area.Code),
			zap.String("stage", stage.String()),
			zap.String("status", st.String()),
		}
		if st.State == model.StateFailed {
			log.Warn("batch: stage failed", fields...)
			return
		}
		log.Debug("batch: stage progress", fields...)
	}
}

type areasFile struct {
	Areas []model.Area `yaml:"areas"`
}

// loadAreas reads and normalizes the areas file. Duplicate areas are
// dropped.
func loadAreas(path string) ([]model.Area, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "batch: read areas file")
	}
	var f areasFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "batch: parse areas file")
	}

	seen := make(map[string]bool, len(f.Areas))
	out := make([]model.Area, 0, len(f.Areas))
	for i, a := range f.Areas {
		norm, err := a.Normalize()
		if err != nil {
			return nil, eris.Wrapf(err, "batch: area %d", i+1)
		}
		id := norm.Borough + "/" + norm.Code
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, norm)
	}
	if len(out) == 0 {
		return nil, eris.New("batch: areas file lists no areas")
	}
	return out, nil
}

// writeFunc persists one finished snapshot.
type writeFunc func(ctx context.Context, snap *snapshot.Snapshot) error

// batchSummary counts batch outcomes. Empty areas are also counted as
// succeeded.
type batchSummary struct {
	Total     int
	Succeeded int
	Empty     int
	Failed    int
}

// processBatch runs areas concurrently. A failing area is logged and
// counted and does not stop the others.
func processBatch(ctx context.Context, areas []model.Area, concurrency int, run runArea, write writeFunc) (batchSummary, error) {
	sum := batchSummary{Total: len(areas)}
	if len(areas) == 0 {
		zap.L().Info("no areas to process")
		return sum, nil
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("areas", len(areas)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, empty, failed atomic.Int64

	for _, area := range areas {
		g.Go(func() error {
			log := zap.L().With(zap.String("borough", area.Borough), zap.String("area_code", area.Code))

			snap, err := run(gctx, area)
			if err == nil {
				err = write(gctx, snap)
			}
			if err != nil {
				failed.Add(1)
				log.Error("area failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			if len(snap.Leads) == 0 {
				empty.Add(1)
			}
			log.Info("area complete",
				zap.Int("leads", len(snap.Leads)),
				zap.Int("likely_sellers", snap.Stats.LikelySellers),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return sum, eris.Wrap(err, "batch processing")
	}

	sum.Succeeded = int(succeeded.Load())
	sum.Empty = int(empty.Load())
	sum.Failed = int(failed.Load())

	zap.L().Info("batch complete",
		zap.Int("succeeded", sum.Succeeded),
		zap.Int("empty", sum.Empty),
		zap.Int("failed", sum.Failed),
	)
	return sum, nil
}
