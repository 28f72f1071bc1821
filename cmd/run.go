package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/parcel-leads/internal/model"
	"github.com/sells-group/parcel-leads/internal/pipeline"
	"github.com/sells-group/parcel-leads/internal/snapshot"
)

var (
	runBorough  string
	runAreaCode string
	runAreaName string
	runOut      string
	runSave     bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build the lead snapshot for a single area",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		env, err := initEnv(ctx, cfg, runSave, progressPrinter(out))
		if err != nil {
			return err
		}
		defer env.Close()

		area := model.Area{Borough: runBorough, Code: runAreaCode, Name: runAreaName}
		snap, err := env.Snapshot(ctx, area)
		if err != nil {
			return eris.Wrap(err, "run area")
		}

		path := runOut
		if path == "" {
			path = snapshotPath(cfg.Snapshot.Dir, snap)
		}
		if err := snapshot.WriteFile(path, snap); err != nil {
			return err
		}

		if env.Store != nil {
			rec, err := env.Store.SaveSnapshot(ctx, snap)
			if err != nil {
				return eris.Wrap(err, "save snapshot")
			}
			zap.L().Info("snapshot saved", zap.String("id", rec.ID))
		}

		printSummary(out, snap, path)
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runBorough, "borough", "", "borough (digit, code or name)")
	runCmd.Flags().StringVar(&runAreaCode, "area-code", "", "area code, e.g. a ZIP code")
	runCmd.Flags().StringVar(&runAreaName, "area-name", "", "display name for the area")
	runCmd.Flags().StringVar(&runOut, "out", "", "snapshot output path (default <snapshot.dir>/leads-<borough>-<area>.json)")
	runCmd.Flags().BoolVar(&runSave, "save", false, "also save the snapshot to the store")
	_ = runCmd.MarkFlagRequired("borough")
	_ = runCmd.MarkFlagRequired("area-code")
	rootCmd.AddCommand(runCmd)
}

func snapshotPath(dir string, snap *snapshot.Snapshot) string {
	return filepath.Join(dir, snapshot.FileName(snap.Borough, snap.AreaCode))
}

// progressPrinter writes one line per stage transition.
func progressPrinter(w io.Writer) pipeline.ProgressFunc {
	return func(_ model.Area, stage model.Stage, st model.StageStatus) {
		fmt.Fprintf(w, "%-14s %s\n", stage, st)
	}
}

func printSummary(w io.Writer, snap *snapshot.Snapshot, path string) {
	fmt.Fprintf(w, "\n%s %s (%s)\n", snap.BoroughName(), snap.AreaName, snap.AreaCode)
	fmt.Fprintf(w, "  analyzed:       %d\n", snap.Stats.TotalAnalyzed)
	fmt.Fprintf(w, "  leads:          %d\n", snap.Stats.DisplayedLeads)
	fmt.Fprintf(w, "  likely sellers: %d\n", snap.Stats.LikelySellers)
	fmt.Fprintf(w, "  loans maturing: %d\n", snap.Stats.LoansMaturing)
	fmt.Fprintf(w, "  avg score:      %.2f\n", snap.Stats.AvgScore)
	if snap.Progress != nil {
		if failed := snap.Progress.Failed(); len(failed) > 0 {
			fmt.Fprintf(w, "  failed stages:  %v\n", failed)
		}
	}
	fmt.Fprintf(w, "  written to:     %s\n", path)
}

// runArea is the per-area unit of work shared by batch and serve.
type runArea func(ctx context.Context, area model.Area) (*snapshot.Snapshot, error)
