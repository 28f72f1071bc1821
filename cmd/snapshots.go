package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/parcel-leads/internal/parcel"
	"github.com/sells-group/parcel-leads/internal/store"
)

var snapshotsCmd = &cobra.Command{
	Use:   "snapshots",
	Short: "Inspect stored lead snapshots",
}

// -- snapshots list --

var snapshotsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored snapshots, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		borough, _ := cmd.Flags().GetString("borough")
		areaCode, _ := cmd.Flags().GetString("area-code")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := store.Filter{AreaCode: areaCode, Limit: limit}
		if borough != "" {
			code, ok := parcel.BoroughCode(borough)
			if !ok {
				return eris.Errorf("unknown borough %q", borough)
			}
			filter.Borough = code
		}

		recs, err := st.ListSnapshots(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "snapshots list")
		}
		if len(recs) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No snapshots found.")
			return nil
		}

		formatSnapshotList(cmd.OutOrStdout(), recs)
		return nil
	},
}

// -- snapshots latest --

var snapshotsLatestCmd = &cobra.Command{
	Use:   "latest <borough> <area-code>",
	Short: "Print the most recent snapshot for an area",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		code, ok := parcel.BoroughCode(args[0])
		if !ok {
			return eris.Errorf("unknown borough %q", args[0])
		}

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.LatestSnapshot(ctx, code, args[1])
		if err != nil {
			return eris.Wrap(err, "snapshots latest")
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rec.Snapshot)
	},
}

func init() {
	snapshotsListCmd.Flags().String("borough", "", "filter by borough")
	snapshotsListCmd.Flags().String("area-code", "", "filter by area code")
	snapshotsListCmd.Flags().Int("limit", 50, "max number of snapshots to display")

	snapshotsCmd.AddCommand(snapshotsListCmd)
	snapshotsCmd.AddCommand(snapshotsLatestCmd)
	rootCmd.AddCommand(snapshotsCmd)
}

// formatSnapshotList writes a tabular list of snapshot records to out.
func formatSnapshotList(out io.Writer, recs []store.Record) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tBOROUGH\tAREA\tNAME\tLEADS\tVERSION\tCREATED")
	for _, r := range recs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			r.ID, r.Borough, r.AreaCode, r.AreaName, r.Leads, r.Version,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
	_ = w.Flush()
}
