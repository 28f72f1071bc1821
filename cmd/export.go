package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/parcel-leads/internal/snapshot"
)

var (
	exportIn     string
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a snapshot's leads as CSV or XLSX",
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := snapshot.ReadFile(exportIn)
		if err != nil {
			return err
		}
		if err := exportLeads(cmd.OutOrStdout(), snap, exportFormat, exportOut); err != nil {
			return err
		}
		if exportOut != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d leads to %s\n", len(snap.Leads), exportOut)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportIn, "in", "", "snapshot JSON file (required)")
	exportCmd.Flags().StringVar(&exportFormat, "format", "csv", "output format: csv or xlsx")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output path (csv defaults to stdout)")
	_ = exportCmd.MarkFlagRequired("in")
	rootCmd.AddCommand(exportCmd)
}

// exportLeads writes snap's leads in format to out, or to stdout when out
// is empty and the format allows it.
func exportLeads(stdout io.Writer, snap *snapshot.Snapshot, format, out string) error {
	switch strings.ToLower(format) {
	case "csv":
		if out == "" {
			return snapshot.WriteCSV(stdout, snap.Leads)
		}
		f, err := os.Create(out)
		if err != nil {
			return eris.Wrap(err, "export: create file")
		}
		if err := snapshot.WriteCSV(f, snap.Leads); err != nil {
			_ = f.Close()
			return err
		}
		return eris.Wrap(f.Close(), "export: close file")
	case "xlsx":
		if out == "" {
			return eris.New("export: --out is required for xlsx")
		}
		return snapshot.WriteXLSX(out, snap.Leads)
	default:
		return eris.Errorf("export: unknown format %q", format)
	}
}
