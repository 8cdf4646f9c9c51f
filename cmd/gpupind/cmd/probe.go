package cmd

import (
	"errors"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/comfyshim/gpupin/hostapi"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Report which wrapped preprocessors the host has installed",
	RunE:  runProbe,
}

func init() {
	rootCmd.AddCommand(probeCmd)
}

func runProbe(cmd *cobra.Command, args []string) error {
	table, err := wrapperTable()
	if err != nil {
		return err
	}

	client := hostClient()

	out := tablewriter.NewWriter(os.Stdout)
	out.Header("Wrapper", "Wraps", "Target", "Status")

	for _, spec := range table {
		status := "available"
		_, err := client.ObjectInfoFor(spec.Wraps)
		switch {
		case errors.Is(err, hostapi.ErrUnknownNodeClass):
			status = "missing"
		case err != nil:
			return err
		}
		out.Append(spec.Class, spec.Wraps, spec.Target.String(), status)
	}

	out.Render()
	return nil
}
