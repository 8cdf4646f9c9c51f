package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comfyshim/gpupin/device"
	"github.com/comfyshim/gpupin/weights"
)

var prefetchCmd = &cobra.Command{
	Use:   "prefetch",
	Short: "Download wrapped preprocessor checkpoints ahead of time",
	Long: `Download the model checkpoints the wrapped preprocessors would otherwise
fetch during their first guarded run. Prefetching keeps the download out of
the device-pinned region.`,
	RunE: runPrefetch,
}

func init() {
	rootCmd.AddCommand(prefetchCmd)
	prefetchCmd.Flags().String("cache-dir", "", "checkpoint cache directory (default is $HOME/.gpupin/ckpts)")
	viper.BindPFlag("cache_dir", prefetchCmd.Flags().Lookup("cache-dir"))
}

func runPrefetch(cmd *cobra.Command, args []string) error {
	target, err := targetDevice()
	if err != nil {
		return err
	}
	table, err := wrapperTable()
	if err != nil {
		return err
	}

	dir := viper.GetString("cache_dir")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		dir = filepath.Join(home, ".gpupin", "ckpts")
	}

	classes := make([]string, 0, len(table))
	for _, spec := range table {
		classes = append(classes, spec.Wraps)
	}

	fetcher := weights.NewFetcher(dir, device.Fixed(target))
	return fetcher.FetchAll(classes)
}
