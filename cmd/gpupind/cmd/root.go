package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comfyshim/gpupin/device"
	"github.com/comfyshim/gpupin/hostapi"
	"github.com/comfyshim/gpupin/node"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "gpupind",
	Short: "Device-pinned GPU wrapper nodes for ComfyUI",
	Long: `gpupind registers drop-in wrapper nodes for ControlNet preprocessors
against a running ComfyUI instance. Each wrapper pins device resolution to a
single target device while the wrapped preprocessor loads and runs, which
keeps the multi-GPU extension's load balancing from splitting a
preprocessor's model across devices.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.gpupin/config.yaml)")
	rootCmd.PersistentFlags().String("host", "127.0.0.1", "ComfyUI host address")
	rootCmd.PersistentFlags().Int("port", 8188, "ComfyUI host port")
	rootCmd.PersistentFlags().String("target-device", string(node.DefaultTarget), "device wrappers pin to")
	rootCmd.PersistentFlags().String("table", "", "wrapper table YAML (default is the built-in five wrappers)")

	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("target_device", rootCmd.PersistentFlags().Lookup("target-device"))
	viper.BindPFlag("table", rootCmd.PersistentFlags().Lookup("table"))
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".gpupin"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GPUPIND")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// hostClient builds a client for the configured ComfyUI instance.
func hostClient() *hostapi.Client {
	return hostapi.NewClient(viper.GetString("host"), viper.GetInt("port"))
}

// targetDevice parses the configured pin target.
func targetDevice() (device.ID, error) {
	return device.Parse(viper.GetString("target_device"))
}

// wrapperTable loads the configured table, or the built-in one with the
// configured target applied.
func wrapperTable() ([]node.WrapperSpec, error) {
	if path := viper.GetString("table"); path != "" {
		return node.LoadTable(path)
	}

	target, err := targetDevice()
	if err != nil {
		return nil, err
	}
	table := node.DefaultTable()
	for i := range table {
		table[i].Target = target
	}
	return table, nil
}
