package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/comfyshim/gpupin/device"
	"github.com/comfyshim/gpupin/hostapi"
	"github.com/comfyshim/gpupin/node"
	"github.com/comfyshim/gpupin/preprocessor"
)

type statsClient interface {
	SystemStats() (*hostapi.SystemStats, error)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Register wrappers and serve the manifest",
	Long: `Probe the ComfyUI instance for the wrapped preprocessors, register a
wrapper node for each one found, and serve the wrapper manifest plus metrics
over HTTP.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", ":8189", "address for the manifest/metrics endpoint")
	viper.BindPFlag("listen", serveCmd.Flags().Lookup("listen"))
}

func runServe(cmd *cobra.Command, args []string) error {
	target, err := targetDevice()
	if err != nil {
		return err
	}
	table, err := wrapperTable()
	if err != nil {
		return err
	}

	logHostSummary()

	client := hostClient()
	if err := checkTargetPresent(client, target); err != nil {
		return err
	}

	// locate the wrapped preprocessors on the host
	catalog := preprocessor.NewCatalog()
	for _, spec := range table {
		runner, err := preprocessor.Discover(client, spec.Wraps)
		if errors.Is(err, preprocessor.ErrNotInstalled) {
			continue // the registry records and reports the gap
		}
		if err != nil {
			return fmt.Errorf("probing %s: %w", spec.Wraps, err)
		}
		catalog.Register(runner)
	}

	slot := device.NewSlot(device.Fixed(target))
	registry := node.BuildRegistry(table, catalog, slot, client)
	registerMetrics(registry)

	router := mux.NewRouter()
	router.HandleFunc("/wrappers", wrappersHandler(registry)).Methods("GET")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	}).Methods("GET")
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	srv := &http.Server{
		Addr:    viper.GetString("listen"),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("serving wrapper manifest", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		slog.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// logHostSummary records what this machine looks like; placement bugs are
// hard to read from logs without it.
func logHostSummary() {
	if vm, err := mem.VirtualMemory(); err == nil {
		slog.Info("host memory", "total_mb", vm.Total/1024/1024, "available_mb", vm.Available/1024/1024)
	}
	if threads, err := cpu.Counts(true); err == nil {
		slog.Info("host cpu", "threads", threads)
	}
}

// checkTargetPresent warns when the configured target device is not in the
// host's inventory. Pinning to an absent device is not a startup error; the
// failure belongs to the wrapped preprocessor that first targets it.
func checkTargetPresent(client statsClient, target device.ID) error {
	stats, err := client.SystemStats()
	if err != nil {
		return fmt.Errorf("querying host device inventory: %w", err)
	}

	found := false
	for _, d := range stats.Devices {
		slog.Info("host device", "name", d.Name, "type", d.Type, "index", d.Index, "vram_free_mb", d.VRAM_Free/1024/1024)
		if d.Type == target.Kind() && (target.Index() < 0 || d.Index == target.Index()) {
			found = true
		}
	}
	if !found && target.Kind() != "cpu" {
		slog.Warn("target device not in host inventory", "target", target)
	}
	return nil
}

type wrapperInfo struct {
	Class        string `json:"class"`
	DisplayName  string `json:"display_name"`
	Wraps        string `json:"wraps"`
	TargetDevice string `json:"target_device"`
	Invocations  uint64 `json:"invocations"`
	Failures     uint64 `json:"failures"`
}

type wrappersResponse struct {
	Wrappers []wrapperInfo `json:"wrappers"`
	Missing  []string      `json:"missing"`
	Count    int           `json:"count"`
}

func wrappersHandler(registry *node.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		classes := registry.Classes()
		resp := wrappersResponse{
			Wrappers: make([]wrapperInfo, 0, len(classes)),
			Missing:  registry.Missing(),
			Count:    len(classes),
		}
		for _, class := range classes {
			a, ok := registry.Adapter(class)
			if !ok {
				continue
			}
			invocations, failures := a.Stats()
			resp.Wrappers = append(resp.Wrappers, wrapperInfo{
				Class:        a.Class(),
				DisplayName:  a.DisplayName(),
				Wraps:        a.Wraps(),
				TargetDevice: a.Target().String(),
				Invocations:  invocations,
				Failures:     failures,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
