package main

import (
	"os"

	"github.com/comfyshim/gpupin/cmd/gpupind/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
