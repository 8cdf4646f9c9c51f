package node

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/comfyshim/gpupin/device"
)

// DefaultTarget is where preprocessor model weights are expected to live.
const DefaultTarget = device.ID("cuda:0")

// WrapperSpec declares one wrapper node: which preprocessor class it wraps,
// what it is called, and which device it pins to.
type WrapperSpec struct {
	Class       string    `yaml:"class"`
	Wraps       string    `yaml:"wraps"`
	DisplayName string    `yaml:"display_name"`
	Target      device.ID `yaml:"target_device"`
}

// DefaultTable is the built-in wrapper set: the five ControlNet
// preprocessors known to load multi-component models and trip over
// split-device placement.
func DefaultTable() []WrapperSpec {
	return []WrapperSpec{
		{Class: "DepthAnythingV2Wrapper", Wraps: "DepthAnythingV2Preprocessor", DisplayName: "DepthAnything V2 (GPU Wrapper)", Target: DefaultTarget},
		{Class: "DWPreprocessorWrapper", Wraps: "DWPreprocessor", DisplayName: "DWPose (GPU Wrapper)", Target: DefaultTarget},
		{Class: "CannyEdgePreprocessorWrapper", Wraps: "CannyEdgePreprocessor", DisplayName: "Canny Edge (GPU Wrapper)", Target: DefaultTarget},
		{Class: "OpenposePreprocessorWrapper", Wraps: "OpenposePreprocessor", DisplayName: "OpenPose (GPU Wrapper)", Target: DefaultTarget},
		{Class: "MidasDepthMapWrapper", Wraps: "MiDaS-DepthMapPreprocessor", DisplayName: "Midas Depth (GPU Wrapper)", Target: DefaultTarget},
	}
}

type tableFile struct {
	TargetDevice string        `yaml:"target_device"`
	Wrappers     []WrapperSpec `yaml:"wrappers"`
}

// LoadTable reads a wrapper table from a YAML file. A file-level
// target_device fills entries that do not set their own; entries missing a
// display name get "<wrapped class> (GPU Wrapper)".
func LoadTable(path string) ([]WrapperSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tf tableFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing wrapper table %s: %w", path, err)
	}
	if len(tf.Wrappers) == 0 {
		return nil, fmt.Errorf("wrapper table %s declares no wrappers", path)
	}

	fallback := DefaultTarget
	if tf.TargetDevice != "" {
		fallback, err = device.Parse(tf.TargetDevice)
		if err != nil {
			return nil, fmt.Errorf("wrapper table %s: %w", path, err)
		}
	}

	for i := range tf.Wrappers {
		w := &tf.Wrappers[i]
		if w.Wraps == "" {
			return nil, fmt.Errorf("wrapper table %s: entry %d has no wrapped class", path, i)
		}
		if w.Class == "" {
			w.Class = w.Wraps + "Wrapper"
		}
		if w.DisplayName == "" {
			w.DisplayName = w.Wraps + " (GPU Wrapper)"
		}
		if w.Target == "" {
			w.Target = fallback
		} else if _, err := device.Parse(string(w.Target)); err != nil {
			return nil, fmt.Errorf("wrapper table %s: entry %q: %w", path, w.Class, err)
		}
	}

	return tf.Wrappers, nil
}
