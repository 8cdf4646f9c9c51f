package node

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comfyshim/gpupin/device"
	"github.com/comfyshim/gpupin/hostapi"
	"github.com/comfyshim/gpupin/preprocessor"
)

// loadingRunner mimics a preprocessor whose model load consults the
// device-resolution slot, like the real ones do through the host's
// model management module.
type loadingRunner struct {
	name     string
	slot     *device.Slot
	loadedOn []device.ID
	seen     preprocessor.Values
	fail     error
}

func (l *loadingRunner) Name() string { return l.name }

func (l *loadingRunner) Object() *hostapi.NodeObject {
	return &hostapi.NodeObject{
		Name:        l.name,
		DisplayName: l.name,
		Category:    "ControlNet Preprocessors",
		Output:      []string{"IMAGE"},
	}
}

func (l *loadingRunner) Apply(inputs preprocessor.Values) (preprocessor.Values, error) {
	// model load + inference both ask for the current device
	l.loadedOn = append(l.loadedOn, l.slot.Resolve(), l.slot.Resolve())
	l.seen = inputs
	if l.fail != nil {
		return nil, l.fail
	}
	return preprocessor.Values{"image": "processed-" + inputs["image"].(string)}, nil
}

type countingCache struct {
	flushes int
	fail    error
}

func (c *countingCache) SoftEmpty() error {
	c.flushes++
	return c.fail
}

func TestAdapterPinsDeviceForWholeRun(t *testing.T) {
	slot := device.NewSlot(device.Fixed(device.CUDA(1)))
	runner := &loadingRunner{name: "DepthAnythingV2Preprocessor", slot: slot}
	cache := &countingCache{}
	a := NewAdapter("DepthAnythingV2Wrapper", "DepthAnything V2 (GPU Wrapper)", device.CUDA(0), runner, slot, cache)

	out, err := a.Apply(preprocessor.Values{"image": "portrait.png"})
	require.NoError(t, err)
	require.Equal(t, preprocessor.Values{"image": "processed-portrait.png"}, out)

	require.Equal(t, []device.ID{device.CUDA(0), device.CUDA(0)}, runner.loadedOn)
	require.Equal(t, device.CUDA(1), slot.Resolve(), "slot not restored after run")
	require.Equal(t, 1, cache.flushes, "model cache not flushed before pinning")
}

func TestAdapterPassThrough(t *testing.T) {
	slot := device.NewSlot(device.Fixed(device.CUDA(0)))
	runner := &loadingRunner{name: "CannyEdgePreprocessor", slot: slot}
	a := NewAdapter("CannyEdgePreprocessorWrapper", "Canny Edge (GPU Wrapper)", device.CUDA(0), runner, slot, nil)

	inputs := preprocessor.Values{"image": "edges.png", "low_threshold": 100, "high_threshold": 200}

	wrapped, err := a.Apply(inputs.Clone())
	require.NoError(t, err)
	unwrapped, err := runner.Apply(inputs.Clone())
	require.NoError(t, err)

	require.Equal(t, unwrapped, wrapped, "wrapper output differs from the unwrapped preprocessor")
	require.Equal(t, inputs, runner.seen, "inputs were not passed through unchanged")
}

func TestAdapterPropagatesErrorAfterRestore(t *testing.T) {
	slot := device.NewSlot(device.Fixed(device.CUDA(1)))
	boom := errors.New("invalid device ordinal")
	runner := &loadingRunner{name: "DWPreprocessor", slot: slot, fail: boom}
	a := NewAdapter("DWPreprocessorWrapper", "DWPose (GPU Wrapper)", device.CUDA(7), runner, slot, nil)

	_, err := a.Apply(preprocessor.Values{"image": "pose.png"})
	require.ErrorIs(t, err, boom, "wrapped error must propagate unchanged")
	require.Equal(t, device.CUDA(1), slot.Resolve(), "slot not restored after failure")

	invocations, failures := a.Stats()
	require.EqualValues(t, 1, invocations)
	require.EqualValues(t, 1, failures)
}

func TestAdapterRehomesTensorInputs(t *testing.T) {
	slot := device.NewSlot(device.Fixed(device.CUDA(0)))
	runner := &loadingRunner{name: "OpenposePreprocessor", slot: slot}
	a := NewAdapter("OpenposePreprocessorWrapper", "OpenPose (GPU Wrapper)", device.CUDA(0), runner, slot, nil)

	misplaced := &testTensor{dev: device.CUDA(1)}
	_, err := a.Apply(preprocessor.Values{"image": "pose.png", "latent": misplaced})
	require.NoError(t, err)

	moved, ok := runner.seen["latent"].(preprocessor.Tensor)
	require.True(t, ok)
	require.Equal(t, device.CUDA(0), moved.Device(), "tensor input not re-homed to target")
}

func TestAdapterObjectIsDropInReplacement(t *testing.T) {
	slot := device.NewSlot(device.Fixed(device.CUDA(0)))
	runner := &loadingRunner{name: "MiDaS-DepthMapPreprocessor", slot: slot}
	a := NewAdapter("MidasDepthMapWrapper", "Midas Depth (GPU Wrapper)", device.CUDA(0), runner, slot, nil)

	obj := a.Object()
	require.Equal(t, "MidasDepthMapWrapper", obj.Name)
	require.Equal(t, "Midas Depth (GPU Wrapper)", obj.DisplayName)
	require.Equal(t, Category, obj.Category)
	require.Equal(t, runner.Object().Output, obj.Output, "output declaration must mirror the wrapped class")
	require.Equal(t, "MiDaS-DepthMapPreprocessor", a.Wraps())
}

func TestAdapterSurvivesCacheFlushFailure(t *testing.T) {
	slot := device.NewSlot(device.Fixed(device.CUDA(0)))
	runner := &loadingRunner{name: "DWPreprocessor", slot: slot}
	cache := &countingCache{fail: errors.New("host busy")}
	a := NewAdapter("DWPreprocessorWrapper", "DWPose (GPU Wrapper)", device.CUDA(0), runner, slot, cache)

	_, err := a.Apply(preprocessor.Values{"image": "pose.png"})
	require.NoError(t, err, "a failed cache flush must not fail the run")
	require.Equal(t, 1, cache.flushes)
}

type testTensor struct {
	dev device.ID
}

func (f *testTensor) Device() device.ID { return f.dev }
func (f *testTensor) To(target device.ID) preprocessor.Tensor {
	return &testTensor{dev: target}
}
