// Package node implements the GPU wrapper nodes: drop-in replacements for
// ControlNet preprocessor nodes that pin device resolution to one target
// device while the wrapped preprocessor loads and runs.
package node

import (
	"log/slog"
	"sync/atomic"

	"github.com/comfyshim/gpupin/device"
	"github.com/comfyshim/gpupin/hostapi"
	"github.com/comfyshim/gpupin/preprocessor"
)

// Category is the menu category all wrapper nodes register under.
const Category = "preprocessors/gpu_wrapper"

// HostCache lets an adapter flush the host's model cache before pinning.
// Models cached under a previous device assignment keep their split
// placement, so a flush forces a fresh load inside the guarded region.
type HostCache interface {
	SoftEmpty() error
}

// Adapter is one wrapper node. It republishes the wrapped preprocessor's
// exact input/output declaration and, on invocation, runs the wrapped entry
// point under a device-pinned guard. One generic adapter serves every
// table entry; nothing is subclassed per preprocessor.
type Adapter struct {
	class       string
	displayName string
	target      device.ID
	runner      preprocessor.Runner
	slot        *device.Slot
	cache       HostCache

	invocations atomic.Uint64
	failures    atomic.Uint64
}

// NewAdapter wires a wrapper node around a wrapped preprocessor runner.
// cache may be nil when the host exposes no model cache control.
func NewAdapter(class, displayName string, target device.ID, runner preprocessor.Runner, slot *device.Slot, cache HostCache) *Adapter {
	return &Adapter{
		class:       class,
		displayName: displayName,
		target:      target,
		runner:      runner,
		slot:        slot,
		cache:       cache,
	}
}

// Class returns the wrapper's node class name.
func (a *Adapter) Class() string {
	return a.class
}

// DisplayName returns the wrapper's menu label.
func (a *Adapter) DisplayName() string {
	return a.displayName
}

// Target returns the device the wrapper pins to.
func (a *Adapter) Target() device.ID {
	return a.target
}

// Wraps returns the wrapped preprocessor's node class name.
func (a *Adapter) Wraps() string {
	return a.runner.Name()
}

// Object returns the wrapper's node metadata: the wrapped class's metadata
// with only the identity fields changed. Identical inputs and outputs are
// what make the wrapper indistinguishable from the node it replaces.
func (a *Adapter) Object() *hostapi.NodeObject {
	obj := a.runner.Object().Clone()
	if obj == nil {
		obj = &hostapi.NodeObject{}
	}
	obj.Name = a.class
	obj.DisplayName = a.displayName
	obj.Category = Category
	return obj
}

// Apply runs the wrapped preprocessor with device resolution pinned to the
// target. The prior resolver comes back on every exit path, and the wrapped
// preprocessor's error propagates unchanged.
func (a *Adapter) Apply(inputs preprocessor.Values) (preprocessor.Values, error) {
	a.invocations.Add(1)

	if a.cache != nil {
		if err := a.cache.SoftEmpty(); err != nil {
			slog.Warn("model cache flush failed", "wrapper", a.class, "error", err)
		}
	}

	outputs, err := device.Pinned(a.slot, a.target, func() (preprocessor.Values, error) {
		in := preprocessor.RehomeValues(inputs, a.target)
		out, werr := a.runner.Apply(in)
		if werr != nil {
			return nil, werr
		}
		return preprocessor.RehomeValues(out, a.target), nil
	})
	if err != nil {
		a.failures.Add(1)
		slog.Error("wrapped preprocessor failed", "wrapper", a.class, "target", a.target, "error", err)
		return nil, err
	}
	return outputs, nil
}

// Stats returns how often the adapter ran and how often the wrapped
// preprocessor failed.
func (a *Adapter) Stats() (invocations, failures uint64) {
	return a.invocations.Load(), a.failures.Load()
}
