package node

import (
	"fmt"
	"log/slog"

	"github.com/comfyshim/gpupin/device"
	"github.com/comfyshim/gpupin/hostapi"
	"github.com/comfyshim/gpupin/preprocessor"
)

// Registry holds the wrapper nodes that could actually be built: one per
// table entry whose wrapped preprocessor is installed. A missing
// collaborator produces a warning and nothing else; startup never fails
// over an absent preprocessor.
type Registry struct {
	adapters map[string]*Adapter
	order    []string
	missing  []string
}

// BuildRegistry probes each table entry against the catalog and registers
// an adapter for every wrapped preprocessor it finds. cache may be nil.
func BuildRegistry(table []WrapperSpec, catalog *preprocessor.Catalog, slot *device.Slot, cache HostCache) *Registry {
	r := &Registry{adapters: make(map[string]*Adapter, len(table))}

	for _, spec := range table {
		runner, err := catalog.Lookup(spec.Wraps)
		if err != nil {
			slog.Warn(fmt.Sprintf("%s not available", spec.Wraps), "error", err)
			r.missing = append(r.missing, spec.Wraps)
			continue
		}

		if _, exists := r.adapters[spec.Class]; !exists {
			r.order = append(r.order, spec.Class)
		}
		r.adapters[spec.Class] = NewAdapter(spec.Class, spec.DisplayName, spec.Target, runner, slot, cache)
		slog.Info(fmt.Sprintf("%s loaded successfully", spec.Class))
	}

	slog.Info(fmt.Sprintf("registered %d GPU wrapper nodes", len(r.order)), "classes", r.order)
	return r
}

// Adapter returns the wrapper registered under class.
func (r *Registry) Adapter(class string) (*Adapter, bool) {
	a, ok := r.adapters[class]
	return a, ok
}

// Classes returns registered wrapper class names in registration order.
func (r *Registry) Classes() []string {
	return append([]string(nil), r.order...)
}

// DisplayNames maps registered wrapper classes to their menu labels.
func (r *Registry) DisplayNames() map[string]string {
	retv := make(map[string]string, len(r.adapters))
	for class, a := range r.adapters {
		retv[class] = a.DisplayName()
	}
	return retv
}

// Missing returns the wrapped classes that could not be located.
func (r *Registry) Missing() []string {
	return append([]string(nil), r.missing...)
}

// Objects returns the node metadata for every registered wrapper, keyed by
// wrapper class. This is the registry's contribution to /object_info.
func (r *Registry) Objects() map[string]*hostapi.NodeObject {
	retv := make(map[string]*hostapi.NodeObject, len(r.adapters))
	for class, a := range r.adapters {
		retv[class] = a.Object()
	}
	return retv
}

// Stats sums invocation counters across registered wrappers.
func (r *Registry) Stats() (invocations, failures uint64) {
	for _, a := range r.adapters {
		i, f := a.Stats()
		invocations += i
		failures += f
	}
	return invocations, failures
}
