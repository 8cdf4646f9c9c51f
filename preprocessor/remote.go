package preprocessor

import (
	"errors"
	"fmt"

	"github.com/comfyshim/gpupin/hostapi"
)

// HostInvoker is the part of the host client a remote runner needs.
// *hostapi.Client satisfies it.
type HostInvoker interface {
	ObjectInfoFor(class string) (*hostapi.NodeObject, error)
	InvokeNode(class string, inputs map[string]interface{}, progress hostapi.ProgressFunc) (map[string][]hostapi.DataOutput, error)
}

// RemoteRunner adapts a preprocessor that lives on a running ComfyUI
// instance into a Runner. Discover probes the host once; Apply queues a
// single-node prompt and returns its outputs, or the node's own failure.
type RemoteRunner struct {
	class    string
	object   *hostapi.NodeObject
	host     HostInvoker
	progress hostapi.ProgressFunc
}

// Discover probes the host for a node class. A class the host does not
// have comes back as ErrNotInstalled so remote and in-process discovery
// fail the same way; a host that cannot be reached is a real error.
func Discover(host HostInvoker, class string) (*RemoteRunner, error) {
	obj, err := host.ObjectInfoFor(class)
	if errors.Is(err, hostapi.ErrUnknownNodeClass) {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, class)
	}
	if err != nil {
		return nil, err
	}
	return &RemoteRunner{class: class, object: obj, host: host}, nil
}

// SetProgress installs a progress callback for subsequent Apply calls.
func (r *RemoteRunner) SetProgress(progress hostapi.ProgressFunc) {
	r.progress = progress
}

func (r *RemoteRunner) Name() string {
	return r.class
}

func (r *RemoteRunner) Object() *hostapi.NodeObject {
	return r.object
}

func (r *RemoteRunner) Apply(inputs Values) (Values, error) {
	outputs, err := r.host.InvokeNode(r.class, inputs, r.progress)
	if err != nil {
		return nil, err
	}
	retv := make(Values, len(outputs))
	for k, v := range outputs {
		retv[k] = v
	}
	return retv, nil
}
