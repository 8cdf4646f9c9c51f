// Package preprocessor defines the seam between the shim and the wrapped
// ControlNet preprocessor implementations. A wrapped preprocessor is an
// external collaborator: the shim never modifies one, it only locates the
// entry point and calls it.
package preprocessor

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/comfyshim/gpupin/hostapi"
)

// ErrNotInstalled reports that the collaborator extension providing a
// preprocessor is not present. Registration treats it as non-fatal.
var ErrNotInstalled = errors.New("preprocessor not installed")

// Values carries a node's named inputs or outputs.
type Values map[string]interface{}

// Clone returns a shallow copy; entry values are shared.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	c := make(Values, len(v))
	for k, val := range v {
		c[k] = val
	}
	return c
}

// Runner is the entry point of a wrapped preprocessor: its node class name,
// its host metadata, and its apply function. Apply runs to completion or
// fails; there is no cancellation mid-flight.
type Runner interface {
	Name() string
	Object() *hostapi.NodeObject
	Apply(inputs Values) (outputs Values, err error)
}

// Catalog is the set of preprocessor implementations installed in this
// process. Collaborator packages register their runners by node class name;
// the wrapper registry looks them up at startup.
type Catalog struct {
	mu      sync.RWMutex
	runners map[string]Runner
}

func NewCatalog() *Catalog {
	return &Catalog{runners: make(map[string]Runner)}
}

// Register makes r discoverable under its own class name. Registering the
// same name twice keeps the newer runner.
func (c *Catalog) Register(r Runner) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runners[r.Name()] = r
}

// Lookup locates the runner for a node class, or ErrNotInstalled.
func (c *Catalog) Lookup(class string) (Runner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.runners[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotInstalled, class)
	}
	return r, nil
}

// Classes returns the registered class names, sorted.
func (c *Catalog) Classes() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	retv := make([]string, 0, len(c.runners))
	for k := range c.runners {
		retv = append(retv, k)
	}
	sort.Strings(retv)
	return retv
}
