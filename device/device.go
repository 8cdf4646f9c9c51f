package device

import (
	"fmt"
	"strconv"
	"strings"
)

// ID identifies a compute device using the host's torch.device syntax,
// e.g. "cuda:0", "cuda:1", "cpu", "mps".
type ID string

const (
	CPU ID = "cpu"
	MPS ID = "mps"
)

// CUDA returns the ID for the CUDA device at the given index.
func CUDA(index int) ID {
	return ID("cuda:" + strconv.Itoa(index))
}

// Kind returns the device kind portion of the ID ("cuda", "cpu", "mps").
func (id ID) Kind() string {
	s := string(id)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		return s[:i]
	}
	return s
}

// Index returns the device ordinal, or -1 when the ID carries none
// (e.g. "cpu" or a bare "cuda").
func (id ID) Index() int {
	s := string(id)
	i := strings.IndexByte(s, ':')
	if i < 0 {
		return -1
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return -1
	}
	return n
}

func (id ID) String() string {
	return string(id)
}

// Parse validates s as a device ID. An ID that parses is not guaranteed to
// name a device present in the running environment; a missing device only
// surfaces as a failure from whatever work targets it.
func Parse(s string) (ID, error) {
	kind, index, found := strings.Cut(s, ":")
	switch kind {
	case "cuda", "xpu", "npu", "mps", "cpu":
	default:
		return "", fmt.Errorf("unknown device kind %q", s)
	}
	if found {
		n, err := strconv.Atoi(index)
		if err != nil || n < 0 {
			return "", fmt.Errorf("invalid device index in %q", s)
		}
	}
	return ID(s), nil
}

// Resolver answers "which device should new model loads target right now".
// The host normally installs a static resolver; the multi-GPU extension
// replaces it with a load-balancing one.
type Resolver interface {
	Resolve() ID
}

// ResolverFunc adapts a plain function to the Resolver interface.
type ResolverFunc func() ID

func (f ResolverFunc) Resolve() ID {
	return f()
}

// Fixed returns a Resolver that always yields id.
func Fixed(id ID) Resolver {
	return ResolverFunc(func() ID { return id })
}
