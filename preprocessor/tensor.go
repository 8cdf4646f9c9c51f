package preprocessor

import "github.com/comfyshim/gpupin/device"

// Tensor is device-resident data that can be moved between devices.
// Implementations come from whatever backend the host embeds; the shim only
// needs placement and movement.
type Tensor interface {
	Device() device.ID
	To(target device.ID) Tensor
}

// Rehome walks a value and moves every Tensor it finds to target. Maps,
// Values and slices are rebuilt; anything else passes through untouched.
// Inputs produced by upstream nodes may sit on whichever device the load
// balancer picked at the time, so wrappers re-home them before running.
func Rehome(v interface{}, target device.ID) interface{} {
	switch val := v.(type) {
	case Tensor:
		if val.Device() == target {
			return val
		}
		return val.To(target)
	case Values:
		out := make(Values, len(val))
		for k, item := range val {
			out[k] = Rehome(item, target)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(val))
		for k, item := range val {
			out[k] = Rehome(item, target)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = Rehome(item, target)
		}
		return out
	default:
		return v
	}
}

// RehomeValues is Rehome specialized to a node's input map.
func RehomeValues(v Values, target device.ID) Values {
	if v == nil {
		return nil
	}
	return Rehome(v, target).(Values)
}
