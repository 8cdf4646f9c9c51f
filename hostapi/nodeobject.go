package hostapi

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NodeObject is the host's metadata for one node class, as served by
// /object_info. A wrapper node republishes its wrapped class's NodeObject
// untouched except for the identity fields, which is what makes it a
// drop-in replacement.
type NodeObject struct {
	Input        *NodeObjectInput `json:"input"`
	Output       []string         `json:"output"`
	OutputIsList []bool           `json:"output_is_list,omitempty"`
	OutputName   []string         `json:"output_name,omitempty"`
	Name         string           `json:"name"`
	DisplayName  string           `json:"display_name"`
	Description  string           `json:"description,omitempty"`
	Category     string           `json:"category"`
	OutputNode   bool             `json:"output_node"`
}

// Clone returns a deep copy, so a wrapper can rename its copy without
// touching the wrapped class's metadata.
func (n *NodeObject) Clone() *NodeObject {
	if n == nil {
		return nil
	}
	c := *n
	c.Output = append([]string(nil), n.Output...)
	c.OutputIsList = append([]bool(nil), n.OutputIsList...)
	c.OutputName = append([]string(nil), n.OutputName...)
	c.Input = n.Input.clone()
	return &c
}

// NodeObjectInput holds a node's input declaration. Parameter specs stay as
// raw JSON; the shim passes them through rather than interpreting widget
// types. Hosts render inputs in declaration order, so the order of keys is
// preserved through unmarshal and marshal.
type NodeObjectInput struct {
	Required        map[string]json.RawMessage `json:"-"`
	Optional        map[string]json.RawMessage `json:"-"`
	OrderedRequired []string                   `json:"-"`
	OrderedOptional []string                   `json:"-"`
}

func (noi *NodeObjectInput) clone() *NodeObjectInput {
	if noi == nil {
		return nil
	}
	c := &NodeObjectInput{
		OrderedRequired: append([]string(nil), noi.OrderedRequired...),
		OrderedOptional: append([]string(nil), noi.OrderedOptional...),
	}
	if noi.Required != nil {
		c.Required = make(map[string]json.RawMessage, len(noi.Required))
		for k, v := range noi.Required {
			c.Required[k] = append(json.RawMessage(nil), v...)
		}
	}
	if noi.Optional != nil {
		c.Optional = make(map[string]json.RawMessage, len(noi.Optional))
		for k, v := range noi.Optional {
			c.Optional[k] = append(json.RawMessage(nil), v...)
		}
	}
	return c
}

func (noi *NodeObjectInput) UnmarshalJSON(b []byte) error {
	dec := json.NewDecoder(strings.NewReader(string(b)))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil { // consume opening brace
		return err
	}

	for dec.More() {
		t, err := dec.Token()
		if err != nil {
			return err
		}

		key := t.(string)
		switch key {
		case "required", "optional":
			if _, err := dec.Token(); err != nil { // opening brace of nested object
				return err
			}

			entries := make(map[string]json.RawMessage)
			order := make([]string, 0)
			for dec.More() {
				entryKeyToken, err := dec.Token()
				if err != nil {
					return err
				}
				entryKey := entryKeyToken.(string)
				order = append(order, entryKey)

				raw := json.RawMessage{}
				if err := dec.Decode(&raw); err != nil {
					return err
				}
				entries[entryKey] = raw
			}

			if _, err := dec.Token(); err != nil { // closing brace of nested object
				return err
			}

			if key == "required" {
				noi.Required = entries
				noi.OrderedRequired = order
			} else {
				noi.Optional = entries
				noi.OrderedOptional = order
			}
		default:
			// consume and ignore fields the shim does not need (e.g. "hidden")
			if err := dec.Decode(new(interface{})); err != nil {
				return err
			}
		}
	}

	if _, err := dec.Token(); err != nil { // closing brace
		return err
	}

	return nil
}

func (noi *NodeObjectInput) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	writeSection := func(name string, order []string, entries map[string]json.RawMessage) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(name)
		buf.Write(key)
		buf.WriteString(":{")
		for i, k := range order {
			if i > 0 {
				buf.WriteByte(',')
			}
			ek, err := json.Marshal(k)
			if err != nil {
				return err
			}
			buf.Write(ek)
			buf.WriteByte(':')
			buf.Write(entries[k])
		}
		buf.WriteByte('}')
		return nil
	}
	if noi.Required != nil {
		if err := writeSection("required", noi.OrderedRequired, noi.Required); err != nil {
			return nil, err
		}
	}
	if noi.Optional != nil {
		if err := writeSection("optional", noi.OrderedOptional, noi.Optional); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
