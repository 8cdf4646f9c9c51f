package hostapi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// statusMessage is one websocket message from the host. The wire format
// tags each message with a type string and a type-specific data payload.
type statusMessage struct {
	Type string
	Data interface{}
}

func (sm *statusMessage) UnmarshalJSON(b []byte) error {
	// Unmarshal into an anonymous equivalent to avoid infinite recursion.
	var temp struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}

	sm.Type = temp.Type

	switch sm.Type {
	case "execution_start":
		sm.Data = &msgExecutionStart{}
	case "executing":
		sm.Data = &msgExecuting{}
	case "progress":
		sm.Data = &msgProgress{}
	case "executed":
		sm.Data = &msgExecuted{}
	case "execution_interrupted":
		sm.Data = &msgExecutionInterrupted{}
	case "execution_error":
		sm.Data = &msgExecutionError{}
	default:
		// status, execution_cached and extension chatter carry nothing a
		// single-node invocation needs
		sm.Data = nil
	}

	if sm.Data != nil {
		if err := json.Unmarshal(temp.Data, sm.Data); err != nil {
			return err
		}
	}

	return nil
}

type msgExecutionStart struct {
	PromptID string `json:"prompt_id"`
}

type msgExecuting struct {
	Node     *string `json:"node"`
	PromptID string  `json:"prompt_id"`
}

type msgProgress struct {
	Value    int    `json:"value"`
	Max      int    `json:"max"`
	PromptID string `json:"prompt_id"`
}

type msgExecuted struct {
	Node     string                  `json:"node"`
	Output   map[string][]DataOutput `json:"-"`
	PromptID string                  `json:"prompt_id"`
}

func (m *msgExecuted) UnmarshalJSON(b []byte) error {
	var temp struct {
		Node     string                 `json:"node"`
		Output   map[string]interface{} `json:"output"`
		PromptID string                 `json:"prompt_id"`
	}
	if err := json.Unmarshal(b, &temp); err != nil {
		return err
	}

	m.Node = temp.Node
	m.PromptID = temp.PromptID
	m.Output = make(map[string][]DataOutput)
	for k, v := range temp.Output {
		entries, ok := v.([]interface{})
		if !ok {
			continue
		}
		outs := make([]DataOutput, 0, len(entries))
		for _, e := range entries {
			switch entry := e.(type) {
			case map[string]interface{}:
				out := DataOutput{}
				if fn, ok := entry["filename"].(string); ok {
					out.Filename = fn
				}
				if sf, ok := entry["subfolder"].(string); ok {
					out.Subfolder = sf
				}
				if ty, ok := entry["type"].(string); ok {
					out.Type = ty
				}
				outs = append(outs, out)
			case string:
				outs = append(outs, DataOutput{Type: "text", Text: entry})
			default:
				outs = append(outs, DataOutput{Type: "unknown", Text: fmt.Sprint(e)})
			}
		}
		m.Output[k] = outs
	}
	return nil
}

type msgExecutionInterrupted struct {
	PromptID string   `json:"prompt_id"`
	Node     string   `json:"node_id"`
	NodeType string   `json:"node_type"`
	Executed []string `json:"executed"`
}

// msgExecutionError carries a node failure verbatim from the host. It
// doubles as the error value returned to callers so the wrapped
// preprocessor's failure surfaces untransformed.
type msgExecutionError struct {
	PromptID         string                 `json:"prompt_id"`
	Node             string                 `json:"node_id"`
	NodeType         string                 `json:"node_type"`
	Executed         []string               `json:"executed"`
	ExceptionMessage string                 `json:"exception_message"`
	ExceptionType    string                 `json:"exception_type"`
	Traceback        []string               `json:"traceback"`
	CurrentInputs    map[string]interface{} `json:"current_inputs"`
}

// ExecutionError is a wrapped node's own failure, passed through unchanged.
type ExecutionError struct {
	NodeType      string
	ExceptionType string
	Message       string
	Traceback     []string
}

func (e *ExecutionError) Error() string {
	if e.ExceptionType != "" {
		return e.ExceptionType + ": " + e.Message
	}
	return e.Message
}

func (m *msgExecutionError) toError() *ExecutionError {
	return &ExecutionError{
		NodeType:      m.NodeType,
		ExceptionType: m.ExceptionType,
		Message:       m.ExceptionMessage,
		Traceback:     append([]string(nil), m.Traceback...),
	}
}

// InterruptedError reports that the host interrupted execution before the
// node finished.
type InterruptedError struct {
	NodeType string
}

func (e *InterruptedError) Error() string {
	if e.NodeType != "" {
		return "execution interrupted at " + e.NodeType
	}
	return "execution interrupted"
}

// PromptRejectedError reports that the host refused to queue the prompt.
type PromptRejectedError struct {
	Err        PromptError
	NodeErrors []interface{}
}

func (e *PromptRejectedError) Error() string {
	msg := e.Err.Message
	if e.Err.Details != "" {
		msg += ": " + e.Err.Details
	}
	return strings.TrimSpace(msg)
}
