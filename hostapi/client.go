package hostapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

/*
Host routes the shim touches:

	@routes.get("/object_info")
	@routes.get("/object_info/{node_class}")
	@routes.get("/system_stats")
	@routes.post("/prompt")
	@routes.post("/free")
*/

// ErrUnknownNodeClass is returned when the host has no node class by the
// requested name, i.e. the collaborator extension providing it is not
// installed.
var ErrUnknownNodeClass = errors.New("unknown node class")

// ProgressFunc receives progress ticks for a running node.
type ProgressFunc func(value, max int)

// Client talks to a running ComfyUI instance.
type Client struct {
	serverBaseAddress string
	clientid          string
	httpclient        *http.Client
	dialer            websocket.Dialer
}

// NewClient creates a client for the host at address:port.
func NewClient(address string, port int) *Client {
	return &Client{
		serverBaseAddress: address + ":" + strconv.Itoa(port),
		clientid:          uuid.New().String(),
		httpclient:        &http.Client{},
		dialer:            *websocket.DefaultDialer,
	}
}

// ClientID returns the unique client ID for the connection to the host.
func (c *Client) ClientID() string {
	return c.clientid
}

// Address returns the host's base address.
func (c *Client) Address() string {
	return c.serverBaseAddress
}

// SetHTTPClient replaces the underlying http client.
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpclient = client
}

// ObjectInfo retrieves metadata for all node classes the host knows.
func (c *Client) ObjectInfo() (map[string]*NodeObject, error) {
	resp, err := c.httpclient.Get(fmt.Sprintf("http://%s/object_info", c.serverBaseAddress))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	retv := map[string]*NodeObject{}
	if err = json.Unmarshal(body, &retv); err != nil {
		return nil, err
	}

	return retv, nil
}

// ObjectInfoFor retrieves metadata for a single node class. The host
// answers an empty object for classes it does not have, which surfaces
// here as ErrUnknownNodeClass.
func (c *Client) ObjectInfoFor(class string) (*NodeObject, error) {
	resp, err := c.httpclient.Get(fmt.Sprintf("http://%s/object_info/%s", c.serverBaseAddress, class))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	retv := map[string]*NodeObject{}
	if err = json.Unmarshal(body, &retv); err != nil {
		return nil, err
	}

	obj, ok := retv[class]
	if !ok || obj == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNodeClass, class)
	}
	return obj, nil
}

// SystemStats retrieves the host's OS and device inventory.
func (c *Client) SystemStats() (*SystemStats, error) {
	resp, err := c.httpclient.Get(fmt.Sprintf("http://%s/system_stats", c.serverBaseAddress))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	retv := &SystemStats{}
	if err = json.Unmarshal(body, &retv); err != nil {
		return nil, err
	}

	return retv, nil
}

// FreeMemory asks the host to drop cached models and free device memory.
// Stale cached models are how split-device loads survive a device override,
// so wrappers flush before pinning.
func (c *Client) FreeMemory(unloadModels bool) error {
	payload, _ := json.Marshal(map[string]bool{
		"unload_models": unloadModels,
		"free_memory":   true,
	})
	resp, err := c.httpclient.Post(fmt.Sprintf("http://%s/free", c.serverBaseAddress), "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("free request returned status %d", resp.StatusCode)
	}
	return nil
}

// SoftEmpty drops cached models without purging loaded weights outright.
func (c *Client) SoftEmpty() error {
	return c.FreeMemory(true)
}

// InvokeNode queues a single-node prompt on the host and blocks until the
// node finishes, reporting progress ticks through progress when non-nil.
// A node failure on the host comes back as *ExecutionError, unchanged.
func (c *Client) InvokeNode(class string, inputs map[string]interface{}, progress ProgressFunc) (map[string][]DataOutput, error) {
	conn, err := c.dialSocket()
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	promptID, err := c.queueSingleNode(class, inputs)
	if err != nil {
		return nil, err
	}

	outputs := make(map[string][]DataOutput)
	for {
		msgType, raw, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("host websocket closed: %w", err)
		}
		if msgType != websocket.TextMessage {
			// binary frames carry image previews
			continue
		}

		message := &statusMessage{}
		if err := json.Unmarshal(raw, message); err != nil {
			slog.Warn("undecodable status message", "error", err)
			continue
		}

		switch d := message.Data.(type) {
		case *msgExecuting:
			if d.PromptID == promptID && d.Node == nil {
				// final node was processed
				return outputs, nil
			}
		case *msgProgress:
			if progress != nil && (d.PromptID == "" || d.PromptID == promptID) {
				progress(d.Value, d.Max)
			}
		case *msgExecuted:
			if d.PromptID == promptID {
				for k, v := range d.Output {
					outputs[k] = append(outputs[k], v...)
				}
			}
		case *msgExecutionError:
			if d.PromptID == promptID {
				return nil, d.toError()
			}
		case *msgExecutionInterrupted:
			if d.PromptID == promptID {
				return nil, &InterruptedError{NodeType: d.NodeType}
			}
		}
	}
}

// queueSingleNode posts a prompt containing just the given node.
func (c *Client) queueSingleNode(class string, inputs map[string]interface{}) (string, error) {
	if inputs == nil {
		inputs = map[string]interface{}{}
	}
	payload, err := json.Marshal(map[string]interface{}{
		"client_id": c.clientid,
		"prompt": map[string]interface{}{
			"1": map[string]interface{}{
				"class_type": class,
				"inputs":     inputs,
			},
		},
	})
	if err != nil {
		return "", err
	}

	resp, err := c.httpclient.Post(fmt.Sprintf("http://%s/prompt", c.serverBaseAddress), "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		rejection := &PromptErrorMessage{}
		if err := json.Unmarshal(body, rejection); err == nil && rejection.Error.Message != "" {
			return "", &PromptRejectedError{Err: rejection.Error, NodeErrors: rejection.NodeErrors}
		}
		return "", fmt.Errorf("queueing prompt returned status %d", resp.StatusCode)
	}

	var queued struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.Unmarshal(body, &queued); err != nil {
		return "", err
	}
	if queued.PromptID == "" {
		return "", errors.New("host accepted prompt without a prompt_id")
	}
	return queued.PromptID, nil
}
