// Package jolokia talks to the JMX beans of an application server through a Jolokia
// agent, the HTTP/JSON bridge most Java servers expose for remote management.
package jolokia

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/agentuity/session-reaper/logger"
	"github.com/cockroachdb/errors"
)

var (
	Version = "dev"
	Commit  = "unknown"
)

// DefaultURL is the agent of a server running on the local host.
const DefaultURL = "http://localhost:8778/jolokia"

type Client struct {
	baseURL string
	client  *http.Client
	logger  logger.Logger
}

type Option func(*Client)

// WithHTTPClient replaces http.DefaultClient.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

func New(log logger.Logger, baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/") + "/",
		client:  http.DefaultClient,
		logger:  log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Error is a failure reported by the agent in the response body.
type Error struct {
	Status  int
	Type    string
	Message string
}

func (e *Error) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("jolokia status %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("jolokia status %d: %s: %s", e.Status, e.Type, e.Message)
}

// NotFound reports whether the agent could not find the bean.
func (e *Error) NotFound() bool {
	return strings.HasSuffix(e.Type, "InstanceNotFoundException")
}

type request struct {
	Type      string        `json:"type"`
	MBean     string        `json:"mbean,omitempty"`
	Operation string        `json:"operation,omitempty"`
	Arguments []interface{} `json:"arguments,omitempty"`
}

type response struct {
	Status    int             `json:"status"`
	Value     json.RawMessage `json:"value"`
	ErrorType string          `json:"error_type"`
	Error     string          `json:"error"`
}

func UserAgent() string {
	gitSHA := Commit
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				gitSHA = setting.Value
			}
		}
	}
	return "session-reaper/" + Version + " (" + gitSHA + ")"
}

// do posts one request and decodes its value into out. Failures reported by the agent
// are returned as *Error.
func (c *Client) do(ctx context.Context, payload request, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "error marshalling request")
	}
	c.logger.Trace("sending %s request for %s %s", payload.Type, payload.MBean, payload.Operation)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "error creating request")
	}
	req.Header.Set("User-Agent", UserAgent())
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, "error sending request to %s", c.baseURL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "error reading response body")
	}
	c.logger.Trace("response status: %s", resp.Status)

	var result response
	if err := json.Unmarshal(respBody, &result); err != nil {
		if resp.StatusCode > 299 {
			return &Error{Status: resp.StatusCode, Message: resp.Status}
		}
		return errors.Wrap(err, "error decoding response")
	}
	if result.Status == 0 {
		result.Status = resp.StatusCode
	}
	if result.Status != http.StatusOK {
		return &Error{Status: result.Status, Type: result.ErrorType, Message: result.Error}
	}
	if out != nil && len(result.Value) > 0 {
		if err := json.Unmarshal(result.Value, out); err != nil {
			return errors.Wrapf(err, "error decoding %s value", payload.Type)
		}
	}
	return nil
}

// AgentVersion returns the version of the remote agent.
func (c *Client) AgentVersion(ctx context.Context) (string, error) {
	var v struct {
		Agent string `json:"agent"`
	}
	if err := c.do(ctx, request{Type: "version"}, &v); err != nil {
		return "", err
	}
	return v.Agent, nil
}

// Search returns the names of every bean matching pattern.
func (c *Client) Search(ctx context.Context, pattern string) ([]string, error) {
	var names []string
	if err := c.do(ctx, request{Type: "search", MBean: pattern}, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// Exec invokes operation on mbean. Overloaded operations take their signature in
// parentheses, for example expireSession(java.lang.String).
func (c *Client) Exec(ctx context.Context, mbean, operation string, out interface{}, args ...interface{}) error {
	return c.do(ctx, request{Type: "exec", MBean: mbean, Operation: operation, Arguments: args}, out)
}
