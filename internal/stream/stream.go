// Package stream forwards test outcomes to the course log collector over
// a persistent websocket. The stream is advisory: local state is
// authoritative, and a lost frame degrades to a warning rather than
// aborting the run.
package stream

import (
	"encoding/json"
	"fmt"

	"github.com/gorilla/websocket"
)

// Reporter is what the runner talks to. Implementations must preserve
// send order; they are never called concurrently.
type Reporter interface {
	// ReportTest forwards one test outcome.
	ReportTest(report TestReport) error
	// ReportStatus forwards the overall pass/fail once, after the last
	// test.
	ReportStatus(success bool) error
	// Disconnect announces the end of the stream and releases the
	// connection.
	Disconnect() error
}

// TestReport is the per-test payload carried inside a log event.
type TestReport struct {
	Slug     string `json:"slug"`
	Output   string `json:"output"`
	Passed   bool   `json:"passed"`
	Optional bool   `json:"optional,omitempty"`
}

// event is the wire frame. One struct covers all four event types; the
// omitempty tags keep absent fields off the wire.
type event struct {
	EventType string `json:"event_type"`
	StreamID  string `json:"stream_id,omitempty"`
	Bytes     string `json:"bytes,omitempty"`
	Success   *bool  `json:"success,omitempty"`
}

// TransportError wraps a failed send. The runner treats these as warnings
// for log events and as after-the-fact reportable errors for the final
// status and disconnect frames.
type TransportError struct {
	Event string
	Err   error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream %s event failed: %v", e.Event, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Client is a Reporter over a single long-lived websocket. There is no
// reconnect logic: a dropped connection is terminal for streaming but not
// for the run.
type Client struct {
	conn *websocket.Conn
}

// Dial connects to the collector and sends the init event carrying the
// session's stream identifier.
func Dial(wsURL, streamID string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("connect log stream %s: %w", wsURL, err)
	}

	c := &Client{conn: conn}
	if err := c.send(event{EventType: "init", StreamID: streamID}); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

// ReportTest sends a log event with the JSON-encoded report as its
// payload.
func (c *Client) ReportTest(report TestReport) error {
	payload, err := json.Marshal(report)
	if err != nil {
		return &TransportError{Event: "log", Err: err}
	}
	return c.send(event{EventType: "log", Bytes: string(payload)})
}

// ReportStatus sends the terminal status event.
func (c *Client) ReportStatus(success bool) error {
	return c.send(event{EventType: "status", Success: &success})
}

// Disconnect sends the disconnect event and closes the connection.
func (c *Client) Disconnect() error {
	defer c.conn.Close()
	return c.send(event{EventType: "disconnect"})
}

func (c *Client) send(ev event) error {
	frame, err := json.Marshal(ev)
	if err != nil {
		return &TransportError{Event: ev.EventType, Err: err}
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return &TransportError{Event: ev.EventType, Err: err}
	}
	return nil
}

// Nop is a Reporter that drops everything. Used when no collector is
// reachable, which must not change how a run proceeds.
type Nop struct{}

func (Nop) ReportTest(TestReport) error { return nil }
func (Nop) ReportStatus(bool) error     { return nil }
func (Nop) Disconnect() error           { return nil }
