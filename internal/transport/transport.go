package transport

import "image"

// Transport defines a generic interface for sending processed data or events.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// FrameSink receives rendered frames. WantsFrame lets the render loop skip
// copying the surface when nobody would receive it.
type FrameSink interface {
	WantsFrame() bool
	// SendFrame takes ownership of img.
	SendFrame(img *image.RGBA) error
}

// Message is one JSON message sent to viewers.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Message types.
const (
	MessageBands = "bands"
	MessageState = "state"
	MessageTempo = "tempo"
	MessageError = "error"
)

// Command is a control request received from a viewer.
type Command struct {
	Type   string   `json:"type"`
	Field  string   `json:"field,omitempty"`
	Value  *float64 `json:"value,omitempty"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
}

// Command types.
const (
	CommandSet    = "set"    // Set Field to Value.
	CommandToggle = "toggle" // Flip a boolean Field.
	CommandTap    = "tap"    // Register a tempo tap now.
	CommandResize = "resize" // Resize the surface to Width×Height.
)

// CommandHandler applies viewer commands. State is sent to each viewer when
// it connects and may return any JSON-encodable value.
type CommandHandler interface {
	HandleCommand(cmd Command) (reply any, err error)
	State() any
}
