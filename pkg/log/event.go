package log

import "time"

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID).
	ConnectionID string `cbor:"2,keyasint"`

	// Direction indicates message flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent        `cbor:"10,keyasint,omitempty"` // S101 framing layer
	Message     *MessageEvent      `cbor:"11,keyasint,omitempty"` // Ember+ tree layer (decoded)
	StateChange *StateChangeEvent  `cbor:"12,keyasint,omitempty"` // Connection state
	ControlMsg  *ControlMsgEvent   `cbor:"13,keyasint,omitempty"` // S101 keepalive
	Error       *ErrorEventData    `cbor:"14,keyasint,omitempty"` // Errors at any layer
	Snapshot    *TreeSnapshotEvent `cbor:"15,keyasint,omitempty"` // Tree snapshot
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerFraming is the S101 byte-framing layer.
	LayerFraming Layer = 0
	// LayerTree is the Ember+ message/tree layer (decoded BER).
	LayerTree Layer = 1
	// LayerDispatch is the request dispatch layer.
	LayerDispatch Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerFraming:
		return "FRAMING"
	case LayerTree:
		return "TREE"
	case LayerDispatch:
		return "DISPATCH"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message (request/response/notification).
	CategoryMessage Category = 0
	// CategoryControl indicates a control message (keepalive request/response).
	CategoryControl Category = 1
	// CategoryState indicates a state change.
	CategoryState Category = 2
	// CategoryError indicates an error event.
	CategoryError Category = 3
	// CategorySnapshot indicates a tree snapshot event.
	CategorySnapshot Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryControl:
		return "CONTROL"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategorySnapshot:
		return "SNAPSHOT"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent captures raw frame data at the S101 framing layer.
type FrameEvent struct {
	// Size is the frame size in bytes (including BOF/EOF and CRC).
	Size int `cbor:"1,keyasint"`

	// Data is the raw frame bytes (may be truncated for large frames).
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates if Data was truncated.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent captures a decoded Ember+ request or response.
type MessageEvent struct {
	// Type distinguishes request/response/notification.
	Type MessageType `cbor:"1,keyasint"`

	// Command is the request command, for requests (GetDirectory,
	// Subscribe, Unsubscribe); zero for a plain parameter set or matrix
	// operation that carries no explicit command.
	Command *uint8 `cbor:"2,keyasint,omitempty"`

	// Path is the qualified or reconstructed dot-joined path the message
	// addressed.
	Path string `cbor:"3,keyasint,omitempty"`

	// Qualified reports whether the request addressed Path directly
	// rather than via an unqualified number chain.
	Qualified bool `cbor:"4,keyasint,omitempty"`

	// ProcessingTime is the duration from request receipt to response
	// send (response only), stored as nanoseconds.
	ProcessingTime *time.Duration `cbor:"5,keyasint,omitempty"`

	// SubscriberCount is the number of connections a notification fanned
	// out to (notification only).
	SubscriberCount *int `cbor:"6,keyasint,omitempty"`

	// Value is a parameter's new value, for a value-change notification.
	Value any `cbor:"7,keyasint,omitempty"`

	// PreviousValue is a parameter's value immediately before the change
	// that produced this notification.
	PreviousValue any `cbor:"8,keyasint,omitempty"`

	// MatrixTarget is the crosspoint target affected, for a matrix
	// connect/disconnect/setConnection notification.
	MatrixTarget *int `cbor:"9,keyasint,omitempty"`

	// MatrixSources is the resulting source set for MatrixTarget after
	// the operation was applied.
	MatrixSources []int `cbor:"10,keyasint,omitempty"`
}

// MessageType distinguishes request/response/notification.
type MessageType uint8

const (
	// MessageTypeRequest indicates a request message.
	MessageTypeRequest MessageType = 0
	// MessageTypeResponse indicates a response message.
	MessageTypeResponse MessageType = 1
	// MessageTypeNotification indicates a notification message.
	MessageTypeNotification MessageType = 2
)

// String returns the message type name.
func (m MessageType) String() string {
	switch m {
	case MessageTypeRequest:
		return "REQUEST"
	case MessageTypeResponse:
		return "RESPONSE"
	case MessageTypeNotification:
		return "NOTIFICATION"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent captures connection lifecycle events.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState is the previous state (may be empty).
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the new state.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change (if available).
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what entity changed state.
type StateEntity uint8

const (
	// StateEntityConnection indicates a connection state change.
	StateEntityConnection StateEntity = 0
	// StateEntitySubscription indicates a subscription state change.
	StateEntitySubscription StateEntity = 1
)

// String returns the state entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntityConnection:
		return "CONNECTION"
	case StateEntitySubscription:
		return "SUBSCRIPTION"
	default:
		return "UNKNOWN"
	}
}

// ControlMsgEvent captures S101 keepalive control messages.
type ControlMsgEvent struct {
	// Type of control message.
	Type ControlMsgType `cbor:"1,keyasint"`
}

// ControlMsgType indicates the type of control message.
type ControlMsgType uint8

const (
	// ControlMsgKeepAliveRequest indicates a keepalive request.
	ControlMsgKeepAliveRequest ControlMsgType = 0
	// ControlMsgKeepAliveResponse indicates a keepalive response.
	ControlMsgKeepAliveResponse ControlMsgType = 1
	// ControlMsgClose indicates connection teardown.
	ControlMsgClose ControlMsgType = 2
)

// String returns the control message type name.
func (c ControlMsgType) String() string {
	switch c {
	case ControlMsgKeepAliveRequest:
		return "KEEPALIVE_REQUEST"
	case ControlMsgKeepAliveResponse:
		return "KEEPALIVE_RESPONSE"
	case ControlMsgClose:
		return "CLOSE"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures errors at any layer.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error message.
	Message string `cbor:"2,keyasint"`

	// Context describes what operation was being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// TreeSnapshotEvent describes the shape of the live tree: how many elements of each kind exist and how many matrix
// crosspoints are currently connected.
type TreeSnapshotEvent struct {
	// NodeCount is the number of Node elements.
	NodeCount int `cbor:"1,keyasint"`

	// ParameterCount is the number of Parameter elements.
	ParameterCount int `cbor:"2,keyasint"`

	// MatrixCount is the number of Matrix elements.
	MatrixCount int `cbor:"3,keyasint"`

	// ConnectionCount is the total number of active matrix crosspoint
	// connections across all matrices.
	ConnectionCount int `cbor:"4,keyasint"`

	// SubscriberCount is the number of distinct paths with at least one
	// live subscriber.
	SubscriberCount int `cbor:"5,keyasint"`

	// ConnectedClients is the number of live client connections.
	ConnectedClients int `cbor:"6,keyasint"`
}
