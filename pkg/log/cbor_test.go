package log

import (
	"testing"
	"time"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:    ts,
		ConnectionID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction:    DirectionOut,
		Layer:        LayerTree,
		Category:     CategoryMessage,
		RemoteAddr:   "192.168.1.100:9000",
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.ConnectionID != original.ConnectionID {
		t.Errorf("ConnectionID: got %q, want %q", decoded.ConnectionID, original.ConnectionID)
	}
	if decoded.Direction != original.Direction {
		t.Errorf("Direction: got %v, want %v", decoded.Direction, original.Direction)
	}
	if decoded.Layer != original.Layer {
		t.Errorf("Layer: got %v, want %v", decoded.Layer, original.Layer)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.RemoteAddr != original.RemoteAddr {
		t.Errorf("RemoteAddr: got %q, want %q", decoded.RemoteAddr, original.RemoteAddr)
	}
}

func TestFrameEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerFraming,
		Category:     CategoryMessage,
		Frame: &FrameEvent{
			Size:      256,
			Data:      []byte{0x01, 0x02, 0x03, 0x04, 0x05},
			Truncated: true,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Frame == nil {
		t.Fatal("Frame is nil")
	}
	if decoded.Frame.Size != original.Frame.Size {
		t.Errorf("Frame.Size: got %d, want %d", decoded.Frame.Size, original.Frame.Size)
	}
	if string(decoded.Frame.Data) != string(original.Frame.Data) {
		t.Errorf("Frame.Data: got %v, want %v", decoded.Frame.Data, original.Frame.Data)
	}
	if decoded.Frame.Truncated != original.Frame.Truncated {
		t.Errorf("Frame.Truncated: got %v, want %v", decoded.Frame.Truncated, original.Frame.Truncated)
	}
}

func TestMessageEventCBORRoundTrip(t *testing.T) {
	getDirectory := uint8(1)
	subscriberCount := 3
	processingTime := 2 * time.Millisecond

	tests := []struct {
		name string
		msg  *MessageEvent
	}{
		{
			name: "request",
			msg: &MessageEvent{
				Type:      MessageTypeRequest,
				Command:   &getDirectory,
				Path:      "1.2",
				Qualified: true,
			},
		},
		{
			name: "response",
			msg: &MessageEvent{
				Type:           MessageTypeResponse,
				Path:           "1.2.3",
				ProcessingTime: &processingTime,
			},
		},
		{
			name: "notification",
			msg: &MessageEvent{
				Type:            MessageTypeNotification,
				Path:            "1.2.3",
				SubscriberCount: &subscriberCount,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Event{
				Timestamp:    time.Now(),
				ConnectionID: "conn-123",
				Direction:    DirectionOut,
				Layer:        LayerTree,
				Category:     CategoryMessage,
				Message:      tt.msg,
			}

			data, err := EncodeEvent(original)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if decoded.Message == nil {
				t.Fatal("Message is nil")
			}
			if decoded.Message.Type != tt.msg.Type {
				t.Errorf("Message.Type: got %v, want %v", decoded.Message.Type, tt.msg.Type)
			}
			if decoded.Message.Path != tt.msg.Path {
				t.Errorf("Message.Path: got %q, want %q", decoded.Message.Path, tt.msg.Path)
			}
		})
	}
}

func TestStateChangeEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerDispatch,
		Category:     CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityConnection,
			OldState: "connecting",
			NewState: "connected",
			Reason:   "handshake complete",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if decoded.StateChange.Entity != original.StateChange.Entity {
		t.Errorf("StateChange.Entity: got %v, want %v", decoded.StateChange.Entity, original.StateChange.Entity)
	}
	if decoded.StateChange.OldState != original.StateChange.OldState {
		t.Errorf("StateChange.OldState: got %q, want %q", decoded.StateChange.OldState, original.StateChange.OldState)
	}
	if decoded.StateChange.NewState != original.StateChange.NewState {
		t.Errorf("StateChange.NewState: got %q, want %q", decoded.StateChange.NewState, original.StateChange.NewState)
	}
	if decoded.StateChange.Reason != original.StateChange.Reason {
		t.Errorf("StateChange.Reason: got %q, want %q", decoded.StateChange.Reason, original.StateChange.Reason)
	}
}

func TestControlMsgEventCBORRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		ctrl *ControlMsgEvent
	}{
		{
			name: "keepalive request",
			ctrl: &ControlMsgEvent{Type: ControlMsgKeepAliveRequest},
		},
		{
			name: "keepalive response",
			ctrl: &ControlMsgEvent{Type: ControlMsgKeepAliveResponse},
		},
		{
			name: "close",
			ctrl: &ControlMsgEvent{Type: ControlMsgClose},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := Event{
				Timestamp:    time.Now(),
				ConnectionID: "conn-123",
				Direction:    DirectionIn,
				Layer:        LayerFraming,
				Category:     CategoryControl,
				ControlMsg:   tt.ctrl,
			}

			data, err := EncodeEvent(original)
			if err != nil {
				t.Fatalf("EncodeEvent failed: %v", err)
			}

			decoded, err := DecodeEvent(data)
			if err != nil {
				t.Fatalf("DecodeEvent failed: %v", err)
			}

			if decoded.ControlMsg == nil {
				t.Fatal("ControlMsg is nil")
			}
			if decoded.ControlMsg.Type != tt.ctrl.Type {
				t.Errorf("ControlMsg.Type: got %v, want %v", decoded.ControlMsg.Type, tt.ctrl.Type)
			}
		})
	}
}

func TestErrorEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerTree,
		Category:     CategoryError,
		Error: &ErrorEventData{
			Layer:   LayerTree,
			Message: "failed to decode message",
			Context: "HandleRoot",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Error == nil {
		t.Fatal("Error is nil")
	}
	if decoded.Error.Layer != original.Error.Layer {
		t.Errorf("Error.Layer: got %v, want %v", decoded.Error.Layer, original.Error.Layer)
	}
	if decoded.Error.Message != original.Error.Message {
		t.Errorf("Error.Message: got %q, want %q", decoded.Error.Message, original.Error.Message)
	}
	if decoded.Error.Context != original.Error.Context {
		t.Errorf("Error.Context: got %q, want %q", decoded.Error.Context, original.Error.Context)
	}
}

func TestCategorySnapshotString(t *testing.T) {
	if got := CategorySnapshot.String(); got != "SNAPSHOT" {
		t.Errorf("CategorySnapshot.String() = %q, want %q", got, "SNAPSHOT")
	}
}

func TestSnapshotEventCBORRoundTrip(t *testing.T) {
	original := Event{
		Timestamp:    time.Date(2026, 2, 2, 14, 30, 0, 0, time.UTC),
		ConnectionID: "conn-snap-001",
		Direction:    DirectionOut,
		Layer:        LayerDispatch,
		Category:     CategorySnapshot,
		Snapshot: &TreeSnapshotEvent{
			NodeCount:        4,
			ParameterCount:   12,
			MatrixCount:      2,
			ConnectionCount:  6,
			SubscriberCount:  3,
			ConnectedClients: 2,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Category != CategorySnapshot {
		t.Errorf("Category: got %v, want %v", decoded.Category, CategorySnapshot)
	}
	if decoded.Snapshot == nil {
		t.Fatal("Snapshot is nil")
	}
	if *decoded.Snapshot != *original.Snapshot {
		t.Errorf("Snapshot: got %+v, want %+v", decoded.Snapshot, original.Snapshot)
	}
}

func TestSnapshotEvent_BackwardCompat(t *testing.T) {
	original := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-snap-003",
		Direction:    DirectionOut,
		Layer:        LayerDispatch,
		Category:     CategorySnapshot,
		Snapshot:     &TreeSnapshotEvent{NodeCount: 1},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	// Decode into a struct without the Snapshot field (simulating an older reader).
	// The CBOR decoder is configured with ExtraDecErrorNone, so unknown keys
	// (key 15 = Snapshot) are silently ignored.
	type OldEvent struct {
		Timestamp    time.Time         `cbor:"1,keyasint"`
		ConnectionID string            `cbor:"2,keyasint"`
		Direction    Direction         `cbor:"3,keyasint"`
		Layer        Layer             `cbor:"4,keyasint"`
		Category     Category          `cbor:"5,keyasint"`
		RemoteAddr   string            `cbor:"6,keyasint,omitempty"`
		Frame        *FrameEvent       `cbor:"10,keyasint,omitempty"`
		Message      *MessageEvent     `cbor:"11,keyasint,omitempty"`
		StateChange  *StateChangeEvent `cbor:"12,keyasint,omitempty"`
		ControlMsg   *ControlMsgEvent  `cbor:"13,keyasint,omitempty"`
		Error        *ErrorEventData   `cbor:"14,keyasint,omitempty"`
		// No Snapshot field -- simulates older version
	}

	var old OldEvent
	if err := logDecMode.Unmarshal(data, &old); err != nil {
		t.Fatalf("decoding into OldEvent (without Snapshot) should succeed, got: %v", err)
	}

	if old.ConnectionID != "conn-snap-003" {
		t.Errorf("ConnectionID: got %q, want %q", old.ConnectionID, "conn-snap-003")
	}
	if old.Category != CategorySnapshot {
		t.Errorf("Category: got %v, want %v", old.Category, CategorySnapshot)
	}
}

func TestEventCBORUsesIntegerKeys(t *testing.T) {
	event := Event{
		Timestamp:    time.Now(),
		ConnectionID: "conn-123",
		Direction:    DirectionIn,
		Layer:        LayerFraming,
		Category:     CategoryMessage,
	}

	data, err := EncodeEvent(event)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	// Decode to generic map and verify keys are integers
	var rawMap map[uint64]any
	if err := logDecMode.Unmarshal(data, &rawMap); err != nil {
		t.Fatalf("failed to decode as map: %v", err)
	}

	expectedKeys := []uint64{1, 2, 3, 4, 5}
	for _, key := range expectedKeys {
		if _, ok := rawMap[key]; !ok {
			t.Errorf("expected integer key %d not found in encoded data", key)
		}
	}

	var stringMap map[string]any
	if err := logDecMode.Unmarshal(data, &stringMap); err == nil && len(stringMap) > 0 {
		t.Error("encoded data contains string keys, expected integer keys only")
	}
}
