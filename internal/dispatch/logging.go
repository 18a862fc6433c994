package dispatch

import (
	"time"

	"github.com/emberplus/emberd/internal/connection"
	"github.com/emberplus/emberd/internal/tree"
	"github.com/emberplus/emberd/pkg/log"
)

// matrixOp describes one touched crosspoint target and its resulting
// source set, for logMatrixChange's {target, sources, client} payload.
type matrixOp struct {
	target  int
	sources []int
}

func (d *Dispatcher) logError(client *connection.Connection, err error) {
	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: client.ID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerDispatch,
		Category:     log.CategoryError,
		RemoteAddr:   client.RemoteAddress(),
		Error: &log.ErrorEventData{
			Layer:   log.LayerDispatch,
			Message: err.Error(),
			Context: "handle_root",
		},
	})
}

func (d *Dispatcher) logProcessingTime(client *connection.Connection, elapsed time.Duration) {
	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: client.ID(),
		Direction:    log.DirectionOut,
		Layer:        log.LayerDispatch,
		Category:     log.CategoryMessage,
		RemoteAddr:   client.RemoteAddress(),
		Message: &log.MessageEvent{
			Type:           log.MessageTypeResponse,
			ProcessingTime: &elapsed,
		},
	})
}

func (d *Dispatcher) logSubscribe(client *connection.Connection, path string, pathCount int) {
	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: client.ID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerDispatch,
		Category:     log.CategoryState,
		RemoteAddr:   client.RemoteAddress(),
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntitySubscription,
			NewState: "subscribed",
			Reason:   path,
		},
	})
}

// logValueChange records value-change(element, previous_value): target's
// value as of just before the write that produced newValue.
func (d *Dispatcher) logValueChange(client *connection.Connection, target tree.Element, previous, newValue any) {
	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: client.ID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerDispatch,
		Category:     log.CategoryMessage,
		RemoteAddr:   client.RemoteAddress(),
		Message: &log.MessageEvent{
			Type:          log.MessageTypeNotification,
			Path:          target.Path(),
			Qualified:     true,
			Value:         newValue,
			PreviousValue: previous,
		},
	})
}

func (d *Dispatcher) logMatrixChange(client *connection.Connection, target tree.Element, op matrixOp) {
	targetNum := op.target
	d.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: client.ID(),
		Direction:    log.DirectionIn,
		Layer:        log.LayerDispatch,
		Category:     log.CategoryMessage,
		RemoteAddr:   client.RemoteAddress(),
		Message: &log.MessageEvent{
			Type:          log.MessageTypeNotification,
			Path:          target.Path(),
			Qualified:     true,
			MatrixTarget:  &targetNum,
			MatrixSources: op.sources,
		},
	})
}
