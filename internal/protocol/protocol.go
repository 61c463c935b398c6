// Package protocol defines the NDJSON messages exchanged with `planloop engine --stdio`.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

// CommandType enumerates all supported client -> engine commands.
type CommandType string

const (
	CommandUserMessage   CommandType = "user_message"
	CommandCancelRequest CommandType = "cancel_request"
	CommandListTools     CommandType = "list_tools"
)

// Command is a marker interface implemented by all protocol commands.
type Command interface {
	GetType() CommandType
}

// UserMessageCommand starts a run for one request.
type UserMessageCommand struct {
	Type      CommandType `json:"type"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id,omitempty"`
	MaxSteps  int         `json:"max_steps,omitempty"`
}

// GetType implements Command.
func (c UserMessageCommand) GetType() CommandType { return CommandUserMessage }

// CancelRequestCommand cancels the in-flight run.
type CancelRequestCommand struct {
	Type      CommandType `json:"type"`
	RequestID string      `json:"request_id,omitempty"`
}

// GetType implements Command.
func (c CancelRequestCommand) GetType() CommandType { return CommandCancelRequest }

// ListToolsCommand asks for the capability descriptors.
type ListToolsCommand struct {
	Type CommandType `json:"type"`
}

// GetType implements Command.
func (c ListToolsCommand) GetType() CommandType { return CommandListTools }

type rawCommand struct {
	Type CommandType `json:"type"`
}

// DecodeCommand converts raw JSON into a strongly typed command.
// A user_message without a request_id gets a fresh one.
func DecodeCommand(data []byte) (Command, error) {
	var base rawCommand
	if err := json.Unmarshal(data, &base); err != nil {
		return nil, fmt.Errorf("decode command: %w", err)
	}

	switch base.Type {
	case CommandUserMessage:
		var cmd UserMessageCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode user_message: %w", err)
		}
		if cmd.Message == "" {
			return nil, errors.New("user_message requires message")
		}
		if cmd.MaxSteps < 0 {
			return nil, errors.New("user_message max_steps must not be negative")
		}
		if cmd.RequestID == "" {
			cmd.RequestID = NewRequestID()
		}
		return cmd, nil
	case CommandCancelRequest:
		var cmd CancelRequestCommand
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("decode cancel_request: %w", err)
		}
		return cmd, nil
	case CommandListTools:
		return ListToolsCommand{Type: CommandListTools}, nil
	case "":
		return nil, errors.New("command type is required")
	default:
		return nil, fmt.Errorf("unknown command type: %s", base.Type)
	}
}

// NewRequestID generates a new opaque request identifier.
func NewRequestID() string {
	return uuid.NewString()
}

// EventType enumerates engine -> client events.
type EventType string

const (
	EventStatus    EventType = "status"
	EventStep      EventType = "step"
	EventDone      EventType = "done"
	EventError     EventType = "error"
	EventCancelled EventType = "cancelled"
	EventTools     EventType = "tools"
)

// Event is implemented by every outgoing message.
type Event interface {
	isEvent()
	GetType() EventType
}

// MarshalEvent serializes an event into JSON for NDJSON transport.
func MarshalEvent(e Event) ([]byte, error) {
	return json.Marshal(e)
}

type eventBase struct {
	Type      EventType `json:"type"`
	RequestID string    `json:"request_id,omitempty"`
}

func (eventBase) isEvent() {}

// StatusEvent communicates coarse engine state ("ready", "running", "idle").
type StatusEvent struct {
	eventBase
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// NewStatusEvent constructs a status event.
func NewStatusEvent(requestID, status, detail string) StatusEvent {
	return StatusEvent{
		eventBase: eventBase{Type: EventStatus, RequestID: requestID},
		Status:    status,
		Detail:    detail,
	}
}

// GetType implements Event.
func (e StatusEvent) GetType() EventType { return e.Type }

// StepEvent carries one non-final step of a run.
type StepEvent struct {
	eventBase
	Step   int               `json:"step"`
	Result engine.StepResult `json:"result"`
}

// NewStepEvent constructs a step event.
func NewStepEvent(requestID string, step int, result engine.StepResult) StepEvent {
	return StepEvent{
		eventBase: eventBase{Type: EventStep, RequestID: requestID},
		Step:      step,
		Result:    result,
	}
}

// GetType implements Event.
func (e StepEvent) GetType() EventType { return e.Type }

// DoneEvent carries the final step of a run.
type DoneEvent struct {
	eventBase
	RunID       string           `json:"run_id,omitempty"`
	State       engine.StateName `json:"state"`
	FinalAnswer string           `json:"final_answer"`
	Steps       int              `json:"steps"`
}

// NewDoneEvent constructs a done event from the final step.
func NewDoneEvent(requestID, runID string, steps int, final engine.StepResult) DoneEvent {
	return DoneEvent{
		eventBase:   eventBase{Type: EventDone, RequestID: requestID},
		RunID:       runID,
		State:       final.CurrentState,
		FinalAnswer: final.FinalAnswer,
		Steps:       steps,
	}
}

// GetType implements Event.
func (e DoneEvent) GetType() EventType { return e.Type }

// ErrorEvent reports a protocol or engine failure outside a run's normal flow.
type ErrorEvent struct {
	eventBase
	Message string `json:"message"`
}

// NewErrorEvent constructs an error event.
func NewErrorEvent(requestID, message string) ErrorEvent {
	return ErrorEvent{
		eventBase: eventBase{Type: EventError, RequestID: requestID},
		Message:   message,
	}
}

// GetType implements Event.
func (e ErrorEvent) GetType() EventType { return e.Type }

// CancelledEvent acknowledges a cancelled run.
type CancelledEvent struct {
	eventBase
	Reason string `json:"reason,omitempty"`
}

// NewCancelledEvent constructs a cancelled event.
func NewCancelledEvent(requestID, reason string) CancelledEvent {
	return CancelledEvent{
		eventBase: eventBase{Type: EventCancelled, RequestID: requestID},
		Reason:    reason,
	}
}

// GetType implements Event.
func (e CancelledEvent) GetType() EventType { return e.Type }

// ToolsEvent lists the registry's capability descriptors.
type ToolsEvent struct {
	eventBase
	Tools []engine.ToolDescriptor `json:"tools"`
}

// NewToolsEvent constructs a tools event.
func NewToolsEvent(tools []engine.ToolDescriptor) ToolsEvent {
	return ToolsEvent{
		eventBase: eventBase{Type: EventTools},
		Tools:     tools,
	}
}

// GetType implements Event.
func (e ToolsEvent) GetType() EventType { return e.Type }
