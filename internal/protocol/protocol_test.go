package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    CommandType
		wantErr string
	}{
		{name: "user message", input: `{"type":"user_message","request_id":"r1","message":"weather in Tokyo?"}`, want: CommandUserMessage},
		{name: "cancel", input: `{"type":"cancel_request","request_id":"r1"}`, want: CommandCancelRequest},
		{name: "list tools", input: `{"type":"list_tools"}`, want: CommandListTools},
		{name: "missing message", input: `{"type":"user_message"}`, wantErr: "user_message requires message"},
		{name: "negative budget", input: `{"type":"user_message","message":"x","max_steps":-1}`, wantErr: "max_steps"},
		{name: "missing type", input: `{}`, wantErr: "command type is required"},
		{name: "unknown type", input: `{"type":"reboot"}`, wantErr: "unknown command type: reboot"},
		{name: "not json", input: `hello`, wantErr: "decode command"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := DecodeCommand([]byte(tt.input))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.GetType())
		})
	}
}

func TestDecodeCommand_AssignsRequestID(t *testing.T) {
	cmd, err := DecodeCommand([]byte(`{"type":"user_message","message":"hi"}`))
	require.NoError(t, err)

	msg, ok := cmd.(UserMessageCommand)
	require.True(t, ok)
	assert.NotEmpty(t, msg.RequestID)
	assert.Equal(t, "hi", msg.Message)
}

func TestMarshalEvent_Step(t *testing.T) {
	ev := NewStepEvent("r1", 1, engine.StepResult{
		CurrentState: engine.StatePlanning,
		ToolName:     "get_todays_weather",
		ToolInput:    map[string]any{"city": "Tokyo"},
	})

	data, err := MarshalEvent(ev)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "step", decoded["type"])
	assert.Equal(t, "r1", decoded["request_id"])

	result := decoded["result"].(map[string]any)
	assert.Equal(t, "planning", result["current_state"])
	assert.Equal(t, "get_todays_weather", result["tool_name"])
	assert.Equal(t, false, result["is_final"])
	assert.NotContains(t, result, "tool_output")
}

func TestMarshalEvent_Done(t *testing.T) {
	ev := NewDoneEvent("r1", "run-1", 4, engine.StepResult{
		CurrentState: engine.StateFinished,
		IsFinal:      true,
		FinalAnswer:  "Tokyo is sunny.",
	})

	data, err := MarshalEvent(ev)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"done","request_id":"r1","run_id":"run-1","state":"finished","final_answer":"Tokyo is sunny.","steps":4}`, string(data))
}
