package prompts

import (
	"strings"
	"testing"
)

func TestDefaultRegistry(t *testing.T) {
	r := DefaultRegistry()

	if got := r.List(); len(got) != 2 || got[0] != PlanningID || got[1] != SummarizingID {
		t.Fatalf("List() = %v", got)
	}
	if got := r.Versions(PlanningID); len(got) != 2 || got[0] != PromptV1 || got[1] != PromptV2 {
		t.Fatalf("Versions(planning) = %v", got)
	}

	latest, err := r.GetLatest(PlanningID)
	if err != nil {
		t.Fatalf("GetLatest: %v", err)
	}
	if latest.Version != PromptV2 {
		t.Errorf("latest planning version = %s, want %s", latest.Version, PromptV2)
	}

	if _, err := r.Get(PlanningID, "9.9.9"); err == nil {
		t.Error("expected error for unknown version")
	}
	if _, err := r.GetLatest("nope"); err == nil {
		t.Error("expected error for unknown prompt")
	}
}

func TestGetLatestSkipsDeprecated(t *testing.T) {
	r := NewPromptRegistry()
	r.Register(&Prompt{ID: "p", Version: "1.0.0", Content: "one"})
	r.Register(&Prompt{ID: "p", Version: "2.0.0", Content: "two", Deprecated: true})

	p, err := r.GetLatest("p")
	if err != nil {
		t.Fatal(err)
	}
	if p.Content != "one" {
		t.Errorf("GetLatest = %q, want the non-deprecated version", p.Content)
	}

	r.Register(&Prompt{ID: "q", Version: "1.0.0", Content: "old", Deprecated: true})
	q, err := r.GetLatest("q")
	if err != nil {
		t.Fatal(err)
	}
	if q.Content != "old" {
		t.Errorf("all-deprecated GetLatest = %q", q.Content)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		vars    map[string]string
		want    []string
		wantErr string
	}{
		{
			name: "planning",
			id:   PlanningID,
			vars: map[string]string{VarToolsJSON: `[{"name":"get_todays_weather"}]`},
			want: []string{`[{"name":"get_todays_weather"}]`, "finish_task", `{"tool_name":`},
		},
		{
			name: "summarizing",
			id:   SummarizingID,
			vars: map[string]string{VarUserRequest: "Weather in Tokyo?"},
			want: []string{"The original user request was: 'Weather in Tokyo?'", "DO NOT output JSON"},
		},
		{
			name:    "missing variable",
			id:      SummarizingID,
			vars:    nil,
			wantErr: "unresolved variable {{user_request}}",
		},
		{
			name:    "unknown prompt",
			id:      "nope",
			wantErr: "prompt not found",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(DefaultRegistry(), tt.id, tt.vars)
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("rendered prompt missing %q", w)
				}
			}
		})
	}
}

func TestPromptBuilderFragments(t *testing.T) {
	b, err := NewPromptBuilder(DefaultRegistry(), SummarizingID, PromptV1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := b.AddFragment("").AddFragment("Answer in one sentence.").
		SetVariable(VarUserRequest, "hi").Build()
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(got, "'hi'\n\nAnswer in one sentence.") {
		t.Errorf("unexpected prompt tail: %q", got[len(got)-40:])
	}
}

func TestBuildInsertsValuesVerbatim(t *testing.T) {
	tests := []struct {
		name string
		id   string
		vars map[string]string
		want string
	}{
		{
			name: "request with template syntax",
			id:   SummarizingID,
			vars: map[string]string{VarUserRequest: "Explain {{.Name}} and {{user_request}}"},
			want: "'Explain {{.Name}} and {{user_request}}'",
		},
		{
			name: "tool list with braces",
			id:   PlanningID,
			vars: map[string]string{VarToolsJSON: `[{"description":"renders {{x}}"}]`},
			want: `[{"description":"renders {{x}}"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Render(DefaultRegistry(), tt.id, tt.vars)
			if err != nil {
				t.Fatalf("Render: %v", err)
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("rendered prompt missing %q", tt.want)
			}
		})
	}
}

func TestBuildLeavesNonVariableBraces(t *testing.T) {
	r := NewPromptRegistry()
	r.Register(&Prompt{ID: "p", Version: "1.0.0", Content: "{{ not a var }} then {{name}}"})

	got, err := Render(r, "p", map[string]string{"name": "x"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "{{ not a var }} then x" {
		t.Errorf("Render = %q", got)
	}

	if _, err := Render(r, "p", nil); err == nil || !strings.Contains(err.Error(), "unresolved variable {{name}}") {
		t.Errorf("err = %v, want unresolved {{name}}", err)
	}
}
