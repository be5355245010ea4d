package transcript

import (
	"errors"
	"testing"
)

func TestToModelTurnsPreservesOrder(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "hello, welcome aboard"},
		{Role: "user", Content: "when is orientation?"},
	}

	got, err := ToModelTurns(turns)
	if err != nil {
		t.Fatalf("ToModelTurns: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	for i, want := range []string{"user", "assistant", "user"} {
		if got[i].Role != want {
			t.Errorf("turn %d role = %q, want %q", i, got[i].Role, want)
		}
		if got[i].Content != turns[i].Content {
			t.Errorf("turn %d content = %q, want %q", i, got[i].Content, turns[i].Content)
		}
	}
}

func TestToModelTurnsEmpty(t *testing.T) {
	got, err := ToModelTurns(nil)
	if err != nil {
		t.Fatalf("ToModelTurns: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len = %d, want 0", len(got))
	}
}

func TestToModelTurnsSkipsHidden(t *testing.T) {
	turns := []Turn{
		{Role: "user", Content: "book it"},
		{Role: "assistant", Content: "awaiting approval", Hidden: true},
		{Role: "assistant", Content: "done"},
	}

	got, err := ToModelTurns(turns)
	if err != nil {
		t.Fatalf("ToModelTurns: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (hidden turn dropped)", len(got))
	}
	if got[1].Content != "done" {
		t.Errorf("turn 1 content = %q", got[1].Content)
	}
}

func TestToModelTurnsMalformed(t *testing.T) {
	tests := []struct {
		name  string
		turns []Turn
	}{
		{"missing role", []Turn{{Content: "hi"}}},
		{"missing content", []Turn{{Role: "user"}}},
		{"unknown role", []Turn{{Role: "narrator", Content: "meanwhile"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToModelTurns(tt.turns)
			var malformed *MalformedTurnError
			if !errors.As(err, &malformed) {
				t.Fatalf("err = %v, want MalformedTurnError", err)
			}
			if malformed.Index != 0 {
				t.Errorf("Index = %d, want 0", malformed.Index)
			}
		})
	}
}
