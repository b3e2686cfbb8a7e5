package llm

import "testing"

func TestEstimateTokens(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"Hello world", 3},
		{"Quel'Thalas", 3},
		{"Zul'Gurub über", 4},
		{"獣人の戦士", 2},
	}
	for _, tc := range tests {
		if got := EstimateTokens(tc.in); got != tc.want {
			t.Errorf("EstimateTokens(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestCountMessageTokens(t *testing.T) {
	if got := CountMessageTokens("gpt-4o", nil); got != 0 {
		t.Errorf("empty = %d, want 0", got)
	}
	one := CountMessageTokens("gemini-1.5-flash", []Message{{Role: RoleUser, Content: "Hello"}})
	two := CountMessageTokens("gemini-1.5-flash", []Message{
		{Role: RoleUser, Content: "Hello"},
		{Role: RoleAssistant, Content: "Hi there, how can I help?"},
	})
	if one <= perMessageOverhead-1 {
		t.Errorf("single message = %d, want > overhead", one)
	}
	if two <= one {
		t.Errorf("two messages (%d) should exceed one (%d)", two, one)
	}
}

func TestCapabilitiesFor(t *testing.T) {
	tests := []struct {
		model    string
		window   int
		jsonMode bool
	}{
		{"gpt-4o-mini", 128_000, true},
		{"gpt-4.1-nano", 1_047_576, true},
		{"o3", 200_000, true},
		{"claude-3-5-haiku-latest", 200_000, false},
		{"gemini-1.5-pro", 2_097_152, true},
		{"gemini-1.5-flash", 1_048_576, true},
		{"gemini-1.0-pro", 32_760, true},
		{"unknown-model", 128_000, true},
	}
	for _, tc := range tests {
		t.Run(tc.model, func(t *testing.T) {
			caps := CapabilitiesFor(tc.model)
			if caps.ContextWindow != tc.window {
				t.Errorf("window = %d, want %d", caps.ContextWindow, tc.window)
			}
			if caps.SupportsJSONMode != tc.jsonMode {
				t.Errorf("json mode = %v, want %v", caps.SupportsJSONMode, tc.jsonMode)
			}
			if caps.MaxOutputTokens <= 0 {
				t.Error("expected positive MaxOutputTokens")
			}
		})
	}
}
