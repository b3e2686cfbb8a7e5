package turn

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"Hello", []string{"Hello"}},
		{"Hello there", []string{"Hello", " ", "there"}},
		{" lead  and\ntrail ", []string{" ", "lead", "  ", "and", "\n", "trail", " "}},
	}
	for _, tc := range tests {
		got := SplitChunks(tc.in)
		if strings.Join(got, "") != tc.in {
			t.Errorf("SplitChunks(%q) does not round-trip: %q", tc.in, got)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("SplitChunks(%q) = %q, want %q", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Errorf("SplitChunks(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestResponseEvents_Order(t *testing.T) {
	r := &Response{
		ResponseType:  Dialogue,
		Content:       Content{Text: "Hello there", Speaker: "Thrall"},
		Environment:   Environment{Description: "A tent"},
		ActionChoices: []ActionChoice{{ID: "a", Text: "Nod"}},
	}
	evs, err := ResponseEvents(r)
	if err != nil {
		t.Fatal(err)
	}
	want := []EventType{EventMetadata, EventEnvironment, EventActionChoices}
	if len(evs) != len(want) {
		t.Fatalf("got %d events, want %d", len(evs), len(want))
	}
	for i, ev := range evs {
		if ev.Type != want[i] {
			t.Errorf("event %d = %q, want %q", i, ev.Type, want[i])
		}
	}
	var md Metadata
	if err := json.Unmarshal(evs[0].Data, &md); err != nil {
		t.Fatal(err)
	}
	if md.Speaker != "Thrall" || md.ResponseType != Dialogue {
		t.Errorf("metadata = %+v", md)
	}

	hp := 50
	r.CharacterUpdates = &CharacterUpdates{HP: &hp}
	r.GameState = &GameState{Status: StatusCombat}
	evs, _ = ResponseEvents(r)
	if len(evs) != 5 || evs[3].Type != EventCharacterUpdates || evs[4].Type != EventGameState {
		t.Errorf("optional events missing or misordered: %+v", evs)
	}
}

func TestChunkEvent_JSON(t *testing.T) {
	raw, err := json.Marshal(ChunkEvent("Hi", false))
	if err != nil {
		t.Fatal(err)
	}
	if string(raw) != `{"type":"text_chunk","text":"Hi","isComplete":false}` {
		t.Errorf("json = %s", raw)
	}
	if (Event{Type: EventError}).Terminal() != true || (Event{Type: EventProcessing}).Terminal() {
		t.Error("Terminal misreports")
	}
}
