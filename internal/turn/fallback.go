package turn

import "fmt"

// FallbackContext is the game_state.context set on every fallback response.
const FallbackContext = "error_occurred"

// Fallback returns the deterministic response used whenever a turn cannot be
// generated or validated. It always leaves the player a way forward.
func Fallback(err error) *Response {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return &Response{
		ResponseType: Narrative,
		Content: Content{
			Text: fmt.Sprintf("The mystical energies around you seem unstable. Something went wrong with your action. (Error: %s)", msg),
		},
		Environment: Environment{
			Description: "The world seems hazy and uncertain",
			Atmosphere:  "Confused and disoriented",
		},
		ActionChoices: []ActionChoice{{
			ID:          "try_again",
			Text:        "Try again",
			Description: "Attempt to focus and try your action once more",
		}},
		CharacterUpdates: &CharacterUpdates{},
		GameState:        &GameState{Status: StatusContinue, Context: FallbackContext},
	}
}

// IsFallback reports whether r was produced by Fallback.
func IsFallback(r *Response) bool {
	return r != nil && r.GameState != nil && r.GameState.Context == FallbackContext &&
		len(r.ActionChoices) == 1 && r.ActionChoices[0].ID == "try_again"
}
