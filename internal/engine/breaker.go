package engine

import "fmt"

const (
	maxConsecutiveToolFails = 3
	hardStopToolFails       = 5
)

// toolBreaker tracks consecutive failures per tool name. After three
// failures of the same tool the loop nudges the model to change
// approach; after five the tool is blocked for the rest of the turn.
type toolBreaker struct {
	fails map[string]int
}

func newToolBreaker() *toolBreaker {
	return &toolBreaker{fails: map[string]int{}}
}

// blocked reports whether the tool already hit the hard stop.
func (b *toolBreaker) blocked(name string) bool {
	return b.fails[name] >= hardStopToolFails
}

// blockedMessage is the Tool result substituted for a blocked call.
func (b *toolBreaker) blockedMessage(name string) string {
	return fmt.Sprintf("Error: Tool '%s' is blocked after %d consecutive failures. Use a different tool or tell the user.",
		name, b.fails[name])
}

// record updates the counter and returns a nudge string when the tool
// just crossed the consecutive-failure threshold.
func (b *toolBreaker) record(name string, success bool) (nudge string) {
	if success {
		delete(b.fails, name)
		return ""
	}
	b.fails[name]++
	if b.fails[name] == maxConsecutiveToolFails {
		return fmt.Sprintf("[SYSTEM] Tool '%s' has failed %d times in a row. Stop retrying it the same way — "+
			"change your approach, use a different tool, or explain the problem to the user.",
			name, maxConsecutiveToolFails)
	}
	return ""
}
