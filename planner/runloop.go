package planner

import (
	"iter"

	"github.com/hupe1980/tripmesh/core"
)

const escalationPrefix = "Agent escalated: "

const noEscalationMessage = "No specific message."

// RunLoop consumes seq up to and including the first final event and
// returns its result text:
//
//   - content with at least one part: the text of the first part only
//     (empty when that part is not text)
//   - escalation: "Agent escalated: " followed by the message
//   - anything else: ""
//
// Iteration stops at the final event, which cancels the producing run.
// A sequence ending without a final event yields "". Sequence errors are
// returned as is. Each observer sees every event that precedes the final one.
func RunLoop(seq iter.Seq2[core.Event, error], observers ...func(core.Event)) (string, error) {
	text, _, err := runLoop(seq, observers)
	return text, err
}

// runLoop also reports whether the result is an escalation.
func runLoop(seq iter.Seq2[core.Event, error], observers []func(core.Event)) (string, bool, error) {
	for ev, err := range seq {
		if err != nil {
			return "", false, err
		}

		if !ev.IsFinalResponse() {
			for _, observe := range observers {
				observe(ev)
			}

			continue
		}

		text, escalated := finalText(ev)

		return text, escalated, nil
	}

	return "", false, nil
}

func finalText(ev core.Event) (string, bool) {
	if ev.Content != nil && len(ev.Content.Parts) > 0 {
		if tp, ok := ev.Content.Parts[0].(core.TextPart); ok {
			return tp.Text, false
		}

		return "", false
	}

	if ev.IsEscalation() {
		msg := noEscalationMessage
		if ev.ErrorMessage != nil && *ev.ErrorMessage != "" {
			msg = *ev.ErrorMessage
		}

		return escalationPrefix + msg, true
	}

	return "", false
}
