// Package prompt assembles the single prompt string sent to a RAG
// backend: base instructions, the prior conversation transcript and the
// current question.
package prompt

import (
	"fmt"
	"strings"

	"github.com/animalabs/ragpipe/citation"
	"github.com/animalabs/ragpipe/core"
)

// FormatHistory renders prior turns as a flat "<Role>: <text>" transcript,
// one turn per line. Citation blocks appended to earlier assistant answers
// are stripped so they do not leak back into model context. Turns with no
// extractable text are skipped.
func FormatHistory(turns []core.Turn) string {
	parts := make([]string, 0, len(turns))

	for _, turn := range turns {
		text := turn.Content.Text()
		if text == "" {
			continue
		}

		if turn.Role == core.RoleAssistant {
			if i := strings.Index(text, citation.Marker); i >= 0 {
				text = text[:i]
			}
			text = strings.TrimRight(text, " \t\r\n")
			if text == "" {
				continue
			}
		}

		parts = append(parts, fmt.Sprintf("%s: %s", turn.Role.Capitalize(), text))
	}

	return strings.TrimSpace(strings.Join(parts, "\n"))
}

// DropDuplicateQuestion removes the final turn when it is a user turn
// whose content exactly equals the incoming message. The host framework
// sometimes re-includes the message currently being answered.
func DropDuplicateQuestion(turns []core.Turn, userMessage string) []core.Turn {
	if len(turns) == 0 {
		return turns
	}
	last := turns[len(turns)-1]
	if last.Role == core.RoleUser && last.Content.Equals(userMessage) {
		return turns[:len(turns)-1]
	}
	return turns
}
