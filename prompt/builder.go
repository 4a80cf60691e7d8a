package prompt

import "strings"

const (
	historyOpen  = "\n\n--- Histórico da Conversa Anterior ---"
	historyClose = "--- Fim do Histórico ---"
	questionOpen = "\n\n--- Pergunta Atual do Usuário ---"
)

// LanguageInstruction is appended to the current question so answers come
// back in Brazilian Portuguese regardless of the question's language.
const LanguageInstruction = "(Instrução: Por favor, me responda em português brasileiro.)"

// Builder composes the outbound prompt for one request.
type Builder struct {
	BaseInstructions    string
	History             string
	UserMessage         string
	LanguageInstruction bool
}

// Build joins the sections in order: base instructions, the delimited
// history block (only when a transcript exists), then the delimited
// current question. The result is trimmed.
func (b Builder) Build() string {
	parts := []string{b.BaseInstructions}

	if b.History != "" {
		parts = append(parts, historyOpen, b.History, historyClose)
	}

	question := strings.TrimSpace(b.UserMessage)
	if b.LanguageInstruction {
		question += "\n\n" + LanguageInstruction
	}
	parts = append(parts, questionOpen, question)

	return strings.TrimSpace(strings.Join(parts, "\n"))
}
