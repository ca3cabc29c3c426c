// Package llm talks to the local inference server: chat completion, model
// listing and the lifecycle of an `ollama serve` process.
package llm

import (
	"errors"
	"fmt"
)

// ErrNoOutput is returned when the model answers with nothing.
var ErrNoOutput = errors.New("model returned no output")

const promptTemplate = `You are a coding assistant with access to project context.

User question:
%s

Relevant code context:
%s

Answer concisely and clearly.`

// BuildPrompt renders the question and retrieved context into one prompt.
func BuildPrompt(question, contextText string) string {
	return fmt.Sprintf(promptTemplate, question, contextText)
}

// BuildMessages appends the prompt for question to the prior conversation.
// Earlier turns are sent as is; only the newest question carries context.
func BuildMessages(question, contextText string, history []Message) []Message {
	msgs := make([]Message, 0, len(history)+1)
	msgs = append(msgs, history...)
	return append(msgs, Message{Role: "user", Content: BuildPrompt(question, contextText)})
}
