// Package generation talks to the text-generation backend used for AI
// correction and the tutor, and holds the prompts and output
// post-processing around them.
package generation

import "context"

// Chunk is one fragment of a streamed generation. A chunk with Err set is
// the last one sent before the channel closes.
type Chunk struct {
	Text string
	Err  error
}

// Backend generates text from a prompt.
//
// GenerateStream returns a channel that yields fragments in emission order
// and is closed when generation ends. Cancelling ctx stops the stream and
// closes the channel.
type Backend interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateStream(ctx context.Context, prompt string) (<-chan Chunk, error)
	ModelName() string
}

// Message is one turn of a conversation sent to the backend.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a multi-turn request with a system instruction.
type ChatRequest struct {
	System      string
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// ChatReply is the assistant turn and the tokens it cost.
type ChatReply struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// TotalTokens is input plus output tokens.
func (r ChatReply) TotalTokens() int {
	return r.InputTokens + r.OutputTokens
}

// Chatter holds multi-turn conversations.
type Chatter interface {
	Chat(ctx context.Context, req ChatRequest) (ChatReply, error)
}
