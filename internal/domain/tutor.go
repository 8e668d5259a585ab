package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	appErrors "github.com/1282saa/paperone/pkg/errors"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	EntityTypeTutorMessage = "TUTOR_MESSAGE"

	// MaxTutorMessageLength bounds one user message in runes.
	MaxTutorMessageLength = 4000

	summaryPreviewLength = 100
)

// TutorMessage is one turn of an AI tutor conversation.
type TutorMessage struct {
	MessageID      string    `json:"-"`
	ConversationID string    `json:"-"`
	UserID         string    `json:"-"`
	Role           string    `json:"role"`
	Message        string    `json:"message"`
	TokenCount     *int      `json:"token_count"`
	CreatedAt      time.Time `json:"created_at"`
}

// TutorReply is what the tutor returns for one user message.
type TutorReply struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
}

// ConversationSummary describes one conversation in the user's list.
type ConversationSummary struct {
	ConversationID string    `json:"conversation_id"`
	FirstMessage   string    `json:"first_message"`
	CreatedAt      time.Time `json:"created_at"`
	MessageCount   int       `json:"message_count"`
}

// ValidateTutorMessage requires a non-blank message within the length limit.
func ValidateTutorMessage(message string) error {
	if strings.TrimSpace(message) == "" {
		return appErrors.NewValidation("message is required")
	}
	if utf8.RuneCountInString(message) > MaxTutorMessageLength {
		return appErrors.NewValidation("message must be at most 4000 characters")
	}
	return nil
}

// SummarizeConversations groups messages given newest first into one entry
// per conversation. Each entry shows the conversation's newest message,
// trimmed to 100 characters, and entries keep the order in which their
// conversation first appears.
func SummarizeConversations(newestFirst []*TutorMessage) []ConversationSummary {
	summaries := make([]ConversationSummary, 0)
	index := make(map[string]int)
	for _, m := range newestFirst {
		i, seen := index[m.ConversationID]
		if !seen {
			i = len(summaries)
			index[m.ConversationID] = i
			summaries = append(summaries, ConversationSummary{
				ConversationID: m.ConversationID,
				FirstMessage:   preview(m.Message),
				CreatedAt:      m.CreatedAt,
			})
		}
		summaries[i].MessageCount++
	}
	return summaries
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= summaryPreviewLength {
		return s
	}
	return string([]rune(s)[:summaryPreviewLength])
}
