package repository

import (
	"sort"

	"github.com/svieira1985/gpt-webassist-sam/internal/shared/models"
)

const (
	previewRunes       = 50
	previewEllipsis    = "..."
	previewPlaceholder = "New conversation"
)

// Summarize builds the list entry shown for a conversation.
func Summarize(conv models.Conversation) models.ConversationSummary {
	return models.ConversationSummary{
		ID:          conv.ID,
		CreatedAt:   conv.CreatedAt,
		LastMessage: Preview(conv.Messages),
	}
}

// Preview returns the first 50 characters of the last message followed by an
// ellipsis, or a placeholder when the conversation has no messages yet.
func Preview(msgs []models.Message) string {
	if len(msgs) == 0 {
		return previewPlaceholder
	}
	r := []rune(msgs[len(msgs)-1].Content)
	if len(r) > previewRunes {
		r = r[:previewRunes]
	}
	return string(r) + previewEllipsis
}

// SortSummaries orders newest first; ids break ties so listings are stable.
func SortSummaries(s []models.ConversationSummary) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].CreatedAt.Equal(s[j].CreatedAt) {
			return s[i].ID < s[j].ID
		}
		return s[i].CreatedAt.After(s[j].CreatedAt)
	})
}
