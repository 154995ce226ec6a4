package storage

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"

	"attache/model"
)

// MessageMatch is a search hit inside one conversation.
type MessageMatch struct {
	ConversationID   string
	ConversationName string
	MessageIndex     int
	Role             string
	Content          string
	Preview          string
	Timestamp        time.Time
}

// FilterConversations fuzzy-matches conversation names against a query
// and returns them ranked, best match first. An empty query returns the
// input unchanged.
func FilterConversations(list []ConversationMetadata, query string) []ConversationMetadata {
	if query == "" {
		return list
	}

	targets := make([]string, len(list))
	for i, meta := range list {
		targets[i] = meta.Name
	}

	matches := fuzzy.Find(query, targets)
	filtered := make([]ConversationMetadata, len(matches))
	for i, match := range matches {
		filtered[i] = list[match.Index]
	}
	return filtered
}

// SearchMessages finds substring matches in a message list, skipping
// system messages.
func SearchMessages(conversationID, conversationName string, messages []model.Message, query string) []MessageMatch {
	if query == "" {
		return []MessageMatch{}
	}

	queryLower := strings.ToLower(query)
	var matches []MessageMatch

	for i, msg := range messages {
		if msg.Role == model.RoleSystem {
			continue
		}

		if strings.Contains(strings.ToLower(msg.Content), queryLower) {
			preview := msg.Content
			if len(preview) > 100 {
				preview = preview[:100] + "..."
			}

			matches = append(matches, MessageMatch{
				ConversationID:   conversationID,
				ConversationName: conversationName,
				MessageIndex:     i,
				Role:             msg.Role,
				Content:          msg.Content,
				Preview:          preview,
				Timestamp:        msg.Timestamp,
			})
		}
	}

	return matches
}

// SearchAllConversations runs SearchMessages across every stored
// conversation. Conversations that fail to load are skipped.
func (s *Store) SearchAllConversations(query string) ([]MessageMatch, error) {
	if query == "" {
		return []MessageMatch{}, nil
	}

	list, err := s.ListConversations()
	if err != nil {
		return nil, err
	}

	var matches []MessageMatch
	for _, meta := range list {
		conv, err := s.GetConversation(meta.ID)
		if err != nil {
			continue
		}
		matches = append(matches, SearchMessages(conv.ID, conv.Name, conv.Messages, query)...)
	}

	return matches, nil
}
