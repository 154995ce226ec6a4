// Package storage persists conversations and the system prompt library
// in a SQLite database under the data directory.
package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"attache/model"
)

// Conversation is a stored conversation with its messages.
type Conversation struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Provider     string          `json:"provider,omitempty"`
	Model        string          `json:"model,omitempty"`
	SystemPrompt string          `json:"system_prompt,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Messages     []model.Message `json:"messages"`
}

// ConversationMetadata is a lightweight version of Conversation for listing.
type ConversationMetadata struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store handles conversation persistence.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "conversations.db")

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	store := &Store{db: db}

	if err := store.initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return store, nil
}

func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS conversations (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		provider TEXT,
		model TEXT,
		system_prompt TEXT,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		tool_name TEXT,
		preserve INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);
	CREATE TABLE IF NOT EXISTS system_prompts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateConversation creates an empty conversation. An empty name gets
// a timestamp placeholder until the first user message names it.
func (s *Store) CreateConversation(name, provider, modelName, systemPrompt string) (*Conversation, error) {
	now := time.Now()
	if name == "" {
		name = GenerateConversationName("")
	}

	conv := &Conversation{
		ID:           uuid.New().String(),
		Name:         name,
		Provider:     provider,
		Model:        modelName,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	query := `
	INSERT INTO conversations (id, name, provider, model, system_prompt, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, conv.ID, conv.Name, conv.Provider, conv.Model, conv.SystemPrompt, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// GetConversation loads a conversation and its messages in order.
func (s *Store) GetConversation(id string) (*Conversation, error) {
	query := `
	SELECT id, name, provider, model, system_prompt, created_at, updated_at
	FROM conversations
	WHERE id = ?
	`

	var conv Conversation
	err := s.db.QueryRow(query, id).Scan(
		&conv.ID,
		&conv.Name,
		&conv.Provider,
		&conv.Model,
		&conv.SystemPrompt,
		&conv.CreatedAt,
		&conv.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}

	messages, err := s.loadMessages(id)
	if err != nil {
		return nil, err
	}
	conv.Messages = messages

	return &conv, nil
}

func (s *Store) loadMessages(conversationID string) ([]model.Message, error) {
	query := `
	SELECT role, content, tool_name, preserve, created_at
	FROM messages
	WHERE conversation_id = ?
	ORDER BY seq
	`

	rows, err := s.db.Query(query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var toolName sql.NullString
		var preserve int
		if err := rows.Scan(&msg.Role, &msg.Content, &toolName, &preserve, &msg.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.ToolName = toolName.String
		msg.PreserveInTrim = preserve != 0
		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// AppendMessage appends one message to a conversation and bumps its
// update time. The first user message also names the conversation if it
// still carries a generated placeholder.
func (s *Store) AppendMessage(conversationID string, msg model.Message) error {
	now := time.Now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}

	preserve := 0
	if msg.PreserveInTrim {
		preserve = 1
	}

	query := `
	INSERT INTO messages (id, conversation_id, seq, role, content, tool_name, preserve, created_at)
	VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE conversation_id = ?), ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		uuid.New().String(),
		conversationID,
		conversationID,
		msg.Role,
		msg.Content,
		msg.ToolName,
		preserve,
		msg.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	_, err = s.db.Exec(`UPDATE conversations SET updated_at = ? WHERE id = ?`, now, conversationID)
	if err != nil {
		return fmt.Errorf("failed to touch conversation: %w", err)
	}

	return nil
}

// ListConversations returns metadata for all conversations, newest
// update first.
func (s *Store) ListConversations() ([]ConversationMetadata, error) {
	query := `
	SELECT c.id, c.name, c.provider, c.model, c.created_at, c.updated_at,
	       (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id)
	FROM conversations c
	ORDER BY c.updated_at DESC
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var list []ConversationMetadata
	for rows.Next() {
		var meta ConversationMetadata
		if err := rows.Scan(&meta.ID, &meta.Name, &meta.Provider, &meta.Model, &meta.CreatedAt, &meta.UpdatedAt, &meta.MessageCount); err != nil {
			continue
		}
		list = append(list, meta)
	}

	return list, rows.Err()
}

// RenameConversation updates the name of a conversation.
func (s *Store) RenameConversation(id string, newName string) error {
	result, err := s.db.Exec(`UPDATE conversations SET name = ?, updated_at = ? WHERE id = ?`, newName, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to rename conversation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("conversation not found: %s", id)
	}
	return nil
}

// DeleteConversation removes a conversation and its messages.
func (s *Store) DeleteConversation(id string) error {
	// ON DELETE CASCADE is not enforced unless foreign_keys is on, so
	// delete messages explicitly.
	if _, err := s.db.Exec(`DELETE FROM messages WHERE conversation_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	return nil
}

// ExportToJSON exports a conversation to a JSON file at the specified path.
func (s *Store) ExportToJSON(id string, exportPath string) error {
	conv, err := s.GetConversation(id)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	dir := filepath.Dir(exportPath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// 0600: exports contain conversation history
	if err := os.WriteFile(exportPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// GenerateConversationName derives a conversation name from the first
// user message.
func GenerateConversationName(firstMessage string) string {
	if firstMessage == "" {
		return fmt.Sprintf("Conversation %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	name := firstMessage
	if len(name) > 30 {
		name = name[:30] + "..."
	}

	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.TrimSpace(name)

	if name == "" {
		return fmt.Sprintf("Conversation %s", time.Now().Format("Jan 2, 3:04 PM"))
	}

	return name
}

// GenerateExportPath generates a default export path for a conversation.
func GenerateExportPath(conversationName string) string {
	homeDir := os.Getenv("HOME")
	if homeDir == "" {
		homeDir = os.Getenv("USERPROFILE")
	}

	downloadsDir := filepath.Join(homeDir, "Downloads")
	sanitized := SanitizeFilename(conversationName)
	timestamp := time.Now().Format("20060102-150405")
	filename := fmt.Sprintf("attache-conversation-%s-%s.json", sanitized, timestamp)

	return filepath.Join(downloadsDir, filename)
}

// SanitizeFilename removes or replaces characters that are invalid in filenames.
func SanitizeFilename(name string) string {
	replacer := strings.NewReplacer(
		"/", "-", "\\", "-", ":", "-", "*", "-", "?", "-",
		"\"", "-", "<", "-", ">", "-", "|", "-", " ", "-",
		"\n", "-", "\r", "-",
	)
	name = replacer.Replace(name)

	name = strings.Trim(name, "-.")

	if len(name) > 50 {
		name = name[:50]
	}

	if name == "" {
		name = "conversation"
	}

	return name
}
