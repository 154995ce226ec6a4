package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SystemPrompt is a reusable named system prompt.
type SystemPrompt struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveSystemPrompt stores a prompt, assigning an id when missing.
func (s *Store) SaveSystemPrompt(prompt *SystemPrompt) error {
	if prompt.Name == "" {
		return fmt.Errorf("system prompt needs a name")
	}
	if prompt.ID == "" {
		prompt.ID = uuid.New().String()
	}
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = time.Now()
	}

	query := `
	INSERT OR REPLACE INTO system_prompts (id, name, content, created_at)
	VALUES (?, ?, ?, ?)
	`
	_, err := s.db.Exec(query, prompt.ID, prompt.Name, prompt.Content, prompt.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to save system prompt: %w", err)
	}
	return nil
}

// SystemPromptByID loads one prompt; nil when not found.
func (s *Store) SystemPromptByID(id string) (*SystemPrompt, error) {
	query := `SELECT id, name, content, created_at FROM system_prompts WHERE id = ?`

	var prompt SystemPrompt
	err := s.db.QueryRow(query, id).Scan(&prompt.ID, &prompt.Name, &prompt.Content, &prompt.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load system prompt: %w", err)
	}
	return &prompt, nil
}

// ListSystemPrompts returns all prompts, newest first.
func (s *Store) ListSystemPrompts() ([]SystemPrompt, error) {
	query := `SELECT id, name, content, created_at FROM system_prompts ORDER BY created_at DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to list system prompts: %w", err)
	}
	defer rows.Close()

	var prompts []SystemPrompt
	for rows.Next() {
		var prompt SystemPrompt
		if err := rows.Scan(&prompt.ID, &prompt.Name, &prompt.Content, &prompt.CreatedAt); err != nil {
			continue
		}
		prompts = append(prompts, prompt)
	}

	return prompts, rows.Err()
}

// DeleteSystemPrompt removes a prompt by id.
func (s *Store) DeleteSystemPrompt(id string) error {
	_, err := s.db.Exec(`DELETE FROM system_prompts WHERE id = ?`, id)
	return err
}
