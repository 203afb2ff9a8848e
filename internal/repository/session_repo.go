package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/liliang-cn/docqa/internal/domain"
)

// SessionRepository records sessions and their Q&A history
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create records a session
func (r *SessionRepository) Create(session *domain.Session) error {
	if session.ID == "" {
		session.ID = uuid.New().String()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}

	var expiresAt sql.NullTime
	if !session.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: session.ExpiresAt, Valid: true}
	}

	_, err := r.db.Exec(`
		INSERT INTO sessions (id, filename, chunk_count, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.Filename, session.ChunkCount, session.CreatedAt, expiresAt)

	return err
}

// Get retrieves a recorded session by ID, nil if absent
func (r *SessionRepository) Get(id string) (*domain.Session, error) {
	session := &domain.Session{}
	var expiresAt sql.NullTime

	err := r.db.QueryRow(`
		SELECT id, filename, chunk_count, created_at, expires_at
		FROM sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.Filename, &session.ChunkCount, &session.CreatedAt, &expiresAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		session.ExpiresAt = expiresAt.Time
	}
	return session, nil
}

// CreateMessage records a question or answer
func (r *SessionRepository) CreateMessage(message *domain.Message) error {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	message.CreatedAt = time.Now()

	_, err := r.db.Exec(`
		INSERT INTO messages (id, session_id, role, content, context, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, message.ID, message.SessionID, message.Role, message.Content,
		message.Context, message.CreatedAt)

	return err
}

// GetMessages retrieves all messages for a session in insertion order
func (r *SessionRepository) GetMessages(sessionID string) ([]*domain.Message, error) {
	rows, err := r.db.Query(`
		SELECT id, session_id, role, content, context, created_at
		FROM messages WHERE session_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := []*domain.Message{}
	for rows.Next() {
		message := &domain.Message{}
		var context sql.NullString

		if err := rows.Scan(&message.ID, &message.SessionID, &message.Role,
			&message.Content, &context, &message.CreatedAt); err != nil {
			return nil, err
		}
		message.Context = context.String
		messages = append(messages, message)
	}

	return messages, rows.Err()
}

// CountSessions returns the number of recorded sessions
func (r *SessionRepository) CountSessions() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&count)
	return count, err
}

// CountQuestions returns the total number of user messages
func (r *SessionRepository) CountQuestions() (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE role = ?`, domain.RoleUser).Scan(&count)
	return count, err
}
