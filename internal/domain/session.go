package domain

import "time"

// Session binds one uploaded document's index to a client
type Session struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	ChunkCount int       `json:"chunk_count"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
}

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a recorded question or answer
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Context   string    `json:"context,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatMessage is one prompt message sent to the chat model
type ChatMessage struct {
	Role    string
	Content string
}

// Answer is the result of a question against a session
type Answer struct {
	Answer  string `json:"answer"`
	Context string `json:"context"`
}

// UploadResponse is returned by a successful upload
type UploadResponse struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
	Filename  string `json:"filename"`
	Chunks    int    `json:"chunks"`
}

// Stats represents system statistics
type Stats struct {
	LiveSessions     int `json:"live_sessions"`
	MaxSessions      int `json:"max_sessions"`
	RecordedSessions int `json:"recorded_sessions"`
	TotalQuestions   int `json:"total_questions"`
}
