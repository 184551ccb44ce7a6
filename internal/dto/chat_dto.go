package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title    string `json:"title"`
	Platform string `json:"platform" validate:"required,oneof=medium linkedin Medium LinkedIn"`
}

type CreateSessionResponse struct {
	Id    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

type GetAllSessionsResponse struct {
	Id        uuid.UUID  `json:"id"`
	Title     string     `json:"title"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at"`
}

type GetChatHistoryResponse struct {
	Id        uuid.UUID `json:"id"`
	Role      string    `json:"role"`
	Chat      string    `json:"chat"`
	Source    string    `json:"source,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type SendChatRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Chat          string    `json:"chat" validate:"required"`
}

type SendChatResponseChat struct {
	Id        uuid.UUID `json:"id"`
	Chat      string    `json:"chat"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type SendChatResponse struct {
	ChatSessionId uuid.UUID             `json:"chat_session_id"`
	Sent          *SendChatResponseChat `json:"sent"`
	Reply         *SendChatResponseChat `json:"reply"`
	// Mode reports how the message was handled: "chat" for a contextual
	// reply, "generation" when a pipeline run was started.
	Mode string `json:"mode"`
}

type DeleteSessionRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
}

// UploadContentRequest carries extracted source material into a session.
type UploadContentRequest struct {
	ChatSessionId uuid.UUID `json:"chat_session_id" validate:"required"`
	Kind          string    `json:"kind" validate:"required,oneof=text pdf youtube"`
	Name          string    `json:"name"`
	// Content is the raw text for kind=text uploads.
	Content string `json:"content"`
	// URL is set for link-based kinds.
	URL string `json:"url"`
}

type UploadContentResponse struct {
	MessageId uuid.UUID `json:"message_id"`
	Source    string    `json:"source"`
	// Preview is the first slice of the extracted text.
	Preview string `json:"preview"`
	Length  int    `json:"length"`
}

// ReindexSessionResponse reports a backfill of the session's vector index.
type ReindexSessionResponse struct {
	ChatSessionId uuid.UUID `json:"chat_session_id"`
	Indexed       int       `json:"indexed"`
}
