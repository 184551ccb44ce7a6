package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Role          string
	Content       string
	// Source is set when the message carries uploaded/extracted material
	// (file name or URL). ExtractedContent holds the plain text pulled from it.
	Source           string
	ExtractedContent string
	CreatedAt        time.Time
	UpdatedAt        *time.Time
	DeletedAt        *time.Time
	IsDeleted        bool
}
