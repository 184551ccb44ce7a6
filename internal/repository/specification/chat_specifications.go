package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

type BySourceMessageID struct {
	SourceMessageID uuid.UUID
}

func (s BySourceMessageID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("source_message_id = ?", s.SourceMessageID)
}

type ByPipelineKind struct {
	Kind string
}

func (s ByPipelineKind) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("kind = ?", s.Kind)
}

// WithExtractedContent keeps only messages carrying extracted source material.
type WithExtractedContent struct{}

func (s WithExtractedContent) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("extracted_content <> ''")
}
