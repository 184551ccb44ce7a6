package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatMessage struct {
	Id               uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ChatSessionId    uuid.UUID      `gorm:"type:uuid;not null;index"`
	Role             string         `gorm:"type:varchar(50);not null"`
	Content          string         `gorm:"type:text;not null"`
	Source           string         `gorm:"type:varchar(512)"`
	ExtractedContent string         `gorm:"type:text"`
	CreatedAt        time.Time      `gorm:"autoCreateTime;index"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime"`
	DeletedAt        gorm.DeletedAt `gorm:"index"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
