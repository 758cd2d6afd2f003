package domain

import "time"

type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleSystem    MessageRole = "system"
)

type Conversation struct {
	ID        string    `json:"id" gorm:"column:id;primaryKey;size:36"`
	UserID    string    `json:"userId" gorm:"column:user_id;index;size:36;not null"`
	Title     string    `json:"title" gorm:"column:title"`
	Model     string    `json:"model" gorm:"column:model"`
	CreatedAt time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

func (Conversation) TableName() string { return "conversations" }

type Message struct {
	ID               string      `json:"id" gorm:"column:id;primaryKey;size:36"`
	ConversationID   string      `json:"conversationId" gorm:"column:conversation_id;index;size:36;not null"`
	Role             MessageRole `json:"role" gorm:"column:role;size:16"`
	Content          string      `json:"content" gorm:"column:content"`
	ReasoningContent string      `json:"reasoning_content,omitempty" gorm:"column:reasoning_content"`
	Timestamp        time.Time   `json:"timestamp" gorm:"column:timestamp;index"`
}

func (Message) TableName() string { return "messages" }
