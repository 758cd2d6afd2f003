package chat

type CreateConversationRequest struct {
	Title string `json:"title"`
	Model string `json:"model"`
}

type UpdateConversationRequest struct {
	Title string `json:"title" binding:"required"`
}

type SaveMessageRequest struct {
	ConversationID   string `json:"conversationId" binding:"required"`
	Role             string `json:"role" binding:"required"`
	Content          string `json:"content"`
	ReasoningContent string `json:"reasoning_content"`
}
