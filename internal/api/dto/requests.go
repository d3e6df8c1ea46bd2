// Package dto provides Data Transfer Objects for API requests and responses.
package dto

// SendMessageRequest represents the request body for sending a message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=32000"`
	Stream  bool   `json:"stream"`
}
