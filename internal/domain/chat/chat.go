package chat

import "time"

// Feedback is a relevance vote on an assistant message.
type Feedback string

const (
	FeedbackRelevant    Feedback = "relevant"
	FeedbackNotRelevant Feedback = "not_relevant"
)

// Message is one turn of a conversation.
type Message struct {
	ID        string    `json:"id,omitempty"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
	Feedback  Feedback  `json:"feedback,omitempty"`
}

// Session is a stored conversation.
type Session struct {
	ID       string    `json:"sessionId"`
	Messages []Message `json:"messages"`
}

// Reply is the assistant's answer to a sent message.
type Reply struct {
	SessionID string `json:"sessionId"`
	MessageID string `json:"messageId"`
	Text      string `json:"reply"`
}
