package chat

// ChatResponse is the structured result that may terminate a relay stream.
type ChatResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	Image       string `json:"image,omitempty"`
	ImagePrompt string `json:"imagePrompt,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ChatRequest is the body accepted by POST /api/chat.
type ChatRequest struct {
	Message      string        `json:"message"`
	History      []HistoryTurn `json:"history"`
	CustomPrompt string        `json:"customPrompt,omitempty"`
	Image        string        `json:"image,omitempty"`
	MimeType     string        `json:"mimeType,omitempty"`
	Category     string        `json:"category,omitempty"`
}

// ResultMarker separates streamed text from the trailing ChatResponse JSON.
// Text that itself contains the marker is not escaped.
const ResultMarker = "__JSON__"
