package ai

import (
	"google.golang.org/genai"

	"github.com/zhouzirui/vanguard/backend/internal/model/chat"
)

// TrimHistory drops every turn before the first user turn. Gemini rejects
// conversations that open with a model turn. Without any user turn the
// history is empty.
func TrimHistory(history []chat.HistoryTurn) []chat.HistoryTurn {
	for i, turn := range history {
		if turn.Role == chat.RoleUser {
			return history[i:]
		}
	}
	return nil
}

// buildHistoryContents converts trimmed history into provider contents.
// Any role other than user is sent as model.
func buildHistoryContents(history []chat.HistoryTurn) []*genai.Content {
	trimmed := TrimHistory(history)
	if len(trimmed) == 0 {
		return nil
	}

	contents := make([]*genai.Content, 0, len(trimmed))
	for _, turn := range trimmed {
		role := genai.Role(genai.RoleModel)
		if turn.Role == chat.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

// buildUserParts assembles the new user turn: the text first, then the inline image if any.
func buildUserParts(message string, image *InlineImage) []*genai.Part {
	parts := []*genai.Part{genai.NewPartFromText(message)}
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	return parts
}

// fragmentText joins the visible text parts of a streamed chunk.
func fragmentText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return ""
	}

	var text string
	for _, part := range content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text += part.Text
	}
	return text
}
