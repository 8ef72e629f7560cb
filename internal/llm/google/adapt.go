package google

import (
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"docintel/internal/llm"
)

// toContents converts portable llm.Message history to Gemini's content
// list. Gemini has no system role, so system messages are folded into the
// user turn with a "[system]" prefix.
func toContents(msgs []llm.Message) ([]*genai.Content, error) {
	contents := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		text := strings.TrimSpace(m.Content)
		if text == "" {
			continue
		}
		role := genai.RoleUser
		switch strings.ToLower(strings.TrimSpace(m.Role)) {
		case "assistant":
			role = genai.RoleModel
		case "system":
			text = "[system] " + m.Content
		case "user", "":
		default:
			return nil, fmt.Errorf("unsupported role for google provider: %s", m.Role)
		}
		contents = append(contents, genai.NewContentFromText(text, role))
	}
	return contents, nil
}

// adaptTools converts portable llm.ToolSchema definitions into Gemini
// function declarations, letting the model decide whether to call one.
func adaptTools(schemas []llm.ToolSchema) []*genai.Tool {
	fd := make([]*genai.FunctionDeclaration, 0, len(schemas))
	for _, s := range schemas {
		fd = append(fd, &genai.FunctionDeclaration{
			Name:                 s.Name,
			Description:          s.Description,
			ParametersJsonSchema: s.Parameters,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: fd}}
}

// messageFromResponse flattens a Gemini response's first candidate into a
// single assistant text message.
func messageFromResponse(resp *genai.GenerateContentResponse) (llm.Message, error) {
	if resp == nil {
		return llm.Message{}, fmt.Errorf("nil response from google provider")
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return llm.Message{}, fmt.Errorf("request blocked by google: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return llm.Message{}, fmt.Errorf("no candidates in google response")
	}

	candidate := resp.Candidates[0]
	switch candidate.FinishReason {
	case genai.FinishReasonSafety:
		return llm.Message{}, fmt.Errorf("response blocked by safety filters")
	case genai.FinishReasonRecitation:
		return llm.Message{}, fmt.Errorf("response blocked due to recitation")
	}
	if candidate.Content == nil {
		return llm.Message{Role: "assistant"}, nil
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return llm.Message{Role: "assistant", Content: sb.String()}, nil
}
