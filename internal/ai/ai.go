// Package ai wraps the OpenAI API for task suggestion features. The client is
// injected at startup: when no API key is configured the service is nil-safe
// and reports ErrNotConfigured instead of constructing a client lazily.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// ErrNotConfigured is returned when no OpenAI API key was provided
var ErrNotConfigured = errors.New("ai service not configured")

// Service generates task suggestions from free-form text
type Service struct {
	client *openai.Client
	model  string
}

// SuggestedTask is one task extracted from text
type SuggestedTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	DueDate     *time.Time `json:"dueDate"`
}

// NewService creates an AI service. An empty apiKey yields a service whose
// methods return ErrNotConfigured.
func NewService(apiKey string) *Service {
	s := &Service{model: openai.GPT4oMini}
	if apiKey != "" {
		s.client = openai.NewClient(apiKey)
	}
	return s
}

// Enabled reports whether an API key was configured
func (s *Service) Enabled() bool {
	return s != nil && s.client != nil
}

// SuggestTasks extracts actionable tasks from free-form text
func (s *Service) SuggestTasks(ctx context.Context, text string) ([]SuggestedTask, error) {
	if !s.Enabled() {
		return nil, ErrNotConfigured
	}

	now := time.Now().Format("2006-01-02 15:04:05")
	prompt := fmt.Sprintf(`You are a task extraction assistant. Extract concrete, actionable tasks from the text below.

Current time: %s

Text:
%s

Return a JSON array of tasks:
[
  {
    "title": "short task title",
    "description": "task details",
    "priority": "low|medium|high|urgent",
    "dueDate": "ISO8601 due date, or null if none is implied"
  }
]

Rules:
- Return an empty array [] when the text contains no tasks
- Convert relative deadlines ("tomorrow", "next week") into concrete dates
- Return ONLY the JSON, no explanation`, now, text)

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("OpenAI API error: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, errors.New("no response from OpenAI")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")

	var tasks []SuggestedTask
	if err := json.Unmarshal([]byte(content), &tasks); err != nil {
		return nil, fmt.Errorf("failed to parse AI response: %w", err)
	}
	return tasks, nil
}

// SummarizeTask produces a one-paragraph summary of a task and its comments
func (s *Service) SummarizeTask(ctx context.Context, title, description string, comments []string) (string, error) {
	if !s.Enabled() {
		return "", ErrNotConfigured
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Summarize the following task and its discussion in one short paragraph.\n\nTask: %s\n", title)
	if description != "" {
		fmt.Fprintf(&b, "Description: %s\n", description)
	}
	if len(comments) > 0 {
		b.WriteString("Comments:\n")
		for _, c := range comments {
			fmt.Fprintf(&b, "- %s\n", c)
		}
	}

	resp, err := s.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: s.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: b.String(),
				},
			},
			Temperature: 0.3,
		},
	)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no response from OpenAI")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
