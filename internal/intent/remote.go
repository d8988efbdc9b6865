package intent

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"gopkg.in/yaml.v3"

	"imobot-backend/internal/domain"
)

//go:embed prompts.yaml
var defaultPrompts []byte

// ErrMalformed is returned when the model reply holds no JSON object.
var ErrMalformed = errors.New("intent: malformed model response")

// PromptSpec is the YAML prompt file driving the remote classifier.
type PromptSpec struct {
	System string            `yaml:"system"`
	States map[string]string `yaml:"states"`
	Style  struct {
		Temperature float32 `yaml:"temperature"`
		MaxTokens   int     `yaml:"max_tokens"`
	} `yaml:"style"`
}

// ParsePromptSpec decodes a YAML prompt spec.
func ParsePromptSpec(b []byte) (PromptSpec, error) {
	var spec PromptSpec
	if err := yaml.Unmarshal(b, &spec); err != nil {
		return spec, fmt.Errorf("parse prompt spec: %w", err)
	}
	if strings.TrimSpace(spec.System) == "" {
		return spec, fmt.Errorf("parse prompt spec: system prompt is empty")
	}
	return spec, nil
}

// Remote asks an OpenAI-compatible chat model to classify a message.
type Remote struct {
	spec   PromptSpec
	client *openai.Client
	model  string
}

// NewRemoteClient builds a go-openai client for an OpenAI-compatible base URL.
func NewRemoteClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// LoadRemote reads the prompt spec at path, or the built-in one when path is
// empty, and returns a Remote extractor.
func LoadRemote(path string, client *openai.Client, model string) (*Remote, error) {
	b := defaultPrompts
	if path != "" {
		var err error
		if b, err = os.ReadFile(path); err != nil {
			return nil, fmt.Errorf("read prompt spec: %w", err)
		}
	}
	spec, err := ParsePromptSpec(b)
	if err != nil {
		return nil, err
	}
	return &Remote{spec: spec, client: client, model: model}, nil
}

// Extract implements Extractor.
func (c *Remote) Extract(ctx context.Context, message string, session *domain.Session) (*Result, error) {
	temperature := c.spec.Style.Temperature
	if temperature <= 0 {
		temperature = 0.3
	}
	maxTokens := c.spec.Style.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: c.SystemPrompt(session)},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("intent completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices", ErrMalformed)
	}
	out, err := ParseResponse(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	out.Source = SourceRemote
	return out, nil
}

// SystemPrompt renders the state-aware system prompt for session.
func (c *Remote) SystemPrompt(session *domain.Session) string {
	var b strings.Builder
	b.WriteString(strings.NewReplacer("{state}", session.State.String()).Replace(c.spec.System))
	if p, ok := c.spec.States[session.State.String()]; ok {
		b.WriteString("\n")
		b.WriteString(strings.NewReplacer(
			"{brand}", orUnknown(session.VehicleBrand),
			"{model}", orUnknown(session.VehicleModel),
			"{year}", orUnknown(session.VehicleYear),
		).Replace(p))
	}
	return b.String()
}

// ParseResponse decodes the JSON object spanning the first '{' and the last
// '}' of a model reply.
func ParseResponse(raw string) (*Result, error) {
	first := strings.Index(raw, "{")
	last := strings.LastIndex(raw, "}")
	if first < 0 || last <= first {
		return nil, ErrMalformed
	}
	var out Result
	if err := json.Unmarshal([]byte(raw[first:last+1]), &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &out, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
