package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/pkg/logger"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

var ErrGeneratorDisabled = errors.New("AI provider is not configured")

// GenerateRequest 出题参数
type GenerateRequest struct {
	Topic      string   `json:"topic" binding:"required"`
	Count      int      `json:"count" binding:"required,min=1"`
	Difficulty string   `json:"difficulty"`
	Categories []string `json:"categories"`
	JobTitle   string   `json:"jobTitle"`
}

// GeneratedQuestion 模型返回的单道选择题
type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
	Category      string   `json:"category"`
	Points        int      `json:"points"`
}

// QuestionGenerator 外部出题服务
type QuestionGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) ([]GeneratedQuestion, error)
}

// Completer 单轮补全，返回模型原始文本
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AIClient 出题和简历评分共用同一个模型提供方
type AIClient interface {
	QuestionGenerator
	Completer
}

// NewAIClient 按 ai.provider 选择实现；未配置时返回 disabledGenerator
func NewAIClient(cfg config.AIConfig) (AIClient, error) {
	if cfg.APIKey == "" {
		logger.Log.Warn("AI api key is not set, question generation disabled")
		return disabledGenerator{}, nil
	}
	switch cfg.Provider {
	case "gemini":
		g, err := NewGeminiGenerator(cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	case "", "http", "openai":
		return NewHTTPGenerator(cfg), nil
	}
	return nil, fmt.Errorf("unknown ai provider: %s", cfg.Provider)
}

type disabledGenerator struct{}

func (disabledGenerator) Generate(context.Context, GenerateRequest) ([]GeneratedQuestion, error) {
	return nil, ErrGeneratorDisabled
}

func (disabledGenerator) Complete(context.Context, string, string) (string, error) {
	return "", ErrGeneratorDisabled
}

const questionWriterRole = "You are an experienced technical recruiter who writes fair assessment questions."

func buildGeneratePrompt(req GenerateRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate %d multiple choice questions for a recruitment assessment about %q.\n", req.Count, req.Topic)
	if req.JobTitle != "" {
		fmt.Fprintf(&b, "The role being hired for is %q.\n", req.JobTitle)
	}
	if req.Difficulty != "" {
		fmt.Fprintf(&b, "Difficulty: %s.\n", req.Difficulty)
	}
	if len(req.Categories) > 0 {
		fmt.Fprintf(&b, "Spread the questions over these categories: %s.\n", strings.Join(req.Categories, ", "))
	}
	b.WriteString(`Respond with a JSON array only, no markdown. Each element must have the fields:
"question" (string), "options" (array of 4 strings), "correctAnswer" (zero-based index into options),
"explanation" (string), "difficulty" (string), "category" (string), "points" (integer).`)
	return b.String()
}

// ParseGeneratedQuestions 解析并校验模型输出，任何一题不合法即整体失败
func ParseGeneratedQuestions(raw string, want int) ([]GeneratedQuestion, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var questions []GeneratedQuestion
	if err := json.Unmarshal([]byte(text), &questions); err != nil {
		var wrapped struct {
			Questions []GeneratedQuestion `json:"questions"`
		}
		if err2 := json.Unmarshal([]byte(text), &wrapped); err2 != nil {
			return nil, fmt.Errorf("decode generated questions: %w", err)
		}
		questions = wrapped.Questions
	}
	if len(questions) == 0 {
		return nil, errors.New("generator returned no questions")
	}
	if want > 0 && len(questions) > want {
		questions = questions[:want]
	}

	for i := range questions {
		q := &questions[i]
		q.Question = strings.TrimSpace(q.Question)
		if q.Question == "" {
			return nil, fmt.Errorf("generated question %d has no text", i+1)
		}
		if len(q.Options) < 2 {
			return nil, fmt.Errorf("generated question %d has fewer than 2 options", i+1)
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, fmt.Errorf("generated question %d has an out-of-range correctAnswer", i+1)
		}
		if q.Points <= 0 {
			q.Points = 1
		}
	}
	return questions, nil
}

// HTTPGenerator OpenAI 兼容的 chat/completions 接口
type HTTPGenerator struct {
	config config.AIConfig
	client *http.Client
}

func NewHTTPGenerator(cfg config.AIConfig) *HTTPGenerator {
	return &HTTPGenerator{
		config: cfg,
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

type aiChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type aiChatResponse struct {
	Choices []struct {
		Message aiChatMessage `json:"message"`
	} `json:"choices"`
}

func (g *HTTPGenerator) Generate(ctx context.Context, req GenerateRequest) ([]GeneratedQuestion, error) {
	text, err := g.Complete(ctx, questionWriterRole, buildGeneratePrompt(req))
	if err != nil {
		return nil, err
	}
	return ParseGeneratedQuestions(text, req.Count)
}

func (g *HTTPGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": g.config.Model,
		"messages": []aiChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		"stream": false,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(g.config.BaseURL, "/")+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &AIStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out aiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode AI response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("AI response has no choices")
	}
	return out.Choices[0].Message.Content, nil
}

// AIStatusError 模型接口返回非 200
type AIStatusError struct {
	StatusCode int
	Body       string
}

func (e *AIStatusError) Error() string {
	return fmt.Sprintf("AI API error (status %d): %s", e.StatusCode, e.Body)
}

// GeminiGenerator google generative-ai 客户端
type GeminiGenerator struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

func NewGeminiGenerator(cfg config.AIConfig) (*GeminiGenerator, error) {
	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	name := cfg.Model
	if name == "" {
		name = "gemini-1.5-flash"
	}
	model := client.GenerativeModel(name)
	model.ResponseMIMEType = "application/json"
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) ([]GeneratedQuestion, error) {
	text, err := g.Complete(ctx, "", buildGeneratePrompt(req))
	if err != nil {
		return nil, err
	}
	return ParseGeneratedQuestions(text, req.Count)
}

// Complete 模型实例在请求间共享，system 直接拼在提示词前面
func (g *GeminiGenerator) Complete(ctx context.Context, system, prompt string) (string, error) {
	if system != "" {
		prompt = system + "\n\n" + prompt
	}
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		logger.Log.Error("gemini generate failed", zap.Error(err))
		return "", err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("gemini returned no content")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return text.String(), nil
}

func (g *GeminiGenerator) Close() error {
	return g.client.Close()
}
