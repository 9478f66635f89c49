package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
)

const (
	MinGenerateCount = 1
	MaxGenerateCount = 20
)

// ExplanationUnavailable is shown whenever an explanation cannot be produced.
const ExplanationUnavailable = "Không thể tạo giải thích lúc này. Vui lòng thử lại sau."

// Gateway builds prompts for the AI model and parses what comes back.
// Outbound calls share a fixed number of slots.
type Gateway struct {
	gen      TextGenerator
	log      zerolog.Logger
	rateChan chan struct{} // Token bucket
	wait     time.Duration
}

func NewGateway(gen TextGenerator, concurrentReqs int, log zerolog.Logger) *Gateway {
	if concurrentReqs < 1 {
		concurrentReqs = 1
	}

	// Token bucket for rate limiting
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &Gateway{
		gen:      gen,
		log:      log.With().Str("component", "ai").Logger(),
		rateChan: rateChan,
		wait:     5 * time.Minute,
	}
}

// acquireRate blocks until a rate slot is available
func (g *Gateway) acquireRate(ctx context.Context) error {
	select {
	case <-g.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(g.wait):
		return fmt.Errorf("timeout waiting for AI rate slot")
	}
}

func (g *Gateway) releaseRate() {
	g.rateChan <- struct{}{}
}

func (g *Gateway) call(ctx context.Context, prompt string) (string, error) {
	if err := g.acquireRate(ctx); err != nil {
		return "", err
	}
	defer g.releaseRate()

	start := time.Now()
	text, err := g.gen.GenerateText(ctx, prompt)
	if err != nil {
		g.log.Warn().Err(err).Dur("duration", time.Since(start)).Msg("AI call failed")
		return "", err
	}
	g.log.Debug().Int("chars", len(text)).Dur("duration", time.Since(start)).Msg("AI call completed")
	return text, nil
}

// GenerateQuestions asks the model for count drafts based on sourceText.
// Drafts are returned as the model produced them; nothing checks that
// the answers are correct.
func (g *Gateway) GenerateQuestions(ctx context.Context, sourceText string, count int) ([]models.Draft, error) {
	fields := make(map[string]string)
	if strings.TrimSpace(sourceText) == "" {
		fields["source_text"] = "source_text is required"
	}
	if count < MinGenerateCount || count > MaxGenerateCount {
		fields["count"] = fmt.Sprintf("count must be between %d and %d", MinGenerateCount, MaxGenerateCount)
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	raw, err := g.call(ctx, buildQuestionsPrompt(sourceText, count))
	if err != nil {
		return nil, &UpstreamError{Message: "Không thể tạo câu hỏi. Vui lòng thử lại.", Err: err}
	}

	drafts, err := parseDrafts(raw)
	if err != nil {
		g.log.Warn().Err(err).Msg("Unparseable generation output")
		return nil, &UpstreamError{Message: "AI trả về dữ liệu không hợp lệ. Vui lòng thử lại.", Err: err}
	}
	return drafts, nil
}

// ExplainAnswer asks why the correct answer is right and, when the user
// was wrong, what they missed. Callers show ExplanationUnavailable on error.
func (g *Gateway) ExplainAnswer(ctx context.Context, q models.Question, userAnswer string) (string, error) {
	raw, err := g.call(ctx, buildExplainPrompt(q, userAnswer))
	if err != nil {
		return "", &UpstreamError{Message: ExplanationUnavailable, Err: err}
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return "", &UpstreamError{Message: ExplanationUnavailable, Err: fmt.Errorf("empty explanation")}
	}
	return text, nil
}

func buildQuestionsPrompt(sourceText string, count int) string {
	var b strings.Builder

	b.WriteString("Bạn là một giáo viên giàu kinh nghiệm. Hãy tạo câu hỏi kiểm tra dựa trên nội dung dưới đây.\n\n")
	b.WriteString("CRITICAL: Return ONLY a valid JSON array. No preamble, no markdown, no backticks.\n\n")
	b.WriteString(fmt.Sprintf("Generate exactly %d questions.\n", count))
	b.WriteString(fmt.Sprintf(`
JSON schema per question:
{"text": "string", "type": "%s"|"%s"|"%s", "options": ["string"], "answer": "string", "topic": "string"}

For %s: exactly %d options and "answer" must equal one of them.
For %s: omit "options"; "answer" must be "%s" or "%s".
For %s: omit "options"; "answer" is the missing word or phrase.
"topic" is a short label for the concept being tested.
Write the questions in the same language as the content.
`,
		models.QuestionTypeMultipleChoice, models.QuestionTypeTrueFalse, models.QuestionTypeFillInBlank,
		models.QuestionTypeMultipleChoice, models.MultipleChoiceOptionCount,
		models.QuestionTypeTrueFalse, models.AnswerTrue, models.AnswerFalse,
		models.QuestionTypeFillInBlank,
	))

	b.WriteString("\n---CONTENT---\n")
	b.WriteString(sourceText)
	b.WriteString("\n---END---\n")

	return b.String()
}

func buildExplainPrompt(q models.Question, userAnswer string) string {
	var b strings.Builder

	b.WriteString("Bạn là một gia sư kiên nhẫn. Hãy giải thích ngắn gọn (tối đa 4 câu) vì sao đáp án đúng là đúng")
	if strings.TrimSpace(userAnswer) != "" {
		b.WriteString(" và vì sao câu trả lời của học sinh chưa chính xác")
	}
	b.WriteString(". Trả lời bằng văn bản thuần, không dùng markdown.\n\n")

	b.WriteString(fmt.Sprintf("Câu hỏi: %s\n", q.Text))
	if len(q.Options) > 0 {
		b.WriteString(fmt.Sprintf("Các lựa chọn: %s\n", strings.Join(q.Options, " | ")))
	}
	b.WriteString(fmt.Sprintf("Đáp án đúng: %s\n", q.Answer))
	if strings.TrimSpace(userAnswer) == "" {
		b.WriteString("Học sinh không trả lời câu này.\n")
	} else {
		b.WriteString(fmt.Sprintf("Câu trả lời của học sinh: %s\n", userAnswer))
	}

	return b.String()
}

// parseDrafts reads a JSON array of drafts, tolerating markdown fences
// and text around the array.
func parseDrafts(raw string) ([]models.Draft, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var drafts []models.Draft
	if err := json.Unmarshal([]byte(text), &drafts); err != nil {
		// Try to extract JSON array
		start := strings.Index(text, "[")
		end := strings.LastIndex(text, "]")
		if start < 0 || end <= start {
			return nil, fmt.Errorf("no JSON array in model output: %w", err)
		}
		drafts = nil
		if err := json.Unmarshal([]byte(text[start:end+1]), &drafts); err != nil {
			return nil, fmt.Errorf("parse model output: %w", err)
		}
	}
	if len(drafts) == 0 {
		return nil, fmt.Errorf("model returned no questions")
	}
	return drafts, nil
}
