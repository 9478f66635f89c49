package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
	"quizme-backend/internal/quiz"
)

// AttemptSource yields the attempt explanations are requested for.
type AttemptSource interface {
	LatestAttempt(ctx context.Context) (*models.QuizAttempt, error)
}

// Explainer explains questions of the latest attempt. Each question has
// at most one request in flight and its answer is kept for the attempt.
type Explainer struct {
	gateway  *Gateway
	attempts AttemptSource
	log      zerolog.Logger
	inflight *inflight

	mu        sync.Mutex
	attemptAt time.Time
	cache     map[string]string
}

func NewExplainer(gateway *Gateway, attempts AttemptSource, log zerolog.Logger) *Explainer {
	return &Explainer{
		gateway:  gateway,
		attempts: attempts,
		log:      log.With().Str("component", "explain").Logger(),
		inflight: newInflight(),
		cache:    make(map[string]string),
	}
}

func (e *Explainer) Explain(ctx context.Context, questionID string) (string, error) {
	attempt, err := e.attempts.LatestAttempt(ctx)
	if err != nil {
		if errors.Is(err, quiz.ErrNoAttempts) {
			return "", &NotFoundError{Message: "No quiz attempts yet"}
		}
		return "", err
	}

	var question *models.Question
	for i := range attempt.Questions {
		if attempt.Questions[i].ID == questionID {
			question = &attempt.Questions[i]
			break
		}
	}
	if question == nil {
		return "", &NotFoundError{Message: fmt.Sprintf("Question %s is not part of the latest attempt", questionID)}
	}

	if text, ok := e.cached(attempt.Timestamp, questionID); ok {
		return text, nil
	}

	key := "explain:" + questionID
	ticket, err := e.inflight.begin(key)
	if err != nil {
		return "", err
	}

	text, explainErr := e.gateway.ExplainAnswer(ctx, *question, attempt.UserAnswers[questionID])
	e.inflight.finish(key, ticket, func() {
		if explainErr != nil {
			return
		}
		e.mu.Lock()
		defer e.mu.Unlock()
		if !e.attemptAt.Equal(attempt.Timestamp) {
			e.attemptAt = attempt.Timestamp
			e.cache = make(map[string]string)
		}
		e.cache[questionID] = text
	})
	if explainErr != nil {
		e.log.Warn().Err(explainErr).Str("question_id", questionID).Msg("Explanation failed")
		return "", explainErr
	}
	return text, nil
}

func (e *Explainer) cached(attemptAt time.Time, questionID string) (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.attemptAt.Equal(attemptAt) {
		return "", false
	}
	text, ok := e.cache[questionID]
	return text, ok
}
