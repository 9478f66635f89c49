package quiz

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
	"quizme-backend/internal/store"
)

var (
	ErrNoQuestions     = errors.New("quiz: no questions to start")
	ErrChapterNotFound = errors.New("quiz: chapter not found")
	ErrNoActiveSession = errors.New("quiz: no active session")
	ErrIndexOutOfRange = errors.New("quiz: question index out of range")
	ErrUnknownQuestion = errors.New("quiz: question is not part of the active session")
	ErrNoAttempts      = errors.New("quiz: no attempts recorded")
)

// QuestionSource is the part of the catalog a quiz is drawn from.
type QuestionSource interface {
	FindChapter(subjectName, chapterName string) (models.Chapter, bool)
	AllQuestions() []models.Question
}

type Publisher interface {
	Publish(ctx context.Context, msg models.WSMessage)
}

// Controller owns the active quiz session and the attempt history.
// Every mutation is written through to the store so a restart resumes
// exactly where the user left off.
type Controller struct {
	store  store.Store
	source QuestionSource
	events Publisher
	log    zerolog.Logger
	now    func() time.Time

	mu      sync.Mutex
	rng     *rand.Rand
	showing bool // InProgress when true, Suspended otherwise
	pending []models.WSMessage
}

func NewController(s store.Store, source QuestionSource, events Publisher, log zerolog.Logger) *Controller {
	return &Controller{
		store:  s,
		source: source,
		events: events,
		log:    log.With().Str("component", "quiz").Logger(),
		now:    time.Now,
		rng:    rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
}

func (c *Controller) loadSession(ctx context.Context) (*models.QuizSession, error) {
	sess, err := store.GetJSON[*models.QuizSession](ctx, c.store, store.KeyActiveSession, nil)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if sess != nil && sess.UserAnswers == nil {
		sess.UserAnswers = models.UserAnswers{}
	}
	return sess, nil
}

func (c *Controller) saveSession(ctx context.Context, sess *models.QuizSession) error {
	if err := store.SetJSON(ctx, c.store, store.KeyActiveSession, sess); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	c.publish(ctx, models.EventSessionUpdated, models.SessionUpdatedEvent{
		CurrentIndex:  sess.CurrentIndex,
		Total:         len(sess.Questions),
		AnsweredCount: len(sess.UserAnswers),
	})
	return nil
}

func (c *Controller) clearSession(ctx context.Context) error {
	if err := c.store.Delete(ctx, store.KeyActiveSession); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	c.showing = false
	c.publish(ctx, models.EventSessionCleared, nil)
	return nil
}

// publish queues an event; it goes out once c.mu is released.
func (c *Controller) publish(ctx context.Context, typ string, payload interface{}) {
	if c.events == nil {
		return
	}
	c.pending = append(c.pending, models.WSMessage{Type: typ, Payload: payload})
}

// unlock releases c.mu and then sends the events queued while it was held.
func (c *Controller) unlock(ctx context.Context) {
	events := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, msg := range events {
		c.events.Publish(ctx, msg)
	}
}

// Session returns the persisted session, or nil when idle.
func (c *Controller) Session(ctx context.Context) (*models.QuizSession, error) {
	c.mu.Lock()
	defer c.unlock(ctx)
	return c.loadSession(ctx)
}

func (c *Controller) Status(ctx context.Context) (models.SessionStatus, error) {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return models.SessionStatus{}, err
	}
	return c.status(sess), nil
}

func (c *Controller) status(sess *models.QuizSession) models.SessionStatus {
	if sess == nil {
		return models.SessionStatus{State: models.SessionStateIdle}
	}
	st := models.SessionStatus{
		State:         models.SessionStateSuspended,
		CurrentIndex:  sess.CurrentIndex,
		Total:         len(sess.Questions),
		AnsweredCount: len(sess.UserAnswers),
		StartTime:     &sess.StartTime,
		Session:       sess,
	}
	if c.showing {
		st.State = models.SessionStateInProgress
	}
	return st
}

// Start replaces any active session with a new one over a copy of questions.
func (c *Controller) Start(ctx context.Context, questions []models.Question) (*models.QuizSession, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	c.mu.Lock()
	defer c.unlock(ctx)

	sess := &models.QuizSession{
		Questions:    cloneQuestions(questions),
		UserAnswers:  models.UserAnswers{},
		CurrentIndex: 0,
		StartTime:    c.now(),
	}
	if err := c.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	c.showing = true

	c.log.Info().Int("questions", len(questions)).Msg("Quiz started")
	return sess, nil
}

func (c *Controller) StartChapter(ctx context.Context, subjectName, chapterName string) (*models.QuizSession, error) {
	ch, ok := c.source.FindChapter(subjectName, chapterName)
	if !ok {
		return nil, ErrChapterNotFound
	}
	return c.Start(ctx, ch.Questions)
}

// StartRandom draws a practice quiz from the whole library.
func (c *Controller) StartRandom(ctx context.Context) (*models.QuizSession, error) {
	pool := c.source.AllQuestions()

	c.mu.Lock()
	picked := SelectRandom(pool, RandomQuizSize, c.rng)
	c.mu.Unlock()

	return c.Start(ctx, picked)
}

func (c *Controller) Resume(ctx context.Context) (*models.QuizSession, error) {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	c.showing = true
	return sess, nil
}

// Suspend leaves the taking screen; the session and its answers stay stored.
func (c *Controller) Suspend(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoActiveSession
	}
	c.showing = false
	return nil
}

// RecordAnswer upserts the answer for one question. The value is not
// checked against the question's options.
func (c *Controller) RecordAnswer(ctx context.Context, questionID, value string) (*models.QuizSession, error) {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	if !containsQuestion(sess.Questions, questionID) {
		return nil, ErrUnknownQuestion
	}

	sess.UserAnswers[questionID] = value
	if err := c.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (c *Controller) Navigate(ctx context.Context, index int) (*models.QuizSession, error) {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	if index < 0 || index >= len(sess.Questions) {
		return nil, ErrIndexOutOfRange
	}

	sess.CurrentIndex = index
	if err := c.saveSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Submit scores the session, appends the attempt to history and clears
// the session. A nil answers map submits the recorded answers.
func (c *Controller) Submit(ctx context.Context, answers models.UserAnswers) (*models.QuizAttempt, error) {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, ErrNoActiveSession
	}
	if answers == nil {
		answers = sess.UserAnswers
	}

	final := make(models.UserAnswers, len(answers))
	for k, v := range answers {
		final[k] = v
	}

	attempt := models.QuizAttempt{
		Questions:   sess.Questions,
		UserAnswers: final,
		Score:       Score(sess.Questions, final),
		Total:       len(sess.Questions),
		Timestamp:   c.now(),
	}

	history, err := store.GetJSON(ctx, c.store, store.KeyAttempts, []models.QuizAttempt{})
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}

	// The session goes first so a failed submit can be retried without
	// recording the attempt twice.
	showing := c.showing
	if err := c.clearSession(ctx); err != nil {
		return nil, err
	}
	history = append(history, attempt)
	if err := store.SetJSON(ctx, c.store, store.KeyAttempts, history); err != nil {
		if rerr := c.saveSession(ctx, sess); rerr != nil {
			c.log.Error().Err(rerr).Msg("Failed to restore session after submit error")
		} else {
			c.showing = showing
		}
		return nil, fmt.Errorf("persist attempts: %w", err)
	}

	c.log.Info().Int("score", attempt.Score).Int("total", attempt.Total).Msg("Quiz submitted")
	c.publish(ctx, models.EventAttemptRecorded, models.AttemptRecordedEvent{Score: attempt.Score, Total: attempt.Total})

	return &attempt, nil
}

// Abandon drops the active session without recording an attempt.
func (c *Controller) Abandon(ctx context.Context) error {
	c.mu.Lock()
	defer c.unlock(ctx)

	sess, err := c.loadSession(ctx)
	if err != nil {
		return err
	}
	if sess == nil {
		return ErrNoActiveSession
	}
	c.log.Info().Int("answered", len(sess.UserAnswers)).Msg("Quiz abandoned")
	return c.clearSession(ctx)
}

func (c *Controller) Attempts(ctx context.Context) ([]models.QuizAttempt, error) {
	attempts, err := store.GetJSON(ctx, c.store, store.KeyAttempts, []models.QuizAttempt{})
	if err != nil {
		return nil, fmt.Errorf("load attempts: %w", err)
	}
	if attempts == nil {
		attempts = []models.QuizAttempt{}
	}
	return attempts, nil
}

func (c *Controller) LatestAttempt(ctx context.Context) (*models.QuizAttempt, error) {
	attempts, err := c.Attempts(ctx)
	if err != nil {
		return nil, err
	}
	if len(attempts) == 0 {
		return nil, ErrNoAttempts
	}
	latest := attempts[len(attempts)-1]
	return &latest, nil
}

func containsQuestion(qs []models.Question, id string) bool {
	for _, q := range qs {
		if q.ID == id {
			return true
		}
	}
	return false
}

func cloneQuestions(qs []models.Question) []models.Question {
	out := make([]models.Question, len(qs))
	for i, q := range qs {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}
