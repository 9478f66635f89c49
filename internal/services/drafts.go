package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
)

const generateAction = "generate"

// QuestionAppender commits drafts to a chapter of the library.
type QuestionAppender interface {
	AppendQuestions(ctx context.Context, subjectName, chapterName string, drafts []models.Draft) ([]models.Question, error)
}

type Publisher interface {
	Publish(ctx context.Context, msg models.WSMessage)
}

// DraftBoard holds AI-generated drafts for review until they are saved
// or discarded. Drafts are not persisted.
type DraftBoard struct {
	gateway  *Gateway
	library  QuestionAppender
	events   Publisher
	log      zerolog.Logger
	inflight *inflight

	mu     sync.Mutex
	drafts []models.Draft
}

func NewDraftBoard(gateway *Gateway, library QuestionAppender, events Publisher, log zerolog.Logger) *DraftBoard {
	return &DraftBoard{
		gateway:  gateway,
		library:  library,
		events:   events,
		log:      log.With().Str("component", "drafts").Logger(),
		inflight: newInflight(),
		drafts:   []models.Draft{},
	}
}

// Generate replaces the board with freshly generated drafts. Only one
// generation runs at a time; a generation cancelled by Discard or Save
// returns ErrStaleResult and leaves the board alone.
func (b *DraftBoard) Generate(ctx context.Context, sourceText string, count int) ([]models.Draft, error) {
	ticket, err := b.inflight.begin(generateAction)
	if err != nil {
		return nil, err
	}

	drafts, genErr := b.gateway.GenerateQuestions(ctx, sourceText, count)

	var out []models.Draft
	applied := b.inflight.finish(generateAction, ticket, func() {
		if genErr != nil {
			return
		}
		b.mu.Lock()
		b.drafts = drafts
		out = cloneDrafts(b.drafts)
		b.mu.Unlock()
	})
	if !applied {
		b.log.Info().Msg("Discarded generation result for cancelled request")
		return nil, ErrStaleResult
	}
	if genErr != nil {
		return nil, genErr
	}

	b.log.Info().Int("drafts", len(out)).Msg("Drafts generated")
	b.publish(ctx, len(out))
	return out, nil
}

// Generating reports whether a generation is pending.
func (b *DraftBoard) Generating() bool {
	return b.inflight.busy(generateAction)
}

func (b *DraftBoard) List() []models.Draft {
	b.mu.Lock()
	defer b.mu.Unlock()
	return cloneDrafts(b.drafts)
}

func (b *DraftBoard) Edit(ctx context.Context, index int, d models.Draft) (models.Draft, error) {
	b.mu.Lock()
	if index < 0 || index >= len(b.drafts) {
		b.mu.Unlock()
		return models.Draft{}, &NotFoundError{Message: fmt.Sprintf("Draft %d not found", index)}
	}
	d.Options = append([]string(nil), d.Options...)
	b.drafts[index] = d
	n := len(b.drafts)
	b.mu.Unlock()

	b.publish(ctx, n)
	return d, nil
}

func (b *DraftBoard) Remove(ctx context.Context, index int) error {
	b.mu.Lock()
	if index < 0 || index >= len(b.drafts) {
		b.mu.Unlock()
		return &NotFoundError{Message: fmt.Sprintf("Draft %d not found", index)}
	}
	b.drafts = append(b.drafts[:index:index], b.drafts[index+1:]...)
	n := len(b.drafts)
	b.mu.Unlock()

	b.publish(ctx, n)
	return nil
}

// Discard empties the board and cancels a pending generation.
func (b *DraftBoard) Discard(ctx context.Context) {
	b.inflight.cancel(generateAction)

	b.mu.Lock()
	b.drafts = []models.Draft{}
	b.mu.Unlock()

	b.publish(ctx, 0)
}

// Save appends every draft to subject/chapter and clears the board.
// Saving an empty board is a no-op.
func (b *DraftBoard) Save(ctx context.Context, subjectName, chapterName string) ([]models.Question, error) {
	subjectName = strings.TrimSpace(subjectName)
	chapterName = strings.TrimSpace(chapterName)

	fields := make(map[string]string)
	if subjectName == "" {
		fields["subject"] = "subject is required"
	}
	if chapterName == "" {
		fields["chapter"] = "chapter is required"
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	b.inflight.cancel(generateAction)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.drafts) == 0 {
		return []models.Question{}, nil
	}

	added, err := b.library.AppendQuestions(ctx, subjectName, chapterName, b.drafts)
	if err != nil {
		return nil, fmt.Errorf("save drafts: %w", err)
	}

	b.drafts = []models.Draft{}
	b.log.Info().Str("subject", subjectName).Str("chapter", chapterName).Int("questions", len(added)).Msg("Drafts saved")

	if b.events != nil {
		b.events.Publish(ctx, models.WSMessage{Type: models.EventDraftsUpdated, Payload: models.DraftsUpdatedEvent{Count: 0}})
	}
	return added, nil
}

func (b *DraftBoard) publish(ctx context.Context, count int) {
	if b.events == nil {
		return
	}
	b.events.Publish(ctx, models.WSMessage{Type: models.EventDraftsUpdated, Payload: models.DraftsUpdatedEvent{Count: count}})
}

func cloneDrafts(ds []models.Draft) []models.Draft {
	out := make([]models.Draft, len(ds))
	for i, d := range ds {
		d.Options = append([]string(nil), d.Options...)
		out[i] = d
	}
	return out
}
