package catalog

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"quizme-backend/internal/models"
	"quizme-backend/internal/store"
)

// Publisher receives change notifications.
type Publisher interface {
	Publish(ctx context.Context, msg models.WSMessage)
}

// Catalog owns the subject → chapter → question library. Readers get an
// immutable snapshot; writers replace it.
type Catalog struct {
	store  store.Store
	events Publisher
	log    zerolog.Logger
	newID  func() string

	mu      sync.Mutex // serializes writers
	library atomic.Pointer[models.Library]
}

func New(s store.Store, events Publisher, log zerolog.Logger) *Catalog {
	c := &Catalog{
		store:  s,
		events: events,
		log:    log.With().Str("component", "catalog").Logger(),
		newID:  uuid.NewString,
	}
	empty := models.Library{}
	c.library.Store(&empty)
	return c
}

// Load replaces the in-memory snapshot with the persisted library.
func (c *Catalog) Load(ctx context.Context) error {
	lib, err := store.GetJSON(ctx, c.store, store.KeySubjects, models.Library{})
	if err != nil {
		return fmt.Errorf("load library: %w", err)
	}
	if lib == nil {
		lib = models.Library{}
	}

	c.mu.Lock()
	c.library.Store(&lib)
	c.mu.Unlock()

	stats := Stats(lib)
	c.log.Info().Int("subjects", stats.Subjects).Int("questions", stats.Questions).Msg("Library loaded")
	return nil
}

// Library returns the current snapshot. Callers must not modify it.
func (c *Catalog) Library() models.Library {
	return *c.library.Load()
}

func (c *Catalog) Subjects() []string {
	lib := c.Library()
	names := make([]string, 0, len(lib))
	for _, s := range lib {
		names = append(names, s.Name)
	}
	return names
}

func (c *Catalog) Chapters(subjectName string) []string {
	lib := c.Library()
	i := findSubject(lib, subjectName)
	if i < 0 {
		return []string{}
	}
	names := make([]string, 0, len(lib[i].Chapters))
	for _, ch := range lib[i].Chapters {
		names = append(names, ch.Name)
	}
	return names
}

func (c *Catalog) FindChapter(subjectName, chapterName string) (models.Chapter, bool) {
	lib := c.Library()
	si := findSubject(lib, subjectName)
	if si < 0 {
		return models.Chapter{}, false
	}
	ci := findChapter(lib[si].Chapters, chapterName)
	if ci < 0 {
		return models.Chapter{}, false
	}
	return lib[si].Chapters[ci], true
}

// AllQuestions flattens the library in display order.
func (c *Catalog) AllQuestions() []models.Question {
	var all []models.Question
	for _, s := range c.Library() {
		for _, ch := range s.Chapters {
			all = append(all, ch.Questions...)
		}
	}
	return all
}

func (c *Catalog) HasQuestions() bool {
	return Stats(c.Library()).Questions > 0
}

func (c *Catalog) Stats() models.LibraryStats {
	return Stats(c.Library())
}

// AppendQuestions adds drafts to the named chapter, creating the subject
// and chapter when they do not exist yet. Every question gets a fresh id.
// The new library is persisted before it becomes visible to readers.
func (c *Catalog) AppendQuestions(ctx context.Context, subjectName, chapterName string, drafts []models.Draft) ([]models.Question, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, added := appendQuestions(*c.library.Load(), subjectName, chapterName, drafts, c.newID)

	if err := store.SetJSON(ctx, c.store, store.KeySubjects, next); err != nil {
		return nil, fmt.Errorf("persist library: %w", err)
	}
	c.library.Store(&next)

	c.log.Info().
		Str("subject", subjectName).
		Str("chapter", chapterName).
		Int("added", len(added)).
		Msg("Questions appended")

	if c.events != nil {
		c.events.Publish(ctx, models.WSMessage{
			Type:    models.EventLibraryUpdated,
			Payload: models.LibraryUpdatedEvent{Subject: subjectName, Chapter: chapterName, Added: len(added)},
		})
	}

	return added, nil
}

// appendQuestions copies only the path it changes: the subject slice, the
// touched subject's chapter slice and the touched chapter's question slice.
func appendQuestions(prev models.Library, subjectName, chapterName string, drafts []models.Draft, newID func() string) (models.Library, []models.Question) {
	next := make(models.Library, len(prev), len(prev)+1)
	copy(next, prev)

	si := findSubject(next, subjectName)
	if si < 0 {
		next = append(next, models.Subject{ID: newID(), Name: subjectName, Chapters: []models.Chapter{}})
		si = len(next) - 1
	}

	subject := next[si]
	chapters := make([]models.Chapter, len(subject.Chapters), len(subject.Chapters)+1)
	copy(chapters, subject.Chapters)

	ci := findChapter(chapters, chapterName)
	if ci < 0 {
		chapters = append(chapters, models.Chapter{ID: newID(), Name: chapterName, Questions: []models.Question{}})
		ci = len(chapters) - 1
	}

	chapter := chapters[ci]
	added := make([]models.Question, len(drafts))
	for i, d := range drafts {
		added[i] = d.WithID(newID())
	}

	questions := make([]models.Question, 0, len(chapter.Questions)+len(added))
	questions = append(questions, chapter.Questions...)
	questions = append(questions, added...)

	chapter.Questions = questions
	chapters[ci] = chapter
	subject.Chapters = chapters
	next[si] = subject

	return next, added
}

func Stats(lib models.Library) models.LibraryStats {
	st := models.LibraryStats{Subjects: len(lib)}
	for _, s := range lib {
		st.Chapters += len(s.Chapters)
		for _, ch := range s.Chapters {
			st.Questions += len(ch.Questions)
		}
	}
	return st
}

func findSubject(lib models.Library, name string) int {
	for i := range lib {
		if lib[i].Name == name {
			return i
		}
	}
	return -1
}

func findChapter(chapters []models.Chapter, name string) int {
	for i := range chapters {
		if chapters[i].Name == name {
			return i
		}
	}
	return -1
}
