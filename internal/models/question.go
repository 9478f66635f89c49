package models

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeTrueFalse      QuestionType = "TRUE_FALSE"
	QuestionTypeFillInBlank    QuestionType = "FILL_IN_THE_BLANK"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionTypeMultipleChoice, QuestionTypeTrueFalse, QuestionTypeFillInBlank:
		return true
	}
	return false
}

// Canonical true/false answers and the default topic label.
const (
	AnswerTrue   = "Đúng"
	AnswerFalse  = "Sai"
	DefaultTopic = "Chung"

	MultipleChoiceOptionCount = 4
)

type Question struct {
	ID      string       `json:"id"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Answer  string       `json:"answer"`
	Topic   string       `json:"topic"`
}

// Draft is a question that has not been committed to the library yet.
type Draft struct {
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []string     `json:"options,omitempty"`
	Answer  string       `json:"answer"`
	Topic   string       `json:"topic"`
}

func (d Draft) WithID(id string) Question {
	return Question{
		ID:      id,
		Text:    d.Text,
		Type:    d.Type,
		Options: append([]string(nil), d.Options...),
		Answer:  d.Answer,
		Topic:   d.Topic,
	}
}

type Chapter struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Questions []Question `json:"questions"`
}

type Subject struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Chapters []Chapter `json:"chapters"`
}

// Library is the ordered list of subjects; it is persisted as a whole.
type Library []Subject

type LibraryStats struct {
	Subjects  int `json:"subjects"`
	Chapters  int `json:"chapters"`
	Questions int `json:"questions"`
}

// CreateQuestionRequest is the manual authoring payload.
type CreateQuestionRequest struct {
	Subject string       `json:"subject" validate:"required"`
	Chapter string       `json:"chapter" validate:"required"`
	Text    string       `json:"text" validate:"required"`
	Type    QuestionType `json:"type" validate:"required,oneof=MULTIPLE_CHOICE TRUE_FALSE FILL_IN_THE_BLANK"`
	Options []string     `json:"options"`
	Answer  string       `json:"answer" validate:"required"`
	Topic   string       `json:"topic"`
}
