package models

import "time"

// UserAnswers maps a question id to the answer the user entered.
type UserAnswers map[string]string

type QuizSession struct {
	Questions    []Question  `json:"questions"`
	UserAnswers  UserAnswers `json:"user_answers"`
	CurrentIndex int         `json:"current_index"`
	StartTime    time.Time   `json:"start_time"`
}

type QuizAttempt struct {
	Questions   []Question  `json:"questions"`
	UserAnswers UserAnswers `json:"user_answers"`
	Score       int         `json:"score"`
	Total       int         `json:"total"`
	Timestamp   time.Time   `json:"timestamp"`
}

type SessionState string

const (
	SessionStateIdle       SessionState = "IDLE"
	SessionStateSuspended  SessionState = "SUSPENDED"
	SessionStateInProgress SessionState = "IN_PROGRESS"
)

type SessionStatus struct {
	State         SessionState `json:"state"`
	CurrentIndex  int          `json:"current_index"`
	Total         int          `json:"total"`
	AnsweredCount int          `json:"answered_count"`
	StartTime     *time.Time   `json:"start_time,omitempty"`
	Session       *QuizSession `json:"session,omitempty"`
}

type StartQuizRequest struct {
	Subject string `json:"subject"`
	Chapter string `json:"chapter"`
}

type RecordAnswerRequest struct {
	QuestionID string `json:"question_id"`
	Value      string `json:"value"`
}

type NavigateRequest struct {
	Index *int `json:"index"`
}

type SubmitQuizRequest struct {
	UserAnswers UserAnswers `json:"user_answers"`
}

type QuestionResult struct {
	Question   Question `json:"question"`
	UserAnswer string   `json:"user_answer"`
	Answered   bool     `json:"answered"`
	Correct    bool     `json:"correct"`
}

type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// AttemptReview is the results view of one attempt.
type AttemptReview struct {
	Attempt         QuizAttempt      `json:"attempt"`
	ScorePercent    float64          `json:"score_percent"`
	Grade           string           `json:"grade"`
	Results         []QuestionResult `json:"results"`
	Incorrect       []Question       `json:"incorrect"`
	ReviewTopics    []TopicCount     `json:"review_topics"`
	HighlightTopics []TopicCount     `json:"highlight_topics"`
}
