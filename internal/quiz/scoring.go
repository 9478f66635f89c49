package quiz

import (
	"math/rand/v2"
	"sort"
	"strings"

	"quizme-backend/internal/models"
)

// RandomQuizSize caps random practice quizzes.
const RandomQuizSize = 20

// UnansweredLabel is shown in place of a missing answer on review.
const UnansweredLabel = "Chưa trả lời"

// Matches compares answers trimmed and case-folded. Nothing else is
// normalized: accents and punctuation must match.
func Matches(userAnswer, correct string) bool {
	return normalize(userAnswer) == normalize(correct)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Score counts the questions answered correctly. Missing answers are wrong.
func Score(questions []models.Question, answers models.UserAnswers) int {
	score := 0
	for _, q := range questions {
		if a, ok := answers[q.ID]; ok && Matches(a, q.Answer) {
			score++
		}
	}
	return score
}

// SelectRandom draws up to n questions uniformly without replacement.
// The pool is not modified.
func SelectRandom(pool []models.Question, n int, rng *rand.Rand) []models.Question {
	shuffled := make([]models.Question, len(pool))
	copy(shuffled, pool)
	if n > len(shuffled) {
		n = len(shuffled)
	}
	if n < 0 {
		n = 0
	}

	// Partial Fisher-Yates: the first n slots end up a uniform sample.
	for i := 0; i < n; i++ {
		j := i + rng.IntN(len(shuffled)-i)
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	}
	return shuffled[:n]
}

func gradeBand(percent float64) string {
	switch {
	case percent >= 80:
		return "good"
	case percent >= 50:
		return "fair"
	default:
		return "poor"
	}
}

// Review builds the results view of an attempt: per-question outcome,
// the wrong answers and the topics to revisit, most missed first.
func Review(a models.QuizAttempt) models.AttemptReview {
	r := models.AttemptReview{
		Attempt:         a,
		Results:         make([]models.QuestionResult, 0, len(a.Questions)),
		Incorrect:       []models.Question{},
		ReviewTopics:    []models.TopicCount{},
		HighlightTopics: []models.TopicCount{},
	}
	if a.Total > 0 {
		r.ScorePercent = float64(a.Score) / float64(a.Total) * 100
	}
	r.Grade = gradeBand(r.ScorePercent)

	misses := map[string]int{}
	for _, q := range a.Questions {
		answer, answered := a.UserAnswers[q.ID]
		correct := answered && Matches(answer, q.Answer)
		shown := answer
		if !answered || answer == "" {
			shown = UnansweredLabel
		}
		r.Results = append(r.Results, models.QuestionResult{
			Question:   q,
			UserAnswer: shown,
			Answered:   answered,
			Correct:    correct,
		})
		if !correct {
			r.Incorrect = append(r.Incorrect, q)
			misses[q.Topic]++
		}
	}

	for topic, count := range misses {
		r.ReviewTopics = append(r.ReviewTopics, models.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(r.ReviewTopics, func(i, j int) bool {
		if r.ReviewTopics[i].Count != r.ReviewTopics[j].Count {
			return r.ReviewTopics[i].Count > r.ReviewTopics[j].Count
		}
		return r.ReviewTopics[i].Topic < r.ReviewTopics[j].Topic
	})
	if len(r.ReviewTopics) > 3 {
		r.HighlightTopics = r.ReviewTopics[:3]
	} else {
		r.HighlightTopics = r.ReviewTopics
	}

	return r
}
