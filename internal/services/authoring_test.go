package services

import (
	"errors"
	"testing"

	"quizme-backend/internal/models"
)

func TestValidateQuestionInput(t *testing.T) {
	mc := func() models.CreateQuestionRequest {
		return models.CreateQuestionRequest{
			Subject: "Math",
			Chapter: "Algebra",
			Text:    "2+2?",
			Type:    models.QuestionTypeMultipleChoice,
			Options: []string{"3", "4", "5", "6"},
			Answer:  "4",
		}
	}

	tests := []struct {
		name      string
		mutate    func(r *models.CreateQuestionRequest)
		wantField string
	}{
		{"valid multiple choice", func(r *models.CreateQuestionRequest) {}, ""},
		{"missing subject", func(r *models.CreateQuestionRequest) { r.Subject = "  " }, "subject"},
		{"missing chapter", func(r *models.CreateQuestionRequest) { r.Chapter = "" }, "chapter"},
		{"missing text", func(r *models.CreateQuestionRequest) { r.Text = "" }, "text"},
		{"missing answer", func(r *models.CreateQuestionRequest) { r.Answer = "" }, "answer"},
		{"unknown type", func(r *models.CreateQuestionRequest) { r.Type = "ESSAY" }, "type"},
		{"three options", func(r *models.CreateQuestionRequest) { r.Options = r.Options[:3] }, "options"},
		{"blank option", func(r *models.CreateQuestionRequest) { r.Options[2] = " " }, "options"},
		{"answer not an option", func(r *models.CreateQuestionRequest) { r.Answer = "7" }, "answer"},
		{"true false bad answer", func(r *models.CreateQuestionRequest) {
			r.Type = models.QuestionTypeTrueFalse
			r.Answer = "True"
		}, "answer"},
		{"true false ok", func(r *models.CreateQuestionRequest) {
			r.Type = models.QuestionTypeTrueFalse
			r.Answer = models.AnswerFalse
		}, ""},
		{"fill in blank ok", func(r *models.CreateQuestionRequest) {
			r.Type = models.QuestionTypeFillInBlank
			r.Answer = "x"
		}, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := mc()
			req.Options = append([]string(nil), req.Options...)
			tc.mutate(&req)

			_, err := ValidateQuestionInput(req)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}

			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if _, ok := ve.Fields[tc.wantField]; !ok {
				t.Fatalf("expected field %q in %v", tc.wantField, ve.Fields)
			}
		})
	}
}

func TestValidateQuestionInput_Normalizes(t *testing.T) {
	draft, err := ValidateQuestionInput(models.CreateQuestionRequest{
		Subject: "Math",
		Chapter: "Algebra",
		Text:    " Is 0 even? ",
		Type:    models.QuestionTypeTrueFalse,
		Options: []string{"a", "b"},
		Answer:  models.AnswerTrue,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Options != nil {
		t.Errorf("options should be dropped for true/false, got %v", draft.Options)
	}
	if draft.Topic != models.DefaultTopic {
		t.Errorf("expected default topic, got %q", draft.Topic)
	}
	if draft.Text != "Is 0 even?" {
		t.Errorf("text not trimmed: %q", draft.Text)
	}
}
