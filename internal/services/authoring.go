package services

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"quizme-backend/internal/models"
)

var (
	validateOnce sync.Once
	validate     *govalidator.Validate
	trans        ut.Translator
)

func validatorInstance() (*govalidator.Validate, ut.Translator) {
	validateOnce.Do(func() {
		validate = govalidator.New(govalidator.WithRequiredStructEnabled())

		// Use JSON tag name for field names in error messages.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")
		en_translations.RegisterDefaultTranslations(validate, trans)
	})
	return validate, trans
}

// translateErrors maps a validation failure to field name -> message.
func translateErrors(err error) map[string]string {
	_, tr := validatorInstance()
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(tr)
		}
		return fields
	}
	fields["detail"] = err.Error()
	return fields
}

// ValidateQuestionInput checks a manually authored question and returns
// the draft to append. Whitespace-only values count as missing.
func ValidateQuestionInput(req models.CreateQuestionRequest) (models.Draft, error) {
	req.Subject = strings.TrimSpace(req.Subject)
	req.Chapter = strings.TrimSpace(req.Chapter)
	req.Text = strings.TrimSpace(req.Text)
	req.Answer = strings.TrimSpace(req.Answer)
	req.Topic = strings.TrimSpace(req.Topic)

	v, _ := validatorInstance()
	if err := v.Struct(req); err != nil {
		return models.Draft{}, &ValidationError{Fields: translateErrors(err)}
	}

	fields := make(map[string]string)
	draft := models.Draft{
		Text:   req.Text,
		Type:   req.Type,
		Answer: req.Answer,
		Topic:  req.Topic,
	}

	switch req.Type {
	case models.QuestionTypeMultipleChoice:
		options := make([]string, 0, len(req.Options))
		for _, o := range req.Options {
			options = append(options, strings.TrimSpace(o))
		}
		if len(options) != models.MultipleChoiceOptionCount {
			fields["options"] = fmt.Sprintf("options must contain exactly %d entries", models.MultipleChoiceOptionCount)
			break
		}
		for _, o := range options {
			if o == "" {
				fields["options"] = "options must not be blank"
				break
			}
		}
		if _, bad := fields["options"]; !bad && !containsString(options, req.Answer) {
			fields["answer"] = "answer must be one of the options"
		}
		draft.Options = options
	case models.QuestionTypeTrueFalse:
		if req.Answer != models.AnswerTrue && req.Answer != models.AnswerFalse {
			fields["answer"] = fmt.Sprintf("answer must be %q or %q", models.AnswerTrue, models.AnswerFalse)
		}
	}

	if len(fields) > 0 {
		return models.Draft{}, &ValidationError{Fields: fields}
	}
	if draft.Topic == "" {
		draft.Topic = models.DefaultTopic
	}
	return draft, nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
