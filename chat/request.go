package chat

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/kbukum/chatstream/errors"
	"github.com/kbukum/chatstream/llm"
)

// Request is the POST /api/chat body.
type Request struct {
	Messages        []llm.Message `json:"messages" binding:"required,min=1,dive"`
	Model           *llm.Model    `json:"model"`
	Prompt          string        `json:"prompt"`
	Temperature     *float64      `json:"temperature" binding:"omitempty,gte=0,lte=1"`
	KnowledgeBaseID string        `json:"knowledgeBaseId" binding:"omitempty,max=128"`
	Provider        string        `json:"provider"`
}

// Completion converts the request into a provider request. Unset fields are
// left for the provider defaults.
func (r Request) Completion() llm.CompletionRequest {
	req := llm.CompletionRequest{
		Messages:     r.Messages,
		SystemPrompt: r.Prompt,
		Temperature:  r.Temperature,
	}
	if r.Model != nil {
		req.Model = r.Model.ID
	}
	return req
}

var registerOnce sync.Once

// registerValidations adds the request-level rules to Gin's validator.
func registerValidations() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterStructValidation(validateRequest, Request{})
	})
}

// validateRequest requires the conversation to end with a user turn that
// fits the selected model's input length.
func validateRequest(sl validator.StructLevel) {
	r := sl.Current().Interface().(Request)
	if len(r.Messages) == 0 {
		return
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != llm.RoleUser {
		sl.ReportError(r.Messages, "messages", "Messages", "lastuser", "")
		return
	}
	if strings.TrimSpace(last.Content) == "" {
		sl.ReportError(last.Content, "messages", "Messages", "nonempty", "")
		return
	}
	if r.Model != nil && r.Model.MaxLength > 0 && utf8.RuneCountInString(last.Content) > r.Model.MaxLength {
		sl.ReportError(last.Content, "messages", "Messages", "maxlength", fmt.Sprint(r.Model.MaxLength))
	}
}

var ruleMessages = map[string]string{
	"required":  "is required",
	"min":       "must not be empty",
	"oneof":     "must be one of system, user, assistant",
	"gte":       "must be at least %s",
	"lte":       "must be at most %s",
	"max":       "must be at most %s characters",
	"lastuser":  "must end with a user message",
	"nonempty":  "must not end with a blank message",
	"maxlength": "last message must be at most %s characters",
}

// bindError converts a binding failure into an InvalidInput AppError naming
// the first offending field.
func bindError(err error) *apperrors.AppError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.InvalidInput("body", err.Error())
	}
	fe := verrs[0]
	msg, ok := ruleMessages[fe.Tag()]
	if !ok {
		msg = "is invalid (" + fe.Tag() + ")"
	}
	if strings.Contains(msg, "%s") {
		msg = fmt.Sprintf(msg, fe.Param())
	}
	field := fieldPath(fe.Namespace())
	return apperrors.InvalidInput(field, field+" "+msg)
}

// fieldPath turns "Request.Messages[0].Role" into "messages[0].role".
func fieldPath(ns string) string {
	_, rest, ok := strings.Cut(ns, ".")
	if !ok {
		rest = ns
	}
	parts := strings.Split(rest, ".")
	for i, p := range parts {
		if p != "" {
			parts[i] = strings.ToLower(p[:1]) + p[1:]
		}
	}
	return strings.Join(parts, ".")
}
