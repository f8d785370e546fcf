package v1

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// sanitizeValidationError returns a user-friendly message for validation/binding errors.
// Never expose raw gin/go validation errors to clients (security + UX).
func sanitizeValidationError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if strings.Contains(msg, "validation") ||
		strings.Contains(msg, "Field validation") ||
		strings.Contains(msg, "cannot unmarshal") ||
		strings.Contains(msg, "bind") ||
		strings.Contains(msg, "Key:") {
		return "Invalid request"
	}
	// Short, safe messages (e.g. "EOF") can pass through
	if len(msg) < 100 && !strings.Contains(msg, "Error:") {
		return msg
	}
	return "Invalid request"
}

// bindingErrorBody is the 400 body for a failed ShouldBindJSON. Binding-tag failures
// list the offending fields by their lower-camel JSON names.
func bindingErrorBody(err error) gin.H {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return gin.H{"error": sanitizeValidationError(err)}
	}

	fields := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := fe.Field()
		if name != "" {
			name = strings.ToLower(name[:1]) + name[1:]
		}
		fields = append(fields, name)
	}
	return gin.H{"error": "Validation failed", "fields": fields}
}
