package validate

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var v = validator.New(validator.WithRequiredStructEnabled())

// Struct validates req against its `validate` tags and returns one message
// per failing field, keyed by the lowercased field name.
func Struct(req interface{}) map[string]string {
	err := v.Struct(req)
	if err == nil {
		return nil
	}
	invalid, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"request": err.Error()}
	}
	out := make(map[string]string, len(invalid))
	for _, fieldErr := range invalid {
		field := strings.ToLower(fieldErr.Field())
		out[field] = fmt.Sprintf("failed on %q validation", fieldErr.Tag())
	}
	return out
}
