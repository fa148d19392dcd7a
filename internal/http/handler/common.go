package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode"

	"github.com/chemviz/equipment-api/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var validate = validator.New()

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// respondWithError sends a standardized JSON error response
func respondWithError(w http.ResponseWriter, status int, message string, details interface{}) {
	respondJSON(w, status, domain.ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// respondValidationError sends the field messages of a failed DTO validation
func respondValidationError(w http.ResponseWriter, message string, err error) {
	fields := make(map[string][]string)
	if ve, ok := err.(validator.ValidationErrors); ok {
		for _, fe := range ve {
			name := toJSONFieldName(fe.Field())
			fields[name] = append(fields[name], formatValidationError(fe))
		}
	}
	respondWithError(w, http.StatusBadRequest, message, fields)
}

// respondInternalError logs err and hides it from the client unless debug is on
func respondInternalError(w http.ResponseWriter, logger *zap.Logger, debug bool, message, details string, err error) {
	logger.Error(message, zap.Error(err))
	if debug {
		details = err.Error()
	}
	respondWithError(w, http.StatusInternalServerError, message, details)
}

// formatValidationError creates a human-readable validation error message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
	case "contains":
		return "Enter a valid email address."
	default:
		return domain.GetValidationMessage(fe.Tag())
	}
}

// toJSONFieldName converts a Go struct field name to its snake_case JSON name
func toJSONFieldName(field string) string {
	var b strings.Builder
	for i, r := range field {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

func decodeJSON(r *http.Request, target interface{}) error {
	dec := json.NewDecoder(r.Body)
	return dec.Decode(target)
}

// parseID reads a positive numeric path parameter
func parseID(r *http.Request, name string) (uint, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return uint(id), nil
}

// attachmentDisposition builds a Content-Disposition header value. Names
// outside printable ASCII get an ASCII filename plus an RFC 5987 filename*.
func attachmentDisposition(filename string) string {
	fallback := asciiFilename(filename)
	value := fmt.Sprintf(`attachment; filename="%s"`, fallback)
	if fallback != filename {
		value += "; filename*=UTF-8''" + encodeExtValue(filename)
	}
	return value
}

// asciiFilename strips diacritics and replaces whatever is left outside
// printable ASCII, along with quotes and backslashes
func asciiFilename(name string) string {
	fold := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, name)
	if err != nil {
		folded = name
	}
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e || r == '"' || r == '\\' {
			return '_'
		}
		return r
	}, folded)
}

// encodeExtValue percent-encodes every byte that is not an RFC 5987 attr-char
func encodeExtValue(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9',
			strings.IndexByte("!#$&+-.^_`|~", c) >= 0:
			b.WriteByte(c)
		default:
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}
