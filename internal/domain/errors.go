package domain

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// ValidationMessages provides human-readable validation error messages
// These map validator tags to user-friendly messages
var ValidationMessages = map[string]string{
	"required":  "This field is required",
	"email":     "Must be a valid email address",
	"max":       "Exceeds maximum length",
	"min":       "Below minimum length",
	"gte":       "Must be greater than or equal to minimum value",
	"lte":       "Must be less than or equal to maximum value",
	"contains":  "Must contain the specified value",
	"equipname": "Can only contain letters, numbers, hyphens, and underscores",
	"equiptype": "Can only contain letters, spaces, and hyphens",
}

// GetValidationMessage returns a human-readable message for a validation tag
func GetValidationMessage(tag string) string {
	if msg, ok := ValidationMessages[tag]; ok {
		return msg
	}
	return "Validation failed: " + tag
}
