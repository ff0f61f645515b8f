package wire

// Error code taxonomy carried on error payloads. Handlers classify component
// sentinel errors into one of these before replying to the originator.
const (
	CodeValidation  = "validation"
	CodeConflict    = "conflict"
	CodeNotFound    = "not_found"
	CodeState       = "state"
	CodeUnavailable = "unavailable"
	CodeProvider    = "provider"
	CodeInternal    = "internal"
)

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
