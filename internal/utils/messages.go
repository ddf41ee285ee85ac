package utils

// Message keys for the fixed strings the server shows to people. UI copy
// lives in the frontend; the server only owns messages that travel inside
// API errors.
const (
	MsgHealthOK     = "health.ok"
	MsgInvalidCode  = "code.invalid"
	MsgExpiredCode  = "code.expired"
	MsgSaveFailed   = "session.save_failed"
	MsgUnavailable  = "error.unavailable"
	MsgUnauthorized = "error.unauthorized"
	MsgForbidden    = "error.forbidden"
	MsgNotFound     = "error.not_found"
	MsgBadRequest   = "error.bad_request"
	MsgInternal     = "error.internal"
)

var messages = map[string]string{
	MsgHealthOK:     "ok",
	MsgInvalidCode:  "Invalid team code. Please check and try again.",
	MsgExpiredCode:  "This team code has expired. Please contact your administrator.",
	MsgSaveFailed:   "An error occurred saving your responses. Please try again.",
	MsgUnavailable:  "The service is temporarily unavailable. Please try again in a moment.",
	MsgUnauthorized: "Please sign in.",
	MsgForbidden:    "You do not have permission to do that.",
	MsgNotFound:     "Not found.",
	MsgBadRequest:   "The request could not be read.",
	MsgInternal:     "Something went wrong.",
}

// T returns the message for key, or the key itself when unknown.
func T(key string) string {
	if v, ok := messages[key]; ok {
		return v
	}
	return key
}
