// Package objects holds the wire shapes shared by handlers and
// middlewares.
package objects

// Error codes returned to clients. Messages stay generic: a denial
// must not reveal whether cross-branch data exists.
const (
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeForbidden       = "FORBIDDEN"
	CodeConflict        = "CONFLICT"
	CodeBadRequest      = "BAD_REQUEST"
	CodeInvalidPayload  = "INVALID_OVERRIDE_PAYLOAD"
	CodeInternal        = "INTERNAL"
)

type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Success bool  `json:"success"`
	Error   Error `json:"error"`
}

type DataResponse struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// Fail builds the structured denial body.
func Fail(code, message string) ErrorResponse {
	return ErrorResponse{Success: false, Error: Error{Code: code, Message: message}}
}

// OK wraps a successful payload.
func OK(data any) DataResponse {
	return DataResponse{Success: true, Data: data}
}
