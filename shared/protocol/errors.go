package protocol

import "fmt"

// ErrorResponse is the JSON body the server writes for every failed request.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e ErrorResponse) String() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Error codes
const (
	CodeInvalidRequest = 100
	CodeInvalidSortBy  = 101
	CodeInvalidOrder   = 102
	CodeInvalidScore   = 103

	CodeUnauthorized  = 201
	CodeInvalidLogin  = 202
	CodeUsernameTaken = 203

	CodePlayerNotFound = 406

	CodeInternal = 10000
)
