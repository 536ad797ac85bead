// Package httptypes holds the shapes of our JSON responses
package httptypes

import (
	"fmt"
)

// Level classifies a message, and decides how a client should present it
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelDanger  Level = "danger"
)

// Message is the human readable outcome carried by every response
type Message struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
}

// Response is the standard type all successful responses conform to
type Response struct {
	Message Message     `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success wraps the given data in a success response
func Success(text string, data interface{}) Response {
	return Response{
		Message: Message{Level: LevelSuccess, Text: text},
		Data:    data,
	}
}

type StandardError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	// Redirect is the page a client should send the user to
	Redirect string       `json:"redirect"`
	Fields   []FieldError `json:"fields" binding:"required"`
}

// StandardErrorResponse is the standard type that all error responses from
// our API conform to
type StandardErrorResponse struct {
	ErrorField StandardError `json:"error"`
	Message    Message       `json:"message"`
}

func (s StandardErrorResponse) Error() string {
	return fmt.Sprintf("%s: %s", s.ErrorField.Code, s.ErrorField.Message)
}

func (s StandardErrorResponse) Is(err error) bool {
	if stdErr, ok := err.(StandardErrorResponse); ok {
		return stdErr.ErrorField.Code == s.ErrorField.Code
	}
	if coded, ok := err.(interface{ Code() string }); ok {
		return coded.Code() == s.ErrorField.Code
	}
	return s.Error() == err.Error()
}

// FieldError is the type for a request field validation error message.
type FieldError struct {
	Field   string `json:"field" binding:"required"`
	Message string `json:"message" binding:"required"`
	Code    string `json:"code" binding:"required"`
}
