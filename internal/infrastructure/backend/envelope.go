package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
var ErrMalformedResponse = errors.New("malformed backend response")

// RejectedError is a 2xx response whose envelope reports success=false.
type RejectedError struct {
	Message string
}

func (e *RejectedError) Error() string {
	if e.Message == "" {
		return "request rejected by backend"
	}
	return e.Message
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// decode unwraps {success, data, message} into out. A nil out only checks success.
func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !env.Success {
		return &RejectedError{Message: strings.TrimSpace(env.Message)}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: missing data", ErrMalformedResponse)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
