package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ConfigError reports a request that was built in a shape the pipeline
// cannot handle. It is never retried.
type ConfigError struct {
	Msg string
}

func (e *ConfigError) Error() string { return e.Msg }

// APIError is a well-formed error returned by the API in a 4xx response.
type APIError struct {
	StatusCode  int
	Message     string
	Code        string
	Details     json.RawMessage
	Metadata    json.RawMessage
	ServerStack string
}

func (e *APIError) Error() string { return e.Message }

// UnexpectedServerError is a 4xx response whose body was not JSON. Outside
// of tests this indicates a server bug; Body keeps the raw text.
type UnexpectedServerError struct {
	StatusCode int
	Body       string
}

func (e *UnexpectedServerError) Error() string {
	return fmt.Sprintf("unexpected server error (%d): %s", e.StatusCode, e.Body)
}

type errorEnvelope struct {
	Errors []json.RawMessage `json:"errors"`
}

type errorDetail struct {
	Message  string          `json:"message"`
	Code     string          `json:"code"`
	Stack    string          `json:"stack"`
	Details  json.RawMessage `json:"details"`
	Metadata json.RawMessage `json:"metadata"`
}

// WithErrorTranslation turns 4xx responses carrying the API error envelope
// into *APIError and non-JSON 4xx bodies into *UnexpectedServerError.
// Other responses, 5xx included, are returned unmodified.
func WithErrorTranslation() Middleware {
	return func(next RequestFunc) RequestFunc {
		return func(ctx context.Context, req *Request) (*Response, error) {
			resp, err := next(ctx, req)
			if err != nil {
				return nil, err
			}
			if resp.StatusCode < 400 || resp.StatusCode >= 500 {
				return resp, nil
			}

			body, err := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read error response from %s: %w", resp.URL, err)
			}

			if apiErr, err := parseErrorBody(resp.StatusCode, body); err != nil {
				return nil, err
			} else if apiErr != nil {
				return nil, apiErr
			}

			resp.bufferBody(body)
			return resp, nil
		}
	}
}

// parseErrorBody returns the APIError described by body, nil when body is
// JSON without an error envelope, or an UnexpectedServerError when body is
// not JSON at all.
func parseErrorBody(status int, body []byte) (*APIError, error) {
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		var syntaxErr *json.SyntaxError
		if errors.As(err, &syntaxErr) {
			return nil, &UnexpectedServerError{StatusCode: status, Body: string(body)}
		}
		return nil, err
	}

	if _, isObject := payload.(map[string]any); !isObject {
		return nil, nil
	}
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil || len(env.Errors) == 0 {
		return nil, nil
	}

	var detail errorDetail
	if err := json.Unmarshal(env.Errors[0], &detail); err != nil {
		// Not an object: keep the raw element as the message, with no code.
		var text string
		if json.Unmarshal(env.Errors[0], &text) != nil {
			text = string(env.Errors[0])
		}
		return &APIError{StatusCode: status, Message: text}, nil
	}
	return &APIError{
		StatusCode:  status,
		Message:     detail.Message,
		Code:        detail.Code,
		Details:     nullToNil(detail.Details),
		Metadata:    nullToNil(detail.Metadata),
		ServerStack: detail.Stack,
	}, nil
}

func nullToNil(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil
	}
	return raw
}
