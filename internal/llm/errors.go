package llm

import (
	"errors"
	"fmt"
)

// ErrAuthentication is returned when no API credential is configured. No
// request is sent in that case.
var ErrAuthentication = errors.New("llm: api key is not configured")

// GatewayError reports a non-2xx response from the chat-completion endpoint.
// StatusCode and Body are propagated verbatim from the upstream response.
type GatewayError struct {
	StatusCode int
	Body       string
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("llm: gateway returned status %d: %s", e.StatusCode, e.Body)
}
