package backend

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Challenge codes the backend may attach to a rejection. Only the admin role
// emits these today.
const ChallengeOTPRequired = "otp_required"

// APIError is the normalized failure shape for every backend interaction:
// transport failures, non-2xx statuses, and success:false envelopes all land
// here. Message is safe to show to an end user. Challenge, when set, is a
// machine-readable code the caller can branch on instead of treating the
// failure as a plain rejection.
type APIError struct {
	Status    int
	Message   string
	Challenge string

	cause error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "request failed"
}

func (e *APIError) Unwrap() error { return e.cause }

// HasChallenge reports whether this failure carries the given challenge code.
func (e *APIError) HasChallenge(code string) bool {
	return e != nil && e.Challenge == code
}

// AsAPIError unwraps err into an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func apiErrorFromEnvelope(status int, env *envelope) *APIError {
	apiErr := &APIError{Status: status, Message: env.Message}
	if apiErr.Message == "" {
		apiErr.Message = transportFailureMessage
	}
	if raw, ok := env.Data["challenge"]; ok {
		var code string
		if err := json.Unmarshal(raw, &code); err == nil {
			apiErr.Challenge = code
		}
	}
	return apiErr
}
