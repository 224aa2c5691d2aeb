package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Reason classifies an expected authentication failure.
type Reason string

const (
	ReasonStateExpired     Reason = "state_expired"
	ReasonStateNotFound    Reason = "state_not_found"
	ReasonSessionNotFound  Reason = "session_not_found"
	ReasonEmailMissing     Reason = "email_missing"
	ReasonUserNotFound     Reason = "user_not_found"
	ReasonEmailUnverified  Reason = "email_unverified"
	ReasonAccountNotFound  Reason = "account_not_found"
	ReasonInvalidToken     Reason = "invalid_token"
	ReasonInvalidGrant     Reason = "invalid_grant"
	ReasonForbidden        Reason = "forbidden"
	ReasonMissingParameter Reason = "missing_parameter"
)

// AuthenticationError is an expected failure of a sign-in step. Its message is safe
// to log; Context carries identifiers for logs and is never shown to the user.
type AuthenticationError struct {
	Reason  Reason
	Context map[string]string
	Err     error
}

func (e *AuthenticationError) Error() string {
	var b strings.Builder
	b.WriteString("authentication failed: ")
	b.WriteString(string(e.Reason))
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%s", k, e.Context[k])
		}
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// IdpFailedError is an unexpected upstream or infrastructure fault (store errors,
// Identity Authority outages, malformed responses).
type IdpFailedError struct {
	Op  string
	Err error
}

func (e *IdpFailedError) Error() string {
	if e.Err == nil {
		return "idp failed: " + e.Op
	}
	return "idp failed: " + e.Op + ": " + e.Err.Error()
}

func (e *IdpFailedError) Unwrap() error {
	return e.Err
}

// NewAuthentication builds an AuthenticationError. keyValues are alternating context keys and values.
func NewAuthentication(reason Reason, err error, keyValues ...string) *AuthenticationError {
	ae := &AuthenticationError{Reason: reason, Err: err}
	if len(keyValues) > 1 {
		ae.Context = make(map[string]string, len(keyValues)/2)
		for i := 0; i+1 < len(keyValues); i += 2 {
			ae.Context[keyValues[i]] = keyValues[i+1]
		}
	}
	return ae
}

func NewIdpFailed(op string, err error) *IdpFailedError {
	return &IdpFailedError{Op: op, Err: err}
}

// AsAuthentication returns the AuthenticationError in err's chain, if any.
func AsAuthentication(err error) (*AuthenticationError, bool) {
	var ae *AuthenticationError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

func IsAuthentication(err error) bool {
	_, ok := AsAuthentication(err)
	return ok
}

func IsIdpFailed(err error) bool {
	var ie *IdpFailedError
	return errors.As(err, &ie)
}

// IsStateExpired reports whether err is an authentication failure caused by a
// missing, expired or already consumed authorization state.
func IsStateExpired(err error) bool {
	ae, ok := AsAuthentication(err)
	if !ok {
		return false
	}
	return ae.Reason == ReasonStateExpired || ae.Reason == ReasonStateNotFound
}
