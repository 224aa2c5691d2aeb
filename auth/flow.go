package auth

import "net/url"

// FlowState is the position of a sign-in round-trip.
type FlowState int

const (
	StateStart FlowState = iota
	StateAwaitingProvider
	StateFastPath
	StateSocialPath
	StateCompleted
	StateFailed
)

func (s FlowState) String() string {
	switch s {
	case StateStart:
		return "START"
	case StateAwaitingProvider:
		return "AWAITING_PROVIDER"
	case StateFastPath:
		return "FAST_PATH"
	case StateSocialPath:
		return "SOCIAL_PATH"
	case StateCompleted:
		return "COMPLETED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Outcome tells the HTTP layer where a flow step ended. A nil RedirectURL means
// the caller renders a page instead of redirecting.
type Outcome struct {
	State       FlowState
	RedirectURL *url.URL
}

// Redirects reports whether the outcome carries a redirect.
func (o *Outcome) Redirects() bool {
	return o != nil && o.RedirectURL != nil
}

// SignInPath is the local interactive sign-in page.
const SignInPath = "/auth/sign-in"
