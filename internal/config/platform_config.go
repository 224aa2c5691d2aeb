package config

const (
	platformSignInURLVar      = "IDP_OWOX_PLATFORM_SIGN_IN_URL"
	platformSignUpURLVar      = "IDP_OWOX_PLATFORM_SIGN_UP_URL"
	signOutRedirectURLVar     = "IDP_OWOX_SIGN_OUT_REDIRECT_URL"
	allowedRedirectOriginsVar = "IDP_OWOX_ALLOWED_REDIRECT_ORIGINS"
)

// PlatformConfig holds the Platform entry points users are sent back to.
type PlatformConfig interface {
	GetPlatformSignInURL() string
	GetPlatformSignUpURL() string
	GetSignOutRedirectURL() string
	GetAllowedRedirectOrigins() AllowedOrigins
}

type Platform struct{}

var _ PlatformConfig = Platform{}

func (Platform) GetPlatformSignInURL() string {
	return GetEnv(platformSignInURLVar, "")
}

// GetPlatformSignUpURL falls back to the sign-in URL.
func (p Platform) GetPlatformSignUpURL() string {
	return GetEnv(platformSignUpURLVar, p.GetPlatformSignInURL())
}

func (Platform) GetSignOutRedirectURL() string {
	return GetEnv(signOutRedirectURLVar, "")
}

// GetAllowedRedirectOrigins always includes the origins of the Platform URLs.
func (p Platform) GetAllowedRedirectOrigins() AllowedOrigins {
	allowed := NewAllowedOrigins(GetEnvList(allowedRedirectOriginsVar)...)
	delete(allowed, "*")
	for _, u := range []string{p.GetPlatformSignInURL(), p.GetPlatformSignUpURL(), p.GetSignOutRedirectURL()} {
		if origin, ok := OriginOf(u); ok {
			allowed[origin] = nullValue{}
		}
	}
	return allowed
}
