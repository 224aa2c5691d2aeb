package config

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	PlatformConfig
	SecurityConfig
	StoreConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetSocialLoginURL() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Platform
	Security
	Store
}

func New() Config {
	return mainConfig{}
}
