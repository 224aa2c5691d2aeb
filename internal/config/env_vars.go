package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	portEnvVar        = "PORT"
	appNameVar        = "APP_NAME"
	baseURLVar        = "BASE_URL"
	socialLoginURLVar = "IDP_SOCIAL_LOGIN_URL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetPort() string {
	port := GetEnv(portEnvVar, "3000")
	if !strings.HasPrefix(port, ":") {
		port = fmt.Sprintf(":%s", port)
	}
	return port
}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "OWOX IdP")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

// GetBaseURL returns the public base URL of this service (e.g. "https://auth.example.com").
// Local sign-in redirects are built against it.
func (EnvVars) GetBaseURL() string {
	return strings.TrimRight(GetEnv(baseURLVar, "http://localhost:3000"), "/")
}

// GetSocialLoginURL is the base URL of the embedded social-login service the
// /auth/better-auth/ routes proxy to.
func (EnvVars) GetSocialLoginURL() string {
	return strings.TrimRight(GetEnv(socialLoginURLVar, "http://localhost:3001/api/auth"), "/")
}

// LoadDotEnv loads variables from the given .env files without overriding
// values already present in the environment. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("[config LoadDotEnv] %s: %w", f, err)
		}
	}
	return nil
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

// GetEnvDuration parses a Go duration ("3s", "1m"); a plain integer is read as milliseconds.
func GetEnvDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

func GetEnvBool(envVar string, defaultValue bool) bool {
	value := strings.TrimSpace(os.Getenv(envVar))
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetEnvList splits a comma separated variable, dropping empty items.
func GetEnvList(envVar string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(envVar), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
