package oauthmodel

import "errors"

var (
	ErrInvalidPlatformParams = errors.New("invalid platform params")
)
