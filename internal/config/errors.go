package config

import "errors"

var (
	ErrFileDoesNotExist  = errors.New("config file does not exist")
	ErrReadConfigFail    = errors.New("failed to read config file")
	ErrConfigParsingFail = errors.New("failed to parse config file")
	// ErrInvalidConfig wraps every validation failure from Build and WithEnv.
	ErrInvalidConfig = errors.New("invalid config")
)
