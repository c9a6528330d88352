package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound          = errors.New("entity not found")
	ErrAlreadyExists     = errors.New("entity already exists")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrNoURLs            = errors.New("no urls provided")
	ErrUnknownModel      = errors.New("unknown model")
	ErrNoModels          = errors.New("no models available")
	ErrSessionRunning    = errors.New("polling session already running for job")
	ErrRemoteUnavailable = errors.New("tts service unavailable")
	ErrArtifactTooLarge  = errors.New("artifact exceeds size limit")
)
