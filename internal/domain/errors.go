package domain

import "errors"

var (
	// ErrNameRequired is returned when a quiz is started without a name.
	ErrNameRequired = errors.New("name is required")
	// ErrEmailRequired is returned when a quiz is started without an email.
	ErrEmailRequired = errors.New("email is required")
	// ErrSessionNotFound is returned when no session exists for an ID.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrQuizNotReady is returned when answers arrive while questions are still being generated.
	ErrQuizNotReady = errors.New("quiz is still being generated")
	// ErrQuizComplete is returned when answers arrive after the session reached its terminal state.
	ErrQuizComplete = errors.New("quiz already complete")
	// ErrGenerationFailed indicates the completion service could not produce questions.
	ErrGenerationFailed = errors.New("question generation failed")
)
