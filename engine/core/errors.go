package core

import (
	"errors"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrPackFailed    = errors.New("rectangles do not fit into the atlas")
	ErrFontOpen      = errors.New("could not open font face")
	ErrCharmap       = errors.New("font face has no unicode charmap")
	ErrInterrupted   = errors.New("load interrupted")
	ErrNotReady      = errors.New("resource is not ready")
	ErrOutOfBounds   = errors.New("region is outside of the canvas")
	ErrClosed        = errors.New("system already shut down")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// ErrorReporter surfaces terminal failures to the user. The engine default just logs,
// a windowed application would show a message box.
type ErrorReporter func(title, message string)

// LogErrorReporter is the default ErrorReporter.
func LogErrorReporter(title, message string) {
	LogError("%s: %s", title, message)
}
