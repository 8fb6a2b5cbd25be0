package common

import (
	"errors"

	"github.com/gameshub/uvlhub/logger"
)

// Recover must be deferred directly. It logs a panic under msg and returns it.
func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}

// Combine joins the non-nil errors, or returns nil.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}
