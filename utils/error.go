package utils

import (
	"errors"
	"slices"
)

// ErrorIsAnyOf reports whether errors.Is matches err against any of targets.
func ErrorIsAnyOf(err error, targets ...error) bool {
	return slices.ContainsFunc(targets, func(target error) bool {
		return errors.Is(err, target)
	})
}
