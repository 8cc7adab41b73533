package utils

import (
	"fmt"

	"github.com/rs/zerolog"
)

func ToZeroLogArray[T fmt.Stringer](arr []T) (ret *zerolog.Array) {
	ret = zerolog.Arr()

	for _, elem := range arr {
		ret = ret.Str(elem.String())
	}

	return ret
}

// OptionalFloat adds key to e only when v is set.
func OptionalFloat(e *zerolog.Event, key string, v *float64) *zerolog.Event {
	if v == nil {
		return e
	}

	return e.Float64(key, *v)
}

// OptionalInt adds key to e only when v is set.
func OptionalInt(e *zerolog.Event, key string, v *int) *zerolog.Event {
	if v == nil {
		return e
	}

	return e.Int(key, *v)
}
