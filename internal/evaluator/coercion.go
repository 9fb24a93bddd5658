package evaluator

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNotBool is returned by ParseBool for values that are not booleans
var ErrNotBool = errors.New("value is not a boolean")

// CoerceToString converts any value to string
func CoerceToString(value interface{}) string {
	if value == nil {
		return "null"
	}
	return fmt.Sprintf("%v", value)
}

// ParseBool reads a boolean setting value. nil is false, strings go through strconv.ParseBool,
// anything else is rejected.
func ParseBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	case string:
		b, err := strconv.ParseBool(v)
		if err != nil {
			return false, fmt.Errorf("%w: %q", ErrNotBool, v)
		}
		return b, nil
	default:
		return false, fmt.Errorf("%w: got %T", ErrNotBool, value)
	}
}
