package memutils

import "github.com/pkg/errors"

// PowerOfTwoError is returned by CheckPow2 when the tested number is not a power of two.
var PowerOfTwoError error = errors.New("number must be a power of two")
