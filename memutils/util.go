package memutils

import (
	cerrors "github.com/cockroachdb/errors"
	"golang.org/x/exp/constraints"
)

func CheckPow2[T constraints.Integer](number T, name string) error {
	if number&(number-1) != 0 {
		return cerrors.Wrapf(PowerOfTwoError, "%s is %d", name, number)
	}
	return nil
}

func AlignUp[T constraints.Integer](value T, alignment uint) T {
	return (value + T(alignment) - 1) & ^(T(alignment) - 1)
}

// NextPow2 rounds value up to the nearest power of two. Values below 1 round to 1.
func NextPow2[T constraints.Integer](value T) T {
	var out T = 1
	for out < value {
		out <<= 1
	}
	return out
}
