package kvapi

import (
	"unicode"

	"github.com/QuenKar/databend/errors"
)

const asciiMax = byte(unicode.MaxASCII) // 127, the largest ASCII code unit

// CheckAscii returns an OnlySupportAsciiChars error if s contains any
// character outside the ASCII range. Keys and prefixes are ASCII by contract.
func CheckAscii(s string) error {
	for _, c := range s {
		if c > unicode.MaxASCII {
			return errors.NewOnlySupportAsciiCharsError(c)
		}
	}
	return nil
}

// PrefixOfString returns the smallest string that is greater than every
// string starting with s, i.e. the exclusive end bound of the prefix scan
// range [s, PrefixOfString(s)). Only ASCII input is supported.
//
// The prefix is treated as a radix-128 number and incremented from the right:
// the last character below 127 is bumped by one and everything to its right
// is left untouched. If every character is already 127 (this includes the
// empty string) no increment is possible, and a 127 character is appended
// instead.
//
//	"a"          -> "b"
//	"1"          -> "2"
//	[96,97,127]  -> [96,98,127]
//	[127]        -> [127,127]
//	""           -> [127]
//
// The result assumes keys themselves honour the ASCII contract. A store that
// admits raw bytes above 127 in keys must use an unbounded upper sentinel for
// the empty prefix instead.
func PrefixOfString(s string) (string, error) {
	if err := CheckAscii(s); err != nil {
		return "", err
	}
	// all code units are single bytes after the ASCII check
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] == asciiMax {
			continue
		}
		b[i]++
		return string(b), nil
	}
	return s + string(rune(asciiMax)), nil
}

// StartAndEndOfPrefix returns the half-open range [prefix, end) that contains
// exactly the keys starting with prefix. The bounds are usable directly for a
// scan or for a watch subscription range.
func StartAndEndOfPrefix(prefix string) (string, string, error) {
	end, err := PrefixOfString(prefix)
	if err != nil {
		return "", "", err
	}
	return prefix, end, nil
}
