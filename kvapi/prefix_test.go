package kvapi

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/QuenKar/databend/errors"
)

func TestPrefixOfString(t *testing.T) {
	cases := []struct {
		prefix   string
		expected string
	}{
		{"a", "b"},
		{"1", "2"},
		{string([]byte{96, 97, 127}), string([]byte{96, 98, 127})},
		{string([]byte{127}), string([]byte{127, 127})},
		{string([]byte{127, 127, 127, 127}), string([]byte{127, 127, 127, 127, 127})},
		{"", string([]byte{127})},
		{"user/", "user0"},
		{"abz", "ab{"},
	}
	for _, c := range cases {
		end, err := PrefixOfString(c.prefix)
		require.NoError(t, err)
		require.Equal(t, []byte(c.expected), []byte(end), "prefix %v", []byte(c.prefix))
	}
}

func TestPrefixOfStringNonAscii(t *testing.T) {
	_, err := PrefixOfString("café")
	require.Error(t, err)
	var metaErr errors.MetaError
	require.True(t, errors.As(err, &metaErr))
	require.Equal(t, errors.OnlySupportAsciiChars, metaErr.Code)

	_, err = PrefixOfString("日本")
	require.Error(t, err)
}

func TestPrefixOfStringIsIdempotentOverInput(t *testing.T) {
	// validation must not mutate its input, calling twice gives the same answer
	prefix := "some/prefix"
	first, err := PrefixOfString(prefix)
	require.NoError(t, err)
	second, err := PrefixOfString(prefix)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestPrefixRangeBoundsProperty(t *testing.T) {
	// every key starting with p is inside [p, PrefixOfString(p)), and keys
	// not starting with p are outside
	prefixes := []string{"", "a", "user/", "z", string([]byte{1}), "abc", string([]byte{126, 127})}
	suffixes := []string{"", "0", "a", "zzz", string([]byte{0})}
	for _, p := range prefixes {
		end, err := PrefixOfString(p)
		require.NoError(t, err)
		require.True(t, end > p, "end bound %v must be greater than prefix %v", []byte(end), []byte(p))
		for _, s := range suffixes {
			key := p + s
			require.True(t, key >= p && key < end,
				"key %v should fall in [%v, %v)", []byte(key), []byte(p), []byte(end))
		}
	}
}

func TestPrefixRangeExcludesSiblings(t *testing.T) {
	end, err := PrefixOfString("user/")
	require.NoError(t, err)
	for _, key := range []string{"users", "user0", "uses", "v"} {
		require.False(t, strings.HasPrefix(key, "user/"))
		require.True(t, key >= end || key < "user/", "key %q must lie outside the range", key)
	}
}

func TestAllMaxPrefixAppendsSentinel(t *testing.T) {
	// an all-127 prefix cannot be incremented, so the bound is the prefix
	// lengthened by one 127 character. Keys that begin with a further 127
	// byte sort at or above that bound and are excluded - acceptable because
	// the stores only admit ASCII keys, where a leading 127 data byte is the
	// one key shape the empty-prefix scan gives up on.
	end, err := PrefixOfString("")
	require.NoError(t, err)
	require.Equal(t, []byte{127}, []byte(end))
	require.False(t, string([]byte{127, 0}) < end)
}

func TestStartAndEndOfPrefix(t *testing.T) {
	start, end, err := StartAndEndOfPrefix("watch/")
	require.NoError(t, err)
	require.Equal(t, "watch/", start)
	expected, err := PrefixOfString("watch/")
	require.NoError(t, err)
	require.Equal(t, expected, end)

	_, _, err = StartAndEndOfPrefix("café")
	require.Error(t, err)
}
