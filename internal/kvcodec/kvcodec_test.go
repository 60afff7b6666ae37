package kvcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeParseRoundTrip(t *testing.T) {
	cases := []KVList{
		{{Key: "status", Value: "0"}, {Key: "status_desc", Value: "TRANSCODING"}},
		{{Key: "input_file", Value: "/tmp/in.mp4"}},
		{{Key: "a", Value: ""}, {Key: "b", Value: "1"}},
		nil,
	}

	for _, l := range cases {
		encoded := Serialize(l, ';', ':')
		decoded := Parse(encoded, ';', ':')
		if len(l) == 0 {
			assert.Empty(t, decoded)
			continue
		}
		require.Len(t, decoded, len(l))
		for i := range l {
			assert.Equal(t, l[i], decoded[i])
		}
	}
}

func TestSerializeNoTrailingDelimiter(t *testing.T) {
	l := KVList{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}}
	got := Serialize(l, ';', ':')
	assert.Equal(t, "a:1;b:2", got)
}

func TestParseMuxerOptions(t *testing.T) {
	got := Parse("movflags=faststart&brand=mp42", '&', '=')
	require.Len(t, got, 2)
	assert.Equal(t, Pair{Key: "movflags", Value: "faststart"}, got[0])
	assert.Equal(t, Pair{Key: "brand", Value: "mp42"}, got[1])
}

func TestGetFirstMatchWins(t *testing.T) {
	l := KVList{{Key: "k", Value: "first"}, {Key: "k", Value: "second"}}
	v, err := l.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "first", v)
}

func TestGetMissingKeyNotFound(t *testing.T) {
	l := KVList{{Key: "a", Value: "1"}}
	_, err := l.Get("missing")
	require.Error(t, err)
}

func TestParseEmptyValue(t *testing.T) {
	got := Parse("key:", ';', ':')
	require.Len(t, got, 1)
	assert.Equal(t, "", got[0].Value)
}
