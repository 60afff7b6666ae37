// Package kvcodec implements the service's key/value wire format:
// k1<kvd>v1<pd>k2<kvd>v2<pd>...k_n<kvd>v_n (no trailing pair delimiter).
// It backs both the client session protocol (":" / ";") and muxer option
// strings ("=" / "&"). Neither escaping nor quoting is supported; values
// must not contain either delimiter byte.
package kvcodec

import (
	"strings"

	"github.com/localmedia/transcoded/internal/errtax"
)

// Pair is one ordered key/value entry. KVList is an ordered sequence of
// Pairs; duplicate keys are allowed, Get returns the first match.
type Pair struct {
	Key   string
	Value string
}

type KVList []Pair

// Get performs a linear first-match lookup. It returns errtax.KeyNotFound
// on a miss, mirroring the original's last-error-on-miss contract.
func (l KVList) Get(key string) (string, error) {
	for _, p := range l {
		if p.Key == key {
			return p.Value, nil
		}
	}
	return "", errtax.NewApp("kvcodec.get", errtax.KeyNotFound, nil)
}

// Serialize renders l as "k1<kvd>v1<pd>k2<kvd>v2<pd>...k_n<kvd>v_n". The
// final pair carries no trailing pair delimiter.
func Serialize(l KVList, pairDelim, kvDelim byte) string {
	var b strings.Builder
	for i, p := range l {
		if i > 0 {
			b.WriteByte(pairDelim)
		}
		b.WriteString(p.Key)
		b.WriteByte(kvDelim)
		b.WriteString(p.Value)
	}
	return b.String()
}

// Parse splits s on pairDelim, then splits each pair on the first
// occurrence of kvDelim. An empty value is permitted. Parse never fails —
// a pair with no kvDelim is kept with an empty value, matching the
// original's permissive split-on-first-occurrence behavior.
func Parse(s string, pairDelim, kvDelim byte) KVList {
	if s == "" {
		return nil
	}
	rawPairs := strings.Split(s, string(pairDelim))
	out := make(KVList, 0, len(rawPairs))
	for _, rp := range rawPairs {
		if rp == "" {
			continue
		}
		idx := strings.IndexByte(rp, kvDelim)
		if idx < 0 {
			out = append(out, Pair{Key: rp, Value: ""})
			continue
		}
		out = append(out, Pair{Key: rp[:idx], Value: rp[idx+1:]})
	}
	return out
}
