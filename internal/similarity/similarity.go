// Package similarity scores normalized strings on a bounded [0,1] scale.
// Scores are symmetric and reflexive; identical inputs short-circuit to 1
// without touching the distance metrics.
package similarity

import (
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/antzucaro/matchr"
)

// Weights for the edit-distance blend. Levenshtein carries most of the
// signal; Jaro-Winkler rewards shared prefixes, which matters for
// abbreviated first names.
const (
	levWeight = 0.6
	jwWeight  = 0.4
)

// String scores two normalized strings. For multi-token values the result
// is the maximum of the full-string blend and the order-independent
// token-set score, so "mahomes patrick" and "patrick mahomes" compare
// as equals.
func String(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	full := blend(a, b)
	if ts := tokenSet(a, b); ts > full {
		return ts
	}
	return full
}

// blend combines normalized Levenshtein similarity with Jaro-Winkler.
func blend(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}
	lev := 1 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if lev < 0 {
		lev = 0
	}
	jw := matchr.JaroWinkler(a, b, false)
	return levWeight*lev + jwWeight*jw
}

// tokenSet pairs tokens across the two strings greedily by best blend
// score and averages over the longer token list. Unpaired tokens count
// as zero. The pairing is order-independent, so the result is symmetric.
func tokenSet(a, b string) float64 {
	at := strings.Fields(a)
	bt := strings.Fields(b)
	if len(at) < 2 && len(bt) < 2 {
		return 0
	}

	n := len(at)
	if len(bt) > n {
		n = len(bt)
	}

	usedA := make([]bool, len(at))
	usedB := make([]bool, len(bt))
	var total float64
	pairs := len(at)
	if len(bt) < pairs {
		pairs = len(bt)
	}

	for p := 0; p < pairs; p++ {
		best, bi, bj := -1.0, -1, -1
		for i, ta := range at {
			if usedA[i] {
				continue
			}
			for j, tb := range bt {
				if usedB[j] {
					continue
				}
				if s := blend(ta, tb); s > best {
					best, bi, bj = s, i, j
				}
			}
		}
		if bi < 0 {
			break
		}
		usedA[bi], usedB[bj] = true, true
		total += best
	}

	return total / float64(n)
}

// Time scores closeness of two instants with a tolerance band: 1 when
// equal, decaying linearly to 0 at maxDrift, 0 beyond. A non-positive
// maxDrift scores exact matches only.
func Time(a, b time.Time, maxDrift time.Duration) float64 {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	if diff == 0 {
		return 1
	}
	if maxDrift <= 0 || diff >= maxDrift {
		return 0
	}
	return 1 - float64(diff)/float64(maxDrift)
}

// Equal scores exact category matches such as positions: 1 on equality,
// 0 otherwise. Empty values never match.
func Equal(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	return 0
}

// EditDistance exposes the raw edit distance for callers that apply their
// own tolerance, such as abbreviation comparison.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}
