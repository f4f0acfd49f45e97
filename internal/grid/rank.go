package grid

import (
	"fmt"
	"strings"
)

// Rank is an alliance rank. The zero value is the unranked member.
type Rank uint8

const (
	RankNone Rank = iota
	R1
	R2
	R3
	R4
	R5
)

// Ranks lists every rank from highest to lowest priority.
var Ranks = []Rank{R5, R4, R3, R2, R1, RankNone}

// Severity orders ranks for sorting: R5 is 0, unranked is 5.
func (r Rank) Severity() int {
	if r == RankNone || r > R5 {
		return 5
	}
	return int(R5 - r)
}

// Outranks reports whether r has strictly higher priority than o.
func (r Rank) Outranks(o Rank) bool { return r.Severity() < o.Severity() }

// Leadership reports whether r belongs to the inner-ring tier (R5/R4).
func (r Rank) Leadership() bool { return r == R5 || r == R4 }

func (r Rank) String() string {
	switch r {
	case R1, R2, R3, R4, R5:
		return fmt.Sprintf("R%d", int(r))
	default:
		return ""
	}
}

// ParseRank accepts "R1".."R5" in any case with surrounding spaces. Anything
// else, including the empty string, is RankNone.
func ParseRank(s string) Rank {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 2 || s[0] != 'R' || s[1] < '1' || s[1] > '5' {
		return RankNone
	}
	return Rank(s[1] - '0')
}

func (r Rank) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (r *Rank) UnmarshalText(b []byte) error {
	*r = ParseRank(string(b))
	return nil
}
