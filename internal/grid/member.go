package grid

import (
	"math"
	"strconv"
	"strings"
)

// Member is one alliance member's roster record. Identity is the map key in
// State.Members.
type Member struct {
	Rank Rank `json:"rank"`
	// HQ is the headquarters level; nil when unknown.
	HQ *int `json:"hq"`
	// Power keeps the text as entered ("54.8M"); see PowerValue.
	Power string `json:"power"`
	Notes string `json:"notes"`
}

func (m Member) PowerValue() float64 { return ParsePower(m.Power) }

// HQLevel returns the headquarters level, 0 when unknown.
func (m Member) HQLevel() int {
	if m.HQ == nil {
		return 0
	}
	return *m.HQ
}

func (m Member) clone() Member {
	if m.HQ != nil {
		hq := *m.HQ
		m.HQ = &hq
	}
	return m
}

// ParsePower turns "54.8M", " 12 " or "7.5" into a number of millions.
// A single trailing "M" is stripped; anything unparseable is 0.
func ParsePower(s string) float64 {
	s = strings.TrimSpace(s)
	s = strings.TrimSpace(strings.TrimSuffix(s, "M"))
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// ParseHQ parses a headquarters level. Empty text is (nil, true); negative or
// malformed values are (nil, false).
func ParseHQ(s string) (*int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil, false
	}
	return &n, true
}

// HQ returns a pointer to a headquarters level.
func HQ(n int) *int { return &n }
