package grid

import (
	"strings"

	"github.com/Bullochman/hivegrid/internal/protocol"
)

// Record is one roster row coming from an external batch (CSV upload, CLI
// import, migration).
type Record struct {
	Name  string
	Rank  Rank
	HQ    *int
	Power string
	// Notes is nil when the batch source has no notes column.
	Notes *string
}

// member builds the full record; a batch without notes blanks them.
func (r Record) member() Member {
	m := Member{Rank: r.Rank, HQ: r.HQ, Power: strings.TrimSpace(r.Power)}
	if r.Notes != nil {
		m.Notes = strings.TrimSpace(*r.Notes)
	}
	return m.clone()
}

// Dominates reports whether a record with (rank, power) should replace one
// with (prevRank, prevPower): higher rank wins, equal rank needs at least as
// much power.
func Dominates(rank Rank, power string, prevRank Rank, prevPower string) bool {
	if rank.Outranks(prevRank) {
		return true
	}
	if prevRank.Outranks(rank) {
		return false
	}
	return ParsePower(power) >= ParsePower(prevPower)
}

// Dedupe collapses records sharing a name using the dominance rule. Names
// match case-insensitively, as Lookup does, and keep the spelling seen
// first. Output keeps the order in which names first appeared; blank names
// are dropped.
func Dedupe(records []Record) []Record {
	idx := map[string]int{}
	var out []Record
	for _, r := range records {
		r.Name = strings.TrimSpace(r.Name)
		if r.Name == "" {
			continue
		}
		key := foldName(r.Name)
		i, seen := idx[key]
		if !seen {
			idx[key] = len(out)
			out = append(out, r)
			continue
		}
		if Dominates(r.Rank, r.Power, out[i].Rank, out[i].Power) {
			r.Name = out[i].Name
			out[i] = r
		}
	}
	return out
}

type OverwritePolicy string

const (
	// OverwriteAlways replaces an existing record unconditionally.
	OverwriteAlways OverwritePolicy = "always"
	// OverwriteDominance replaces an existing record only when the incoming
	// one dominates it (see Dominates).
	OverwriteDominance OverwritePolicy = "dominance"
)

type MergeOptions struct {
	Policy OverwritePolicy
}

type MergeReport struct {
	Added   []string
	Updated []string
	// Skipped existing members kept their record under OverwriteDominance.
	Skipped []string
}

// Merge deduplicates records and folds them into the roster. Existing members
// are matched with Lookup so a case change in the batch does not fork a
// member. An applied record replaces the whole member record, notes
// included.
func (s *State) Merge(records []Record, opts MergeOptions) (MergeReport, error) {
	policy := opts.Policy
	if policy == "" {
		policy = OverwriteAlways
	}
	if policy != OverwriteAlways && policy != OverwriteDominance {
		return MergeReport{}, validationf(protocol.ErrBadRequest, "unknown overwrite policy %q", opts.Policy)
	}

	var rep MergeReport
	for _, r := range Dedupe(records) {
		key, exists := s.Lookup(r.Name)
		if !exists {
			s.Members[r.Name] = r.member()
			rep.Added = append(rep.Added, r.Name)
			continue
		}
		prev := s.Members[key]
		if policy == OverwriteDominance && !Dominates(r.Rank, r.Power, prev.Rank, prev.Power) {
			rep.Skipped = append(rep.Skipped, key)
			continue
		}
		s.Members[key] = r.member()
		rep.Updated = append(rep.Updated, key)
	}
	return rep, nil
}
