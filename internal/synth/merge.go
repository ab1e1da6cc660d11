package synth

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/riverlab/indra/internal/audit"
	"github.com/riverlab/indra/internal/confluence"
	"github.com/riverlab/indra/internal/panel"
)

// Confidence ties within this margin are treated as equal.
const confidenceEpsilon = 1e-3

// Resolution labels recorded on audit conflicts.
const (
	resolutionConfidence = "confidence"
	resolutionAuthority  = "authority"
	resolutionDeferred   = "deferred"
)

// Merger folds a round's recommendations into the draft configuration.
// Contested fields resolve by combined confidence first, then by the
// field's designated owner; an unbreakable tie defers the field to the
// next round.
type Merger struct {
	roster []panel.ExpertProfile
	log    *slog.Logger
}

// NewMerger creates a Merger for the given roster. Roster order decides
// field ownership: the first profile declaring a field owns it.
func NewMerger(roster []panel.ExpertProfile, log *slog.Logger) *Merger {
	return &Merger{roster: roster, log: log}
}

// owner returns the name of the expert designated for a field.
func (m *Merger) owner(field string) string {
	for _, p := range m.roster {
		if p.Authorized(field) {
			return p.Name
		}
	}
	return ""
}

// proposal is one value bid for one field, with its backing experts.
type proposal struct {
	value      any
	experts    []string
	confidence panel.Confidence
}

// Merge applies the round's recommendations to the configuration and
// returns the conflicts encountered. Fields already set keep their
// value; re-proposals of the incumbent value are no-ops and dissenting
// re-proposals are dropped (the validator, not the panel, reopens
// settled fields). A value the catalog rejects is skipped and left for
// the validator to flag as missing.
func (m *Merger) Merge(cfg *confluence.Configuration, recs []*panel.Recommendation) []audit.Conflict {
	// Group bids per field, agreeing values combined.
	byField := map[string][]*proposal{}
	var fields []string
	for _, rec := range recs {
		names := make([]string, 0, len(rec.Fields))
		for name := range rec.Fields {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value := rec.Fields[name]
			bids := byField[name]
			if bids == nil {
				fields = append(fields, name)
			}

			merged := false
			for _, bid := range bids {
				if sameValue(bid.value, value) {
					bid.experts = append(bid.experts, rec.Expert)
					bid.confidence = panel.CombineAgreeing(bid.confidence, rec.Confidence)
					merged = true
					break
				}
			}
			if !merged {
				byField[name] = append(bids, &proposal{
					value:      value,
					experts:    []string{rec.Expert},
					confidence: rec.Confidence,
				})
			}
		}
	}
	sort.Strings(fields)

	var conflicts []audit.Conflict
	for _, field := range fields {
		bids := byField[field]

		if current, set := cfg.Get(field); set {
			for _, bid := range bids {
				if !sameValue(bid.value, current) {
					m.log.Debug("dissenting bid for settled field dropped",
						"field", field, "experts", bid.experts)
				}
			}
			continue
		}

		if len(bids) == 1 {
			m.set(cfg, field, bids[0].value)
			continue
		}

		conflict := m.resolve(field, bids)
		conflicts = append(conflicts, conflict)
		if conflict.Resolution == resolutionDeferred {
			continue
		}
		for _, bid := range bids {
			if contains(bid.experts, conflict.Winner) {
				m.set(cfg, field, bid.value)
				break
			}
		}
	}

	return conflicts
}

func (m *Merger) set(cfg *confluence.Configuration, field string, value any) {
	if err := cfg.Set(field, value); err != nil {
		m.log.Warn("recommended value rejected by catalog", "field", field, "error", err)
	}
}

// resolve picks a winner among competing bids for one unset field.
func (m *Merger) resolve(field string, bids []*proposal) audit.Conflict {
	conflict := audit.Conflict{Field: field}
	for _, bid := range bids {
		for _, expert := range bid.experts {
			conflict.Candidates = append(conflict.Candidates, audit.Candidate{
				Expert:     expert,
				Value:      bid.value,
				Confidence: float64(bid.confidence),
			})
		}
	}

	best, tied := bids[0], false
	for _, bid := range bids[1:] {
		diff := float64(bid.confidence - best.confidence)
		switch {
		case diff > confidenceEpsilon:
			best, tied = bid, false
		case math.Abs(diff) <= confidenceEpsilon:
			tied = true
		}
	}

	if !tied {
		conflict.Resolution = resolutionConfidence
		conflict.Winner = best.experts[0]
		m.log.Info("conflict resolved by confidence",
			"field", field, "winner", conflict.Winner, "value", best.value)
		return conflict
	}

	// Confidence tie: the field's designated owner wins, but only when
	// its own bid is among the tied-highest. An owner that lost on
	// confidence cannot override rule one.
	owner := m.owner(field)
	var owned *proposal
	for _, bid := range bids {
		if math.Abs(float64(bid.confidence-best.confidence)) > confidenceEpsilon {
			continue
		}
		if contains(bid.experts, owner) {
			owned = bid
			break
		}
	}
	if owner != "" && owned != nil {
		conflict.Resolution = resolutionAuthority
		conflict.Winner = owner
		m.log.Info("conflict resolved by field authority",
			"field", field, "winner", owner, "value", owned.value)
		return conflict
	}

	conflict.Resolution = resolutionDeferred
	m.log.Warn("conflict deferred, field left unset", "field", field)
	return conflict
}

func sameValue(a, b any) bool {
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
