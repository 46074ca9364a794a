// Package order arranges gates for display: the guard-facing priority list
// and the administrative grouping by terminal letter.
package order

import (
	"cmp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alfredjeanlab/gatewatch/internal/model"
)

// UnknownGroup holds gates with an empty label.
const UnknownGroup = "?"

// Score returns the primary sort key of g as seen by viewer. Lower sorts first.
func Score(g *model.Gate, viewer string) int {
	switch g.Status {
	case model.StatusGreen:
		return 1
	case model.StatusYellow:
		return 2
	case model.StatusRed:
		return 6
	}
	switch {
	case !g.Claimed():
		if g.Status == model.StatusGray {
			return 3
		}
		return 5
	case g.ResponsibleGuard != viewer:
		return 4
	case g.Status == model.StatusGray:
		return 3
	default:
		return 4
	}
}

// Sort orders gates in place by Score, then by scheduled time ascending.
// Gates without a scheduled time sort first among equals. The sort is stable.
func Sort(gates []*model.Gate, viewer string) {
	slices.SortStableFunc(gates, func(a, b *model.Gate) int {
		if c := cmp.Compare(Score(a, viewer), Score(b, viewer)); c != 0 {
			return c
		}
		return compareScheduled(a, b)
	})
}

func compareScheduled(a, b *model.Gate) int {
	switch {
	case a.ScheduledTime == nil && b.ScheduledTime == nil:
		return 0
	case a.ScheduledTime == nil:
		return -1
	case b.ScheduledTime == nil:
		return 1
	}
	return a.ScheduledTime.Compare(*b.ScheduledTime)
}

// Group is a cluster of gates sharing the first character of their label.
type Group struct {
	Key   string        `json:"key"`
	Gates []*model.Gate `json:"gates"`
}

// GroupByLabel clusters gates by the uppercased first character of the label.
// Groups are ordered alphabetically and gates within a group by NaturalCompare.
// The input slice is not modified.
func GroupByLabel(gates []*model.Gate) []Group {
	byKey := make(map[string][]*model.Gate)
	for _, g := range gates {
		k := groupKey(g.Label)
		byKey[k] = append(byKey[k], g)
	}

	groups := make([]Group, 0, len(byKey))
	for k, gs := range byKey {
		slices.SortStableFunc(gs, func(a, b *model.Gate) int {
			return NaturalCompare(a.Label, b.Label)
		})
		groups = append(groups, Group{Key: k, Gates: gs})
	}
	slices.SortFunc(groups, func(a, b Group) int {
		return strings.Compare(a.Key, b.Key)
	})
	return groups
}

func groupKey(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return UnknownGroup
	}
	r, _ := utf8.DecodeRuneInString(label)
	return string(unicode.ToUpper(r))
}

// NaturalCompare compares labels treating digit runs as numbers, so "A2"
// sorts before "A10". Letters compare case-insensitively.
func NaturalCompare(a, b string) int {
	for a != "" && b != "" {
		ca, restA := nextChunk(a)
		cb, restB := nextChunk(b)

		da, db := isDigits(ca), isDigits(cb)
		var c int
		switch {
		case da && db:
			c = compareNumeric(ca, cb)
		case da != db:
			// Numbers before letters.
			if da {
				c = -1
			} else {
				c = 1
			}
		default:
			c = strings.Compare(strings.ToUpper(ca), strings.ToUpper(cb))
		}
		if c != 0 {
			return c
		}
		a, b = restA, restB
	}
	return cmp.Compare(len(a), len(b))
}

// nextChunk splits off the leading run of digits or non-digits.
func nextChunk(s string) (chunk, rest string) {
	digit := s[0] >= '0' && s[0] <= '9'
	i := 1
	for i < len(s) && (s[i] >= '0' && s[i] <= '9') == digit {
		i++
	}
	return s[:i], s[i:]
}

func isDigits(s string) bool {
	return s != "" && s[0] >= '0' && s[0] <= '9'
}

// compareNumeric compares two digit strings by value without parsing, so
// arbitrarily long runs work.
func compareNumeric(a, b string) int {
	a = strings.TrimLeft(a, "0")
	b = strings.TrimLeft(b, "0")
	if c := cmp.Compare(len(a), len(b)); c != 0 {
		return c
	}
	return strings.Compare(a, b)
}
