// Package traffic implements blue/green slot selection and the traffic
// redistribution applied to a managed online endpoint when a new deployment
// is staged, promoted or rolled back.
//
// All functions are pure: they never mutate their inputs and always return
// distributions that, once normalized, sum to exactly 100.
package traffic

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/taxifare/fareops/internal/common/platformerrors"
)

const (
	// DefaultSlot is used when no slot has been requested or recorded.
	DefaultSlot = "blue"
	// AlternateSlot is the second slot of a blue/green pair.
	AlternateSlot = "green"
	// Total is the sum every applied distribution must have.
	Total = 100
)

// Distribution maps a deployment slot name to the percentage of requests routed to it.
type Distribution map[string]int

// Sum returns the total of all weights.
func (d Distribution) Sum() int {
	total := 0
	for _, weight := range d {
		total += weight
	}
	return total
}

// Copy returns a shallow copy of d. A nil distribution copies to an empty one.
func (d Distribution) Copy() Distribution {
	rv := make(Distribution, len(d))
	for name, weight := range d {
		rv[name] = weight
	}
	return rv
}

// Slots returns the slot names in lexicographic order.
func (d Distribution) Slots() []string {
	names := maps.Keys(d)
	slices.Sort(names)
	return names
}

// String renders the distribution with sorted keys so log lines are stable.
func (d Distribution) String() string {
	parts := make([]string, 0, len(d))
	for _, name := range d.Slots() {
		parts = append(parts, fmt.Sprintf("%s:%d", name, d[name]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Key returns the name under which d already tracks slot, compared case-insensitively.
// When several keys match, the lexicographically first wins; when none does, slot itself
// is returned.
func (d Distribution) Key(slot string) string {
	for _, name := range d.Slots() {
		if strings.EqualFold(name, slot) {
			return name
		}
	}
	return slot
}

// NormalizeSlotName trims and lower-cases a slot name.
func NormalizeSlotName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ResolveSlot returns the first non-blank of preferred and fromFile, then defaultSlot,
// then DefaultSlot.
func ResolveSlot(preferred, fromFile, defaultSlot string) string {
	for _, candidate := range []string{preferred, fromFile, defaultSlot} {
		if s := strings.TrimSpace(candidate); s != "" {
			return s
		}
	}
	return DefaultSlot
}

// DetermineSlot picks the slot a new deployment should be written to, given the
// traffic currently served by the endpoint. A slot missing from the traffic map is
// free and is chosen first (default before alternate); when both are live, the one
// carrying the least traffic is reused.
func DetermineSlot(current Distribution, defaultSlot, alternateSlot string) string {
	if len(current) == 0 {
		return defaultSlot
	}

	normalized := make(Distribution, len(current))
	for name, weight := range current {
		normalized[strings.ToLower(name)] += weight
	}
	if _, ok := normalized[defaultSlot]; !ok {
		return defaultSlot
	}
	if _, ok := normalized[alternateSlot]; !ok {
		return alternateSlot
	}

	minWeight := math.MaxInt
	for _, weight := range normalized {
		if weight < minWeight {
			minWeight = weight
		}
	}
	var candidates []string
	for _, name := range normalized.Slots() {
		if normalized[name] == minWeight {
			candidates = append(candidates, name)
		}
	}
	if slices.Contains(candidates, alternateSlot) {
		return alternateSlot
	}
	if slices.Contains(candidates, defaultSlot) {
		return defaultSlot
	}
	return candidates[0]
}

// Normalize returns a copy of d whose weights sum to Total. Rounding differences are
// absorbed by the slot with the highest weight; ties go to the lexicographically first slot.
func Normalize(d Distribution) Distribution {
	rv := d.Copy()
	if len(rv) == 0 {
		return rv
	}
	diff := Total - rv.Sum()
	if diff == 0 {
		return rv
	}
	rv[heaviest(rv)] += diff
	return rv
}

func heaviest(d Distribution) string {
	best := ""
	bestWeight := math.MinInt
	for _, name := range d.Slots() {
		if d[name] > bestWeight {
			best, bestWeight = name, d[name]
		}
	}
	return best
}

// Validate checks that every weight lies in [0, 100] and that the weights sum to 100.
func Validate(d Distribution) error {
	if len(d) == 0 {
		return &platformerrors.ErrInvalidArgument{
			Name:    "traffic",
			Value:   d.String(),
			Message: "distribution is empty",
		}
	}
	for _, name := range d.Slots() {
		if d[name] < 0 || d[name] > Total {
			return &platformerrors.ErrInvalidArgument{
				Name:    "traffic",
				Value:   d.String(),
				Message: fmt.Sprintf("weight for %s must be between 0 and %d", name, Total),
			}
		}
	}
	if sum := d.Sum(); sum != Total {
		return &platformerrors.ErrInvalidArgument{
			Name:    "traffic",
			Value:   d.String(),
			Message: fmt.Sprintf("weights sum to %d, expected %d", sum, Total),
		}
	}
	return nil
}

// Promote shifts percent of the traffic onto slot. Slots in previous share the remainder
// in proportion to their previous weights. Without a prior deployment the slot takes
// all traffic.
func Promote(previous Distribution, slot string, percent int, hasPrior bool) (Distribution, error) {
	if percent < 0 || percent > Total {
		return nil, errors.WithStack(&platformerrors.ErrInvalidArgument{
			Name:    "traffic-percent",
			Value:   percent,
			Message: fmt.Sprintf("must be between 0 and %d", Total),
		})
	}
	if !hasPrior || len(previous) == 0 {
		return Distribution{slot: Total}, nil
	}

	key := previous.Key(slot)
	remaining := Total - percent
	totalPrevious := previous.Sum()
	rv := make(Distribution, len(previous)+1)
	for name, weight := range previous {
		if totalPrevious == 0 {
			rv[name] = remaining / len(previous)
		} else {
			rv[name] = int(math.RoundToEven(float64(remaining*weight) / float64(totalPrevious)))
		}
	}
	for name := range rv {
		if name != key && strings.EqualFold(name, slot) {
			delete(rv, name)
		}
	}
	rv[key] = percent
	return Normalize(rv), nil
}

// Rollback restores the traffic recorded before the deployment. When nothing was
// recorded, all traffic stays on slot.
func Rollback(previous Distribution, slot string) Distribution {
	if len(previous) == 0 {
		return Distribution{slot: Total}
	}
	return Normalize(previous)
}

// StageDeployment returns the traffic to apply immediately after slot has been
// (re)deployed. Existing traffic is kept and slot joins at 0% so it can be
// validated before promotion; a first deployment receives initialPercent, or
// all traffic when initialPercent is nil. Slot names match existing keys
// case-insensitively.
func StageDeployment(previous Distribution, slot string, initialPercent *int) Distribution {
	if len(previous) > 0 {
		rv := previous.Copy()
		for name := range rv {
			if strings.EqualFold(name, slot) {
				rv[name] = 0
			}
		}
		rv[previous.Key(slot)] = 0
		return Normalize(rv)
	}
	initial := Total
	if initialPercent != nil {
		initial = *initialPercent
	}
	return Normalize(Distribution{slot: initial})
}

// RoutesTo reports whether slot, compared case-insensitively, receives a non-zero share of d.
func RoutesTo(d Distribution, slot string) bool {
	for name, weight := range d {
		if weight > 0 && strings.EqualFold(name, slot) {
			return true
		}
	}
	return false
}

// Mode is the action taken by a traffic update.
type Mode string

const (
	ModePromote  Mode = "promote"
	ModeRollback Mode = "rollback"
)

var validModes = []Mode{ModePromote, ModeRollback}

// ParseMode parses a traffic update mode case-insensitively.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if slices.Contains(validModes, m) {
		return m, nil
	}
	names := make([]string, len(validModes))
	for i, v := range validModes {
		names[i] = string(v)
	}
	sort.Strings(names)
	return "", &platformerrors.ErrInvalidArgument{
		Name:    "mode",
		Value:   s,
		Message: fmt.Sprintf("must be one of %s", strings.Join(names, ", ")),
	}
}
