// Package retention orders model versions and decides which ones a cleanup keeps.
//
// Versions are opaque strings. Numeric versions compare numerically. A version that
// is not a plain integer ranks above every numeric one, matching how the platform's
// own tooling picks "latest" among mixed version labels.
package retention

import (
	"math/big"
	"sort"
	"strings"

	"github.com/taxifare/fareops/internal/common/platformerrors"
)

func numeric(v string) (*big.Int, bool) {
	if strings.TrimSpace(v) != v || v == "" {
		return nil, false
	}
	n, ok := new(big.Int).SetString(v, 10)
	return n, ok
}

// CompareVersions returns -1, 0 or +1 depending on whether a ranks below, equal to
// or above b.
func CompareVersions(a, b string) int {
	na, aNumeric := numeric(a)
	nb, bNumeric := numeric(b)
	switch {
	case aNumeric && bNumeric:
		return na.Cmp(nb)
	case aNumeric:
		return -1
	case bNumeric:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// SortDescending returns a copy of versions ordered newest first.
func SortDescending(versions []string) []string {
	rv := make([]string, len(versions))
	copy(rv, versions)
	sort.SliceStable(rv, func(i, j int) bool {
		return CompareVersions(rv[i], rv[j]) > 0
	})
	return rv
}

// Latest returns the highest version, or "" if versions is empty.
func Latest(versions []string) string {
	latest := ""
	for i, v := range versions {
		if i == 0 || CompareVersions(v, latest) > 0 {
			latest = v
		}
	}
	return latest
}

// NextVersion returns one more than the highest numeric version, or "1" when there is none.
func NextVersion(versions []string) string {
	highest := big.NewInt(0)
	for _, v := range versions {
		if n, ok := numeric(v); ok && n.Cmp(highest) > 0 {
			highest = n
		}
	}
	return new(big.Int).Add(highest, big.NewInt(1)).String()
}

// Plan splits versions into those kept and those to delete. Every version in keep
// survives; newer versions are then added until at least retain versions (or len(keep),
// if larger) are kept. Entries of keep count towards the target even when they do not
// appear in versions. Both results are ordered newest first and only contain entries
// of versions.
func Plan(versions []string, keep []string, retain int) (kept []string, deleted []string, err error) {
	if retain < 1 {
		return nil, nil, &platformerrors.ErrInvalidArgument{
			Name:    "retain-versions",
			Value:   retain,
			Message: "must be at least 1",
		}
	}

	keepSet := make(map[string]bool, len(keep))
	for _, v := range keep {
		if v != "" {
			keepSet[v] = true
		}
	}
	target := retain
	if len(keepSet) > target {
		target = len(keepSet)
	}

	ordered := SortDescending(versions)
	for _, v := range ordered {
		if len(keepSet) >= target {
			break
		}
		if v != "" {
			keepSet[v] = true
		}
	}

	for _, v := range ordered {
		if v == "" {
			continue
		}
		if keepSet[v] {
			kept = append(kept, v)
		} else {
			deleted = append(deleted, v)
		}
	}
	return kept, deleted, nil
}
