package watchlist

import (
	"slices"
	"sort"
)

// Diff classifies the changes between two snapshots. Each key lands in at
// most one partition.
type Diff struct {
	Added    []string
	Removed  []string
	Enabled  []string
	Disabled []string
	Changed  []string
}

// Empty reports whether the diff contains no changes at all.
func (d Diff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 &&
		len(d.Enabled) == 0 && len(d.Disabled) == 0 && len(d.Changed) == 0
}

// Compute classifies every account key across two snapshots. It is a pure
// function; acting on the result is the orchestrator's job. A nil previous
// snapshot treats every current account as added.
func Compute(prev, curr *Snapshot) Diff {
	var diff Diff

	var prevAccounts map[string]Account
	if prev != nil {
		prevAccounts = prev.Accounts
	}
	var currAccounts map[string]Account
	if curr != nil {
		currAccounts = curr.Accounts
	}

	for key, account := range currAccounts {
		before, existed := prevAccounts[key]
		switch {
		case !existed:
			diff.Added = append(diff.Added, key)
		case !before.Enabled && account.Enabled:
			diff.Enabled = append(diff.Enabled, key)
		case before.Enabled && !account.Enabled:
			diff.Disabled = append(diff.Disabled, key)
		case !accountEqual(before, account):
			diff.Changed = append(diff.Changed, key)
		}
	}

	for key := range prevAccounts {
		if _, still := currAccounts[key]; !still {
			diff.Removed = append(diff.Removed, key)
		}
	}

	sort.Strings(diff.Added)
	sort.Strings(diff.Removed)
	sort.Strings(diff.Enabled)
	sort.Strings(diff.Disabled)
	sort.Strings(diff.Changed)
	return diff
}

func accountEqual(a, b Account) bool {
	return a.Username == b.Username &&
		a.Enabled == b.Enabled &&
		a.SessionID == b.SessionID &&
		a.TargetIDC == b.TargetIDC &&
		a.Notes == b.Notes &&
		slices.Equal(a.Tags, b.Tags)
}
