// Package merge reconciles a freshly fetched remote snapshot against the
// local collection. The convergence rule is shared with the realtime
// reconciler: per-record updatedAt comparison, local wins only when strictly
// newer, ties go to the remote copy. The rule is commutative and idempotent,
// so snapshots and push events may arrive in any order and still converge.
package merge

import (
	"time"

	"casesync/internal/model"
)

// DefaultGraceWindow is how long a locally created case survives merges
// while still absent from the remote snapshot. Long enough to cover a
// pending create that has not become visible server-side yet, short enough
// that records hard-deleted on another device disappear promptly.
const DefaultGraceWindow = 5 * time.Minute

// LocalWins reports whether the local copy beats the remote copy under the
// convergence rule.
func LocalWins(local, remote model.Case) bool {
	return local.UpdatedAt.After(remote.UpdatedAt)
}

// Cases produces the next canonical collection from the current local
// collection and a remote snapshot.
//
// Per local record: a record missing remotely is kept while its createdAt is
// within the grace window of now (a pending create) and dropped afterwards
// (hard-deleted upstream, a zombie). A record present remotely is kept when
// strictly newer locally, otherwise the remote copy is adopted. Remote
// records not seen locally are appended (created on another device). The
// result contains each identity at most once even if an upstream source
// returns duplicates.
func Cases(local, remote []model.Case, now time.Time, grace time.Duration) []model.Case {
	if grace <= 0 {
		grace = DefaultGraceWindow
	}

	remoteByID := make(map[string]model.Case, len(remote))
	for _, r := range remote {
		if _, dup := remoteByID[r.ID]; dup {
			continue
		}
		remoteByID[r.ID] = r
	}

	out := make([]model.Case, 0, len(local)+len(remote))
	seen := make(map[string]struct{}, len(local)+len(remote))

	for _, l := range local {
		if _, dup := seen[l.ID]; dup {
			continue
		}

		r, ok := remoteByID[l.ID]
		if !ok {
			if now.Sub(l.CreatedAt) <= grace {
				out = append(out, l)
				seen[l.ID] = struct{}{}
			}
			// Otherwise: zombie, drop.
			continue
		}

		if LocalWins(l, r) {
			out = append(out, l)
		} else {
			out = append(out, r)
		}
		seen[l.ID] = struct{}{}
	}

	for _, r := range remote {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		out = append(out, r)
		seen[r.ID] = struct{}{}
	}

	return out
}

// Settings merges settings-class collections, which carry no per-record
// timestamps: the remote copy wins wholesale. A collection the remote did
// not return at all falls back to the local one, so a partial settings
// payload cannot wipe known-good data.
func Settings(local, remote model.Settings) model.Settings {
	out := remote
	if out.Partners == nil {
		out.Partners = local.Partners
	}
	if out.Statuses == nil {
		out.Statuses = local.Statuses
	}
	if out.Managers == nil {
		out.Managers = local.Managers
	}
	return out
}
