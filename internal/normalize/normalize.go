// Package normalize converts arbitrary incoming payloads (remote rows,
// legacy sheet rows, partial patches) into the canonical Case shape.
//
// Sources disagree on key casing ("createdAt" vs "created_at"), encode
// sub-collections either as real lists or as JSON strings, and sometimes
// omit the identifier. Normalization is total: a malformed field degrades to
// its zero value instead of reaching a consumer, and only a payload with no
// resolvable identity at all is rejected.
package normalize

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"casesync/internal/common"
	"casesync/internal/model"
)

// Payload is one raw row or patch from any source.
type Payload map[string]any

// Lookup resolves an existing case identity by (phone, name). It is used to
// avoid creating a duplicate when a locally created record echoes back from
// a backend without its identifier.
type Lookup func(phone, name string) (string, bool)

// NoLookup is a Lookup that never matches.
func NoLookup(string, string) (string, bool) { return "", false }

// Case builds a canonical record from p. Identity resolution order: explicit
// identifier, then (phone, name) match via lookup, then a synthesized UUID.
// A payload carrying neither an identifier nor a phone/name pair is a ghost
// and is rejected with common.ErrGhostPayload.
//
// Case is a pure function of p, lookup and now; it never mutates p.
func Case(p Payload, lookup Lookup, now time.Time) (model.Case, error) {
	fields := canonical(p)

	id := strings.TrimSpace(asString(pick(fields, "id", "caseid")))
	phone := strings.TrimSpace(asString(pick(fields, "phone", "phonenumber", "tel")))
	name := strings.TrimSpace(asString(pick(fields, "name", "clientname")))

	if id == "" {
		if phone == "" && name == "" {
			return model.Case{}, common.ErrGhostPayload
		}
		if existing, ok := lookup(phone, name); ok {
			id = existing
		} else {
			id = uuid.NewString()
		}
	}

	c := model.Case{ID: id, Status: model.StatusIntake}
	apply(&c, fields)
	if c.Status == "" {
		c.Status = model.StatusIntake
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	return c, nil
}

// Apply overlays the fields present in p onto c, coercing each to its
// semantic type. Identity and createdAt are immutable and never overwritten;
// derived flags are recomputed from the coerced fields, so an incoming
// "isNew" is ignored.
func Apply(c *model.Case, p Payload) {
	apply(c, canonical(p))
}

func apply(c *model.Case, fields map[string]any) {
	if v, ok := fields["name"]; ok {
		c.Name = asString(v)
	} else if v, ok := fields["clientname"]; ok {
		c.Name = asString(v)
	}
	if v := pick(fields, "phone", "phonenumber", "tel"); v != nil {
		c.Phone = asString(v)
	}
	if v, ok := fields["partner"]; ok {
		c.Partner = asString(v)
	}
	if v, ok := fields["manager"]; ok {
		c.Manager = asString(v)
	}
	if v, ok := fields["memo"]; ok {
		c.Memo = asString(v)
	}
	if v := pick(fields, "debtamount", "debt"); v != nil {
		c.DebtAmount = asInt64(v)
	}
	if v, ok := fields["status"]; ok {
		if s := strings.TrimSpace(asString(v)); s != "" {
			c.Status = model.Status(s)
		}
	}
	if v := pick(fields, "viewed", "isviewed"); v != nil {
		c.Viewed = asBool(v)
	}

	if c.CreatedAt.IsZero() {
		if at := asTime(pick(fields, "createdat")); !at.IsZero() {
			c.CreatedAt = at
		}
	}
	if at := asTime(pick(fields, "updatedat")); !at.IsZero() {
		c.UpdatedAt = at
	}
	if v := pick(fields, "deletedat"); v != nil {
		if at := asTime(v); !at.IsZero() {
			c.DeletedAt = &at
		}
	}

	if v := pick(fields, "notes"); v != nil {
		c.Notes = list[model.Note](v)
	}
	if v := pick(fields, "reminders", "schedules"); v != nil {
		c.Reminders = list[model.Reminder](v)
	}
	if v := pick(fields, "calls", "callrecords"); v != nil {
		c.Calls = list[model.CallRecord](v)
	}
	if v := pick(fields, "deposits", "deposithistory"); v != nil {
		c.Deposits = list[model.Deposit](v)
	}
	if v := pick(fields, "statuslog", "statushistory"); v != nil {
		c.StatusLog = list[model.StatusChange](v)
	}
}

// canonical folds every key to lower case with separators removed, so that
// "createdAt", "CreatedAt" and "created_at" address the same field.
func canonical(p Payload) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		k = strings.ToLower(k)
		k = strings.ReplaceAll(k, "_", "")
		k = strings.ReplaceAll(k, "-", "")
		// First writer wins on collisions; sources do not mix casings for
		// the same field within one payload.
		if _, exists := out[k]; !exists {
			out[k] = v
		}
	}
	return out
}

func pick(fields map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := fields[k]; ok && v != nil {
			return v
		}
	}
	return nil
}
