// Package model defines the canonical client-side data models shared by the
// casesync store, merge engine and remote clients.
package model

import "time"

// Status is the lifecycle state of a case. The product is Korean, so the
// persisted values are the Korean labels the backends already store.
type Status string

const (
	// StatusIntake is the initial state of a freshly registered lead.
	StatusIntake Status = "신규"
	// StatusConsulting marks a lead currently in consultation.
	StatusConsulting Status = "상담중"
	// StatusContracted marks a signed case.
	StatusContracted Status = "계약"
	// StatusHold marks a stalled case.
	StatusHold Status = "보류"
	// StatusClosed marks a finished case.
	StatusClosed Status = "종결"
	// StatusBin marks a soft-deleted case sitting in the recycle bin.
	StatusBin Status = "휴지통"
)

// Note is a free-form consultation note.
type Note struct {
	At     time.Time `json:"at"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// Reminder is a scheduled follow-up item.
type Reminder struct {
	At    time.Time `json:"at"`
	Title string    `json:"title"`
	Done  bool      `json:"done"`
}

// CallRecord describes one recorded call attached to a case.
type CallRecord struct {
	At       time.Time `json:"at"`
	Number   string    `json:"number"`
	Seconds  int64     `json:"seconds"`
	FileName string    `json:"fileName"`
}

// Deposit is one entry of the payment history.
type Deposit struct {
	At     time.Time `json:"at"`
	Amount int64     `json:"amount"`
	Method string    `json:"method"`
}

// StatusChange is one structured entry of the status-change log.
type StatusChange struct {
	At   time.Time `json:"at"`
	From Status    `json:"from"`
	To   Status    `json:"to"`
	By   string    `json:"by"`
}

// Case is the canonical business record. Identity is opaque and immutable
// once assigned; UpdatedAt is the ordering key for conflict resolution and
// must only ever move forward on the locally held copy.
type Case struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Partner string `json:"partner"`
	Manager string `json:"manager"`
	Memo    string `json:"memo"`

	// DebtAmount is the reported total debt in KRW.
	DebtAmount int64 `json:"debtAmount"`

	Status Status `json:"status"`
	Viewed bool   `json:"viewed"`

	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
	DeletedAt *time.Time `json:"deletedAt,omitempty"`

	// Sub-collections are owned exclusively by the case; they are never
	// shared between records.
	Notes      []Note         `json:"notes"`
	Reminders  []Reminder     `json:"reminders"`
	Calls      []CallRecord   `json:"calls"`
	Deposits   []Deposit      `json:"deposits"`
	StatusLog  []StatusChange `json:"statusLog"`
}

// InBin reports whether the case is soft-deleted.
func (c *Case) InBin() bool { return c.Status == StatusBin }

// IsNew is derived, never stored: a case is new while it is still in intake,
// nobody opened it, and it is not in the bin.
func (c *Case) IsNew() bool { return c.Status == StatusIntake && !c.Viewed && !c.InBin() }

// IsViewed reports whether the case has been opened at least once.
func (c *Case) IsViewed() bool { return c.Viewed }

// DeletedSince returns the reference instant for the retention window: the
// explicit deletion marker when present, otherwise the last update.
func (c *Case) DeletedSince() time.Time {
	if c.DeletedAt != nil {
		return *c.DeletedAt
	}
	return c.UpdatedAt
}

// Clone returns a deep copy, so callers can hand out cases without exposing
// the store's slices to mutation.
func (c Case) Clone() Case {
	out := c
	if c.DeletedAt != nil {
		at := *c.DeletedAt
		out.DeletedAt = &at
	}
	out.Notes = append([]Note(nil), c.Notes...)
	out.Reminders = append([]Reminder(nil), c.Reminders...)
	out.Calls = append([]CallRecord(nil), c.Calls...)
	out.Deposits = append([]Deposit(nil), c.Deposits...)
	out.StatusLog = append([]StatusChange(nil), c.StatusLog...)
	return out
}
