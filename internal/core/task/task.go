// Package task defines the shared task domain model and the storage
// contract implemented by the durable and transient backends.
package task

import "time"

// LockTTL is how long a held edit lock is honored before another user
// may seize it. Expiry is evaluated lazily at read/acquire time; there
// is no background sweep.
const LockTTL = 5 * time.Minute

// Priority classifies how urgent a task is.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid reports whether p is one of the known priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// LockState is the per-item edit lock annotation. The zero value means
// unlocked. Invariant: By is non-empty iff At is non-nil.
type LockState struct {
	By string     `json:"locked_by,omitempty"`
	At *time.Time `json:"locked_at,omitempty"`
}

// Held reports whether the lock fields are populated, regardless of expiry.
func (l LockState) Held() bool {
	return l.By != "" && l.At != nil
}

// Expired reports whether a held lock has outlived its TTL at the given
// instant. An unheld lock is never expired.
func (l LockState) Expired(now time.Time) bool {
	return l.Held() && now.Sub(*l.At) >= LockTTL
}

// Active reports whether the lock is held and still within its TTL.
func (l LockState) Active(now time.Time) bool {
	return l.Held() && !l.Expired(now)
}

// Blocks reports whether the lock stops the given user from mutating the
// item. An empty userID means the caller carries no identity, which is
// never blocked.
func (l LockState) Blocks(userID string, now time.Time) bool {
	if userID == "" || !l.Active(now) {
		return false
	}
	return l.By != userID
}

// Item is a single task on the shared board.
type Item struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Completed   bool      `json:"completed"`
	Priority    Priority  `json:"priority"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Lock        LockState `json:"lock"`
}

// Clone returns a deep copy of the item, detaching the lock timestamp so
// callers cannot mutate stored state through the pointer.
func (i Item) Clone() Item {
	out := i
	if i.Lock.At != nil {
		at := *i.Lock.At
		out.Lock.At = &at
	}
	return out
}

// Draft is the caller-supplied input for creating a task.
type Draft struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Completed   *bool     `json:"completed,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Completed == nil && p.Priority == nil
}

// Apply merges the patch into the item, leaving nil fields untouched.
func (p Patch) Apply(item *Item) {
	if p.Title != nil {
		item.Title = *p.Title
	}
	if p.Description != nil {
		item.Description = *p.Description
	}
	if p.Completed != nil {
		item.Completed = *p.Completed
	}
	if p.Priority != nil {
		item.Priority = *p.Priority
	}
}

// Filter narrows List and Count results. Nil/empty fields match everything.
type Filter struct {
	Completed *bool    `json:"completed,omitempty"`
	Priority  Priority `json:"priority,omitempty"`
}

// Matches reports whether the item passes the filter.
func (f Filter) Matches(item Item) bool {
	if f.Completed != nil && item.Completed != *f.Completed {
		return false
	}
	if f.Priority != "" && item.Priority != f.Priority {
		return false
	}
	return true
}

// Pagination bounds enforced upstream of the stores.
const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// Page is offset pagination input. The zero value means "first page,
// default limit".
type Page struct {
	Number int `json:"page"`
	Limit  int `json:"limit"`
}

// Normalized returns the page with defaults applied to zero fields.
func (p Page) Normalized() Page {
	if p.Number == 0 {
		p.Number = DefaultPage
	}
	if p.Limit == 0 {
		p.Limit = DefaultLimit
	}
	return p
}

// Offset returns the row offset for the normalized page.
func (p Page) Offset() int {
	n := p.Normalized()
	return (n.Number - 1) * n.Limit
}
