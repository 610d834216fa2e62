package domain

import "time"

// AppStatus is the application lifecycle. Transitions are one-directional:
// pending -> accepted|rejected|withdrawn, accepted -> withdrawn|removed.
// rejected, withdrawn, and removed are terminal.
type AppStatus string

const (
	AppPending   AppStatus = "pending"
	AppAccepted  AppStatus = "accepted"
	AppRejected  AppStatus = "rejected"
	AppWithdrawn AppStatus = "withdrawn"
	AppRemoved   AppStatus = "removed"
)

// Active reports whether the application still occupies the (actor, listing)
// pair. At most one active application per pair may exist.
func (s AppStatus) Active() bool {
	return s == AppPending || s == AppAccepted
}

// Application ties one actor to one listing. Name, contact, and listing
// particulars are copied at creation time so rosters render without joining
// back to the other entities.
type Application struct {
	ID        int64 `json:"id"`
	ActorID   int64 `json:"actor_id"`
	ListingID int64 `json:"listing_id"`
	ChatID    int64 `json:"chat_id"`

	// Snapshot of the actor at apply time.
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile"`
	Postal    string `json:"postal"`

	// Snapshot of the listing at apply time.
	Title     string    `json:"title"`
	School    string    `json:"school"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"`
	Hours     float64   `json:"hours"`
	Level     string    `json:"level"`

	Status    AppStatus `json:"status"`
	AppliedAt time.Time `json:"applied_at"`
}

// FullName joins the snapshotted name for roster display.
func (a *Application) FullName() string {
	return a.FirstName + " " + a.LastName
}
