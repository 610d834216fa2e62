package domain

import "time"

// ListingStatus is the lifecycle of a listing. The only transition is
// open -> closed, performed by the completion flow, and it is terminal.
type ListingStatus string

const (
	ListingOpen   ListingStatus = "open"
	ListingClosed ListingStatus = "closed"
)

// Listing is a capacity-limited programme offered by a group chat.
// SlotsLeft is the only field the engine mutates after creation (besides the
// terminal status change): decremented per accepted applicant, incremented
// when an accepted applicant withdraws, always within [0, Slots].
type Listing struct {
	ID        int64 `json:"id"`
	ChatID    int64 `json:"chat_id"`
	CreatedBy int64 `json:"created_by"`

	Title     string    `json:"title"`
	School    string    `json:"school"`
	Date      time.Time `json:"date"`
	StartTime string    `json:"start_time"` // 24h "HH:MM"
	Hours     float64   `json:"hours"`
	Level     string    `json:"level"`

	Slots     int           `json:"slots"`
	SlotsLeft int           `json:"slots_left"`
	Status    ListingStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
}

// Settlement is the result of completing a listing: each listed actor was
// credited the listing's hours exactly once and the listing is now closed.
type Settlement struct {
	ListingID int64   `json:"listing_id"`
	Hours     float64 `json:"hours"`
	Credited  []int64 `json:"credited"`
}
