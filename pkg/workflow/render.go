package workflow

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/haleybot/haley/pkg/domain"
)

const (
	displayDate = "02 Jan 06"
)

func formatDate(t time.Time) string {
	return t.Format(displayDate)
}

// formatClock renders a stored "HH:MM" as "3:04 PM". Falls back to the
// stored value if it does not parse.
func formatClock(s string) string {
	t, err := time.Parse(layoutClockStored, s)
	if err != nil {
		return s
	}
	return t.Format("3:04 PM")
}

func formatHours(h float64) string {
	return strconv.FormatFloat(h, 'f', -1, 64)
}

func formatIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// listingDetails renders the full card shown when confirming a signup or a
// withdrawal.
func listingDetails(l *domain.Listing) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ID: %d\n", l.ID)
	fmt.Fprintf(&b, "Title: %s\n", l.Title)
	fmt.Fprintf(&b, "School: %s\n", l.School)
	fmt.Fprintf(&b, "Date: %s\n", formatDate(l.Date))
	fmt.Fprintf(&b, "Time: %s\n", formatClock(l.StartTime))
	fmt.Fprintf(&b, "Duration: %s hours\n", formatHours(l.Hours))
	fmt.Fprintf(&b, "Level: %s\n", l.Level)
	fmt.Fprintf(&b, "Slots left: %d", l.SlotsLeft)
	return b.String()
}

// listingLine renders the one-line summary used in the open-listings view.
func listingLine(l *domain.Listing) string {
	return fmt.Sprintf("%d | %s | %s %s | %s hrs | %s | %d slot(s) left",
		l.ID, l.Title, formatDate(l.Date), formatClock(l.StartTime),
		formatHours(l.Hours), l.School, l.SlotsLeft)
}

// applicationLine renders one roster or signup entry.
func applicationLine(a *domain.Application) string {
	return fmt.Sprintf("%d | %s | %s | programme %d (%s)",
		a.ID, a.FullName(), a.Mobile, a.ListingID, a.Status)
}

func rosterLines(apps []*domain.Application) string {
	if len(apps) == 0 {
		return "(none)"
	}
	lines := make([]string, len(apps))
	for i, a := range apps {
		lines[i] = applicationLine(a)
	}
	return strings.Join(lines, "\n")
}

// registrationSummary renders the review card shown before the final
// confirmation.
func registrationSummary(f *RegistrationForm) string {
	var b strings.Builder
	b.WriteString("Please check that your details are correct:\n\n")
	fmt.Fprintf(&b, "Name: %s %s\n", f.FirstName, f.LastName)
	fmt.Fprintf(&b, "Date of birth: %s\n", formatDate(f.DateOfBirth))
	fmt.Fprintf(&b, "NRIC: %s\n", f.NRIC)
	fmt.Fprintf(&b, "IRS expiry: %s\n", formatDate(f.IRSExpiry))
	fmt.Fprintf(&b, "Mobile: %s\n", f.Mobile)
	fmt.Fprintf(&b, "Postal code: %s", f.Postal)
	return b.String()
}

// listingSummary renders the review card for a new listing.
func listingSummary(f *ListingForm) string {
	var b strings.Builder
	b.WriteString("Please check that the programme details are correct:\n\n")
	fmt.Fprintf(&b, "Title: %s\n", f.Title)
	fmt.Fprintf(&b, "School: %s\n", f.School)
	fmt.Fprintf(&b, "Date: %s\n", formatDate(f.Date))
	fmt.Fprintf(&b, "Time: %s\n", formatClock(f.StartTime))
	fmt.Fprintf(&b, "Duration: %s hours\n", formatHours(f.Hours))
	fmt.Fprintf(&b, "Level: %s\n", f.Level)
	fmt.Fprintf(&b, "Slots: %d", f.Slots)
	return b.String()
}

// transientFailure is the reply for a store error; the session survives so
// the actor can retry the same step.
func transientFailure(chatID int64) domain.Message {
	return domain.Reply(chatID, "Something went wrong on our side. Please try that again in a moment.")
}
