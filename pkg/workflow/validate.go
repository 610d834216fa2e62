package workflow

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Input layouts the conversational prompts ask for.
const (
	layoutDayMonthYear = "020106"
	layoutClockInput   = "1504"
	layoutClockStored  = "15:04"

	// layoutFieldDate is the format dates take inside session fields so
	// they survive a JSON round trip.
	layoutFieldDate = "2006-01-02"
)

var (
	errBadDate  = errors.New("invalid date, expected DDMMYY")
	errBadClock = errors.New("invalid time, expected HHMM")
	errBadID    = errors.New("invalid id")
)

var (
	nricPattern   = regexp.MustCompile(`^[FGSTfgst][0-9]{7}[A-Za-z]$`)
	mobilePattern = regexp.MustCompile(`^[89][0-9]{7}$`)
	postalPattern = regexp.MustCompile(`^[0-9]{6}$`)
)

// ParseDayMonthYear parses a DDMMYY date.
func ParseDayMonthYear(s string) (time.Time, error) {
	t, err := time.Parse(layoutDayMonthYear, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, errBadDate
	}
	return t, nil
}

// ParseClock parses an HHMM time of day and returns it as "HH:MM".
func ParseClock(s string) (string, error) {
	t, err := time.Parse(layoutClockInput, strings.TrimSpace(s))
	if err != nil {
		return "", errBadClock
	}
	return t.Format(layoutClockStored), nil
}

// ParseHours parses a positive duration in hours, fractions allowed.
func ParseHours(s string) (float64, error) {
	h, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || h <= 0 || h > 24 {
		return 0, errors.New("invalid hours")
	}
	return h, nil
}

// ParseSlots parses a slot count of at least one.
func ParseSlots(s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 0, errors.New("invalid slot count")
	}
	return n, nil
}

// ParseID parses a single positive numeric id.
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id < 0 {
		return 0, errBadID
	}
	return id, nil
}

// ParseIDList parses a comma-separated id list ("23, 45, 67"). Entries that
// are not numbers are dropped; an error is returned only when nothing in
// the input parses.
func ParseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		id, err := ParseID(part)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, errBadID
	}
	return ids, nil
}

// ValidNRIC reports whether s looks like a national id: one of F, G, S or T,
// seven digits, one checksum letter. Case-insensitive.
func ValidNRIC(s string) bool {
	return nricPattern.MatchString(strings.TrimSpace(s))
}

// ValidMobile reports whether s is an 8-digit mobile number starting with
// 8 or 9.
func ValidMobile(s string) bool {
	return mobilePattern.MatchString(strings.TrimSpace(s))
}

// ValidPostal reports whether s is a 6-digit postal code.
func ValidPostal(s string) bool {
	return postalPattern.MatchString(strings.TrimSpace(s))
}
