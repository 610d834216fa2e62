package workflow

import (
	"encoding/base64"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/haleybot/haley/pkg/domain"
)

// RegistrationForm is the typed view of the fields the registration
// workflow collects. Dates are stored in fields as "2006-01-02" strings and
// the photo as base64, so sessions survive a JSON round trip.
type RegistrationForm struct {
	Username    string    `mapstructure:"username"`
	FirstName   string    `mapstructure:"first_name"`
	LastName    string    `mapstructure:"last_name"`
	DateOfBirth time.Time `mapstructure:"date_of_birth"`
	Photo       string    `mapstructure:"photo"`
	NRIC        string    `mapstructure:"nric"`
	IRSExpiry   time.Time `mapstructure:"irs_expiry"`
	Mobile      string    `mapstructure:"mobile"`
	Postal      string    `mapstructure:"postal"`
}

// Actor builds the domain record the form describes.
func (f *RegistrationForm) Actor(id int64, now time.Time) (*domain.Actor, error) {
	photo, err := base64.StdEncoding.DecodeString(f.Photo)
	if err != nil {
		return nil, fmt.Errorf("decode photo: %w", err)
	}
	return &domain.Actor{
		ID:           id,
		Username:     f.Username,
		FirstName:    f.FirstName,
		LastName:     f.LastName,
		DateOfBirth:  f.DateOfBirth,
		NRIC:         f.NRIC,
		IRSExpiry:    f.IRSExpiry,
		Mobile:       f.Mobile,
		Postal:       f.Postal,
		Photo:        photo,
		Role:         domain.RoleStandard,
		RegisteredAt: now,
	}, nil
}

// ListingForm is the typed view of the fields the listing workflow
// collects.
type ListingForm struct {
	School    string    `mapstructure:"school"`
	Date      time.Time `mapstructure:"date"`
	StartTime string    `mapstructure:"start_time"`
	Hours     float64   `mapstructure:"hours"`
	Level     string    `mapstructure:"level"`
	Slots     int       `mapstructure:"slots"`
	Title     string    `mapstructure:"title"`
}

// Listing builds the domain record the form describes.
func (f *ListingForm) Listing(chatID, createdBy int64, now time.Time) *domain.Listing {
	return &domain.Listing{
		ChatID:    chatID,
		CreatedBy: createdBy,
		Title:     f.Title,
		School:    f.School,
		Date:      f.Date,
		StartTime: f.StartTime,
		Hours:     f.Hours,
		Level:     f.Level,
		Slots:     f.Slots,
		SlotsLeft: f.Slots,
		Status:    domain.ListingOpen,
		CreatedAt: now,
	}
}

// decodeForm hydrates a form struct from the session's field map. Numbers
// arrive as float64 after a JSON round trip, so decoding is weakly typed.
func decodeForm(fields map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeHookFunc(layoutFieldDate),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("build form decoder: %w", err)
	}
	if err := dec.Decode(fields); err != nil {
		return fmt.Errorf("decode form: %w", err)
	}
	return nil
}
