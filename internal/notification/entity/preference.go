package entity

import "time"

// Preference holds the channel settings of one user. Email and PhoneNumber
// are empty when absent.
type Preference struct {
	UserID       string
	EmailEnabled bool
	SMSEnabled   bool
	Email        string
	PhoneNumber  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Recipient returns the address for ch when the channel is enabled and
// addressed.
func (p Preference) Recipient(ch Channel) (string, bool) {
	switch ch {
	case ChannelEmail:
		return p.Email, p.EmailEnabled && p.Email != ""
	case ChannelSMS:
		return p.PhoneNumber, p.SMSEnabled && p.PhoneNumber != ""
	default:
		return "", false
	}
}

// PreferenceUpdate is a write to a user's preference. Empty Email or
// PhoneNumber keep the stored value on update and are null on create. Nil
// flags keep the stored value on update and are enabled on create.
type PreferenceUpdate struct {
	UserID       string
	EmailEnabled *bool
	SMSEnabled   *bool
	Email        string
	PhoneNumber  string
}
