package tests

import (
	"net/http"
	"testing"
)

func TestPreference(t *testing.T) {

	t.Run("CreateThenPartialUpdate", func(t *testing.T) {

		// Arrange
		userID := uniqueUserID("pref")
		upsertPreference(t, userID, map[string]any{
			"email_enabled": true,
			"email":         "a@example.com",
		})

		// Act
		pref := upsertPreference(t, userID, map[string]any{
			"sms_enabled":  true,
			"phone_number": "+12345678901",
		})

		// Assert
		if !pref.EmailEnabled || !pref.SMSEnabled {
			t.Fatalf("expected both channels enabled, got %+v", pref)
		}
		if pref.Email == nil || *pref.Email != "a@example.com" {
			t.Fatalf("expected email kept, got %v", pref.Email)
		}
		if pref.PhoneNumber == nil || *pref.PhoneNumber != "+12345678901" {
			t.Fatalf("expected phone number stored, got %v", pref.PhoneNumber)
		}
	})

	t.Run("DefaultsOnFirstWrite", func(t *testing.T) {

		// Arrange
		userID := uniqueUserID("pref")

		// Act
		pref := upsertPreference(t, userID, map[string]any{})

		// Assert
		if !pref.EmailEnabled || pref.SMSEnabled {
			t.Fatalf("expected email on and sms off by default, got %+v", pref)
		}
		if pref.Email != nil || pref.PhoneNumber != nil {
			t.Fatalf("expected no addresses, got %+v", pref)
		}
	})

	t.Run("GetUnknownUser", func(t *testing.T) {

		// Arrange
		userID := uniqueUserID("missing")

		// Act
		status, body := doJSON(t, http.MethodGet, preferencePath(userID), nil)

		// Assert
		if status != http.StatusNotFound {
			t.Fatalf("expected 404, got %d body=%s", status, body)
		}
	})
}
