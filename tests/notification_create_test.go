package tests

import (
	"net/http"
	"testing"
	"time"
)

func TestCreateNotification(t *testing.T) {

	t.Run("QueuesAndDeliversPerChannel", func(t *testing.T) {

		// Arrange
		userID := uniqueUserID("create")
		upsertPreference(t, userID, map[string]any{
			"email_enabled": true,
			"sms_enabled":   true,
			"email":         "user@example.com",
			"phone_number":  "+12345678901",
		})

		// Act
		status, body := doJSON(t, http.MethodPost, "/api/v1/notification/notifications", map[string]any{
			"user_id": userID,
			"subject": "Hello",
			"message": "World",
		})

		// Assert
		if status != http.StatusOK {
			errEnv := decodeError(t, body)
			t.Fatalf("create notification failed: status=%d message=%q", status, errEnv.Message)
		}
		var queued queuedData
		decodeSuccess(t, body, &queued)
		if queued.Status != "queued" {
			t.Fatalf("expected queued, got %q", queued.Status)
		}

		records := listNotifications(t, userID, "")
		if len(records) != 2 {
			t.Fatalf("expected 2 records, got %d", len(records))
		}
		for _, r := range records {
			got := waitStatus(t, r.ID, 10*time.Second)
			if got.Status != "sent" || got.SentAt == nil {
				t.Fatalf("expected %s record sent, got %+v", r.Channel, got)
			}
		}
	})

	t.Run("InvalidRecipientFails", func(t *testing.T) {

		// Arrange
		userID := uniqueUserID("invalid")
		upsertPreference(t, userID, map[string]any{
			"email_enabled": true,
			"email":         "not-an-email",
		})

		// Act
		status, _ := doJSON(t, http.MethodPost, "/api/v1/notification/notifications", map[string]any{
			"user_id": userID,
			"subject": "Hello",
			"message": "World",
		})

		// Assert
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		records := listNotifications(t, userID, "")
		if len(records) != 1 {
			t.Fatalf("expected 1 record, got %d", len(records))
		}
		got := waitStatus(t, records[0].ID, 10*time.Second)
		if got.Status != "failed" {
			t.Fatalf("expected failed, got %q", got.Status)
		}
	})

	t.Run("ScheduledStaysPending", func(t *testing.T) {

		// Arrange
		userID := uniqueUserID("later")
		upsertPreference(t, userID, map[string]any{"email": "later@example.com"})
		sendAt := time.Now().Add(time.Hour).UTC().Truncate(time.Second)

		// Act
		status, body := doJSON(t, http.MethodPost, "/api/v1/notification/notifications", map[string]any{
			"user_id": userID,
			"subject": "Later",
			"message": "Soon",
			"send_at": sendAt,
		})

		// Assert
		if status != http.StatusOK {
			t.Fatalf("expected 200, got %d", status)
		}
		var queued queuedData
		decodeSuccess(t, body, &queued)
		if !queued.SendAt.Equal(sendAt) {
			t.Fatalf("expected send_at %v, got %v", sendAt, queued.SendAt)
		}
		records := listNotifications(t, userID, "status=pending")
		if len(records) != 1 {
			t.Fatalf("expected 1 pending record, got %d", len(records))
		}
	})

	t.Run("UnknownUser", func(t *testing.T) {

		// Act
		status, _ := doJSON(t, http.MethodPost, "/api/v1/notification/notifications", map[string]any{
			"user_id": uniqueUserID("ghost"),
			"subject": "Hello",
			"message": "World",
		})

		// Assert
		if status != http.StatusNotFound {
			t.Fatalf("expected 404, got %d", status)
		}
	})

	t.Run("MissingSubject", func(t *testing.T) {

		// Act
		status, body := doJSON(t, http.MethodPost, "/api/v1/notification/notifications", map[string]any{
			"user_id": uniqueUserID("bad"),
			"message": "World",
		})

		// Assert
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", status)
		}
		if errEnv := decodeError(t, body); errEnv.Error["subject"] == "" {
			t.Fatalf("expected subject error, got %v", errEnv.Error)
		}
	})
}
