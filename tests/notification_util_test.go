package tests

import (
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"
)

type preferenceData struct {
	UserID       string  `json:"user_id"`
	EmailEnabled bool    `json:"email_enabled"`
	SMSEnabled   bool    `json:"sms_enabled"`
	Email        *string `json:"email"`
	PhoneNumber  *string `json:"phone_number"`
}

type queuedData struct {
	Status string    `json:"status"`
	SendAt time.Time `json:"send_at"`
	Count  *int      `json:"count"`
}

type notificationData struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Channel   string     `json:"channel"`
	Recipient string     `json:"recipient"`
	Status    string     `json:"status"`
	SendAt    time.Time  `json:"send_at"`
	SentAt    *time.Time `json:"sent_at"`
}

func uniqueUserID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func preferencePath(userID string) string {
	return "/api/v1/notification/preferences/" + url.PathEscape(userID)
}

func upsertPreference(t *testing.T, userID string, payload map[string]any) preferenceData {
	t.Helper()

	status, body := doJSON(t, http.MethodPut, preferencePath(userID), payload)
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("upsert preference failed: status=%d message=%q", status, errEnv.Message)
	}

	var data preferenceData
	decodeSuccess(t, body, &data)

	return data
}

func listNotifications(t *testing.T, userID, query string) []notificationData {
	t.Helper()

	path := "/api/v1/notification/users/" + url.PathEscape(userID) + "/notifications"
	if query != "" {
		path += "?" + query
	}

	status, body := doJSON(t, http.MethodGet, path, nil)
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("list notifications failed: status=%d message=%q", status, errEnv.Message)
	}

	var data struct {
		Notifications []notificationData `json:"notifications"`
	}
	decodeSuccess(t, body, &data)

	return data.Notifications
}

// waitStatus polls a record until it leaves pending or the deadline passes.
func waitStatus(t *testing.T, id string, timeout time.Duration) notificationData {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		status, body := doJSON(t, http.MethodGet, "/api/v1/notification/notifications/"+id, nil)
		if status != http.StatusOK {
			errEnv := decodeError(t, body)
			t.Fatalf("get notification failed: status=%d message=%q", status, errEnv.Message)
		}

		var data notificationData
		decodeSuccess(t, body, &data)
		if data.Status != "pending" || time.Now().After(deadline) {
			return data
		}

		time.Sleep(200 * time.Millisecond)
	}
}
