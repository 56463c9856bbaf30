package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/idempotency"
)

func seedRecord(d *testDeps, id int64, ch entity.Channel, recipient string, status entity.Status) {
	d.repo.records[id] = entity.Notification{
		ID:        id,
		UserID:    "u1",
		Subject:   "S",
		Message:   "M",
		Channel:   ch,
		Recipient: recipient,
		Status:    status,
		SendAt:    testNow,
	}
}

func TestUsecase_ProcessDelivery(t *testing.T) {
	tests := []struct {
		name       string
		channel    entity.Channel
		recipient  string
		status     entity.Status
		arrange    func(d *testDeps)
		wantStatus entity.Status
		wantSends  int
	}{
		{
			name:       "valid email is sent",
			channel:    entity.ChannelEmail,
			recipient:  "a@b.com",
			status:     entity.StatusPending,
			wantStatus: entity.StatusSent,
			wantSends:  1,
		},
		{
			name:      "invalid sms recipient fails without transport",
			channel:   entity.ChannelSMS,
			recipient: "not-a-number",
			status:    entity.StatusPending,
			arrange: func(d *testDeps) {
				d.sms.valid = false
			},
			wantStatus: entity.StatusFailed,
			wantSends:  0,
		},
		{
			name:      "transport error fails the record",
			channel:   entity.ChannelEmail,
			recipient: "a@b.com",
			status:    entity.StatusPending,
			arrange: func(d *testDeps) {
				d.email.sendErr = entity.ErrDelivery
			},
			wantStatus: entity.StatusFailed,
			wantSends:  1,
		},
		{
			name:      "panicking transport fails the record",
			channel:   entity.ChannelSMS,
			recipient: "+12345678901",
			status:    entity.StatusPending,
			arrange: func(d *testDeps) {
				d.sms.panicMsg = "carrier exploded"
			},
			wantStatus: entity.StatusFailed,
			wantSends:  1,
		},
		{
			name:       "unknown channel fails the record",
			channel:    entity.Channel(9),
			recipient:  "a@b.com",
			status:     entity.StatusPending,
			wantStatus: entity.StatusFailed,
			wantSends:  0,
		},
		{
			name:       "sent record is a no-op",
			channel:    entity.ChannelEmail,
			recipient:  "a@b.com",
			status:     entity.StatusSent,
			wantStatus: entity.StatusSent,
			wantSends:  0,
		},
		{
			name:       "failed record is a no-op",
			channel:    entity.ChannelEmail,
			recipient:  "a@b.com",
			status:     entity.StatusFailed,
			wantStatus: entity.StatusFailed,
			wantSends:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			d := newTestDeps()
			seedRecord(d, 1, tt.channel, tt.recipient, tt.status)
			if tt.arrange != nil {
				tt.arrange(d)
			}
			uc := newTestUsecase(t, d)

			// Act
			err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 1, Channel: tt.channel, SendAt: testNow})

			// Assert
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			rec := d.repo.record(t, 1)
			if rec.Status != tt.wantStatus {
				t.Fatalf("status = %v, want %v", rec.Status, tt.wantStatus)
			}
			if got := d.email.sends + d.sms.sends; got != tt.wantSends {
				t.Fatalf("sends = %d, want %d", got, tt.wantSends)
			}
			if tt.status == entity.StatusPending {
				if tt.wantStatus == entity.StatusSent && (rec.SentAt == nil || !rec.SentAt.Equal(testNow)) {
					t.Fatalf("sent_at = %v, want %v", rec.SentAt, testNow)
				}
				if tt.wantStatus == entity.StatusFailed && rec.SentAt != nil {
					t.Fatalf("failed record has sent_at %v", rec.SentAt)
				}
			}
		})
	}
}

func TestUsecase_ProcessDelivery_MissingRecord(t *testing.T) {
	d := newTestDeps()
	uc := newTestUsecase(t, d)

	err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 42, Channel: entity.ChannelEmail})

	if err != nil {
		t.Fatalf("missing record should be dropped, got %v", err)
	}
	if d.repo.markCalls != 0 || d.email.sends != 0 {
		t.Fatalf("side effects on missing record")
	}
}

func TestUsecase_ProcessDelivery_Redelivery(t *testing.T) {
	// Arrange
	d := newTestDeps()
	d.clock = &tickingClock{now: testNow}
	seedRecord(d, 1, entity.ChannelEmail, "a@b.com", entity.StatusPending)
	uc := newTestUsecase(t, d)
	in := ProcessDeliveryInput{NotificationID: 1, Channel: entity.ChannelEmail, SendAt: testNow}
	if err := uc.ProcessDelivery(context.Background(), in); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	first := d.repo.record(t, 1)
	if first.Status != entity.StatusSent || first.SentAt == nil {
		t.Fatalf("first delivery did not finish: %+v", first)
	}
	sentAt := *first.SentAt

	// Act
	for range 2 {
		if err := uc.ProcessDelivery(context.Background(), in); err != nil {
			t.Fatalf("redelivery: %v", err)
		}
	}

	// Assert
	if d.email.sends != 1 {
		t.Fatalf("sends = %d, want 1", d.email.sends)
	}
	got := d.repo.record(t, 1)
	if got.Status != entity.StatusSent || got.SentAt == nil || !got.SentAt.Equal(sentAt) {
		t.Fatalf("redelivery changed the record: sent_at %v -> %v (status %s)", sentAt, got.SentAt, got.Status)
	}
}

func TestUsecase_ProcessDelivery_StatusWriteRetry(t *testing.T) {
	t.Run("transient failure is retried", func(t *testing.T) {
		d := newTestDeps()
		seedRecord(d, 1, entity.ChannelEmail, "a@b.com", entity.StatusPending)
		d.repo.markErrs = []error{errors.New("conn reset")}
		uc := newTestUsecase(t, d)

		err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 1})

		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if d.repo.markCalls != 2 || d.repo.record(t, 1).Status != entity.StatusSent {
			t.Fatalf("mark calls = %d, status = %v", d.repo.markCalls, d.repo.record(t, 1).Status)
		}
	})

	t.Run("persistent failure is returned for redelivery", func(t *testing.T) {
		// Arrange
		d := newTestDeps()
		seedRecord(d, 1, entity.ChannelEmail, "a@b.com", entity.StatusPending)
		down := errors.New("db down")
		d.repo.markErrs = []error{down, down, down}
		uc := newTestUsecase(t, d)

		// Act
		err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 1})

		// Assert
		if !errors.Is(err, down) {
			t.Fatalf("expected storage error, got %v", err)
		}
		if d.repo.record(t, 1).Status != entity.StatusPending {
			t.Fatalf("record should stay pending")
		}
	})
}

func TestUsecase_ProcessDelivery_EarlyJob(t *testing.T) {
	// Arrange
	d := newTestDeps()
	sendAt := testNow.Add(time.Hour)
	seedRecord(d, 1, entity.ChannelEmail, "a@b.com", entity.StatusPending)
	rec := d.repo.records[1]
	rec.SendAt = sendAt
	d.repo.records[1] = rec
	uc := newTestUsecase(t, d)

	// Act
	err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 1, SendAt: sendAt})

	// Assert
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.email.sends != 0 || d.repo.record(t, 1).Status != entity.StatusPending {
		t.Fatalf("early job was delivered")
	}
	if len(d.jobs.jobs) != 1 || d.jobs.jobs[0].delay != time.Hour {
		t.Fatalf("republished = %+v, want one job delayed 1h", d.jobs.jobs)
	}
}

func TestUsecase_ProcessDelivery_WithinTolerance(t *testing.T) {
	d := newTestDeps()
	seedRecord(d, 1, entity.ChannelEmail, "a@b.com", entity.StatusPending)
	uc := newTestUsecase(t, d)

	err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 1, SendAt: testNow.Add(3 * time.Second)})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.email.sends != 1 || len(d.jobs.jobs) != 0 {
		t.Fatalf("sends = %d, republished = %d", d.email.sends, len(d.jobs.jobs))
	}
}

func TestUsecase_ProcessDelivery_Guard(t *testing.T) {
	tests := []struct {
		name          string
		state         idempotency.State
		acquireErr    error
		wantSends     int
		wantCompleted int
	}{
		{name: "first execution", state: idempotency.StateNone, wantSends: 1, wantCompleted: 1},
		{name: "in progress elsewhere", state: idempotency.StateInProgress, wantSends: 0},
		{name: "already completed", state: idempotency.StateCompleted, wantSends: 0},
		{name: "previous attempt failed", state: idempotency.StateFailed, wantSends: 1, wantCompleted: 1},
		{name: "guard unavailable", state: idempotency.StateError, acquireErr: errors.New("redis down"), wantSends: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			d := newTestDeps()
			seedRecord(d, 1, entity.ChannelEmail, "a@b.com", entity.StatusPending)
			guard := &fakeIdempotency{state: tt.state, acquireEr: tt.acquireErr}
			d.idemp = guard
			uc := newTestUsecase(t, d)

			// Act
			err := uc.ProcessDelivery(context.Background(), ProcessDeliveryInput{NotificationID: 1})

			// Assert
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.email.sends != tt.wantSends {
				t.Fatalf("sends = %d, want %d", d.email.sends, tt.wantSends)
			}
			if len(guard.completed) != tt.wantCompleted {
				t.Fatalf("completed marks = %d, want %d", len(guard.completed), tt.wantCompleted)
			}
		})
	}
}
