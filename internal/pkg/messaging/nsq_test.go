package messaging

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDeferTooLong = errors.New("E_INVALID DPUB timeout out of range")

// boundedProducer rejects deferred publishes above limit like nsqd does.
type boundedProducer struct {
	limit    time.Duration
	deferred []time.Duration
	direct   int
}

func (p *boundedProducer) Publish(string, []byte) error {
	p.direct++
	return nil
}

func (p *boundedProducer) DeferredPublish(_ string, delay time.Duration, _ []byte) error {
	if delay > p.limit {
		return errDeferTooLong
	}
	p.deferred = append(p.deferred, delay)
	return nil
}

func (*boundedProducer) Stop() {}

func TestNSQ_Publish_Delay(t *testing.T) {
	tests := []struct {
		name       string
		maxDefer   time.Duration
		delay      time.Duration
		wantDefer  time.Duration
		wantDirect int
		wantErr    error
	}{
		{name: "short delay is passed through", maxDefer: time.Hour, delay: 10 * time.Minute, wantDefer: 10 * time.Minute},
		{name: "long delay is capped", maxDefer: time.Hour, delay: 3 * time.Hour, wantDefer: time.Hour},
		{name: "no delay publishes directly", maxDefer: time.Hour, wantDirect: 1},
		{name: "cap above the broker limit is rejected", maxDefer: 2 * time.Hour, delay: 3 * time.Hour, wantErr: errDeferTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			p := &boundedProducer{limit: time.Hour}
			n := &NSQ{producer: p, maxDefer: tt.maxDefer}

			// Act
			_, err := n.Publish(context.Background(), "notification.dispatch.email", OutgoingMessage{
				Body:  []byte(`{"notification_id":1}`),
				Delay: tt.delay,
			})

			// Assert
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Publish() error = %v", err)
			}
			if p.direct != tt.wantDirect {
				t.Fatalf("direct publishes = %d, want %d", p.direct, tt.wantDirect)
			}
			if tt.wantDefer > 0 && (len(p.deferred) != 1 || p.deferred[0] != tt.wantDefer) {
				t.Fatalf("deferred = %v, want [%v]", p.deferred, tt.wantDefer)
			}
		})
	}
}

func TestNewNSQ_DefaultMaxDefer(t *testing.T) {
	n, err := NewNSQ(NSQConfig{})
	if err != nil {
		t.Fatalf("NewNSQ() error = %v", err)
	}

	if n.maxDefer != defaultNSQMaxDefer {
		t.Fatalf("maxDefer = %v, want %v", n.maxDefer, defaultNSQMaxDefer)
	}
}
