package mail

import (
	"context"
	"errors"
	"net"
	"net/textproto"
	"strings"
	"testing"
	"time"
)

// fakeSMTPServer accepts one session and records the envelope and data.
type fakeSMTPServer struct {
	ln   net.Listener
	done chan struct{}

	from string
	rcpt []string
	data string
	err  error
}

func startFakeSMTP(t *testing.T) *fakeSMTPServer {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &fakeSMTPServer{ln: ln, done: make(chan struct{})}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *fakeSMTPServer) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTPServer) serve() {
	defer close(s.done)

	conn, err := s.ln.Accept()
	if err != nil {
		s.err = err
		return
	}
	defer conn.Close()

	tp := textproto.NewConn(conn)
	reply := func(line string) { _ = tp.PrintfLine("%s", line) }

	reply("220 localhost ESMTP")
	for {
		line, err := tp.ReadLine()
		if err != nil {
			s.err = err
			return
		}
		verb := strings.ToUpper(strings.SplitN(line, " ", 2)[0])
		switch {
		case verb == "EHLO" || verb == "HELO":
			reply("250 localhost")
		case strings.HasPrefix(strings.ToUpper(line), "MAIL FROM:"):
			s.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
			reply("250 OK")
		case strings.HasPrefix(strings.ToUpper(line), "RCPT TO:"):
			s.rcpt = append(s.rcpt, strings.Trim(line[len("RCPT TO:"):], "<> "))
			reply("250 OK")
		case verb == "DATA":
			reply("354 go ahead")
			body, err := tp.ReadDotBytes()
			if err != nil {
				s.err = err
				return
			}
			s.data = string(body)
			reply("250 queued")
		case verb == "QUIT":
			reply("221 bye")
			return
		default:
			reply("502 not implemented")
		}
	}
}

func TestSMTP_Send(t *testing.T) {
	t.Run("delivers through the conversation", func(t *testing.T) {
		// Arrange
		srv := startFakeSMTP(t)
		s, err := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: srv.port(), From: "noreply@example.com"})
		if err != nil {
			t.Fatalf("NewSMTP() error = %v", err)
		}

		// Act
		err = s.Send(context.Background(), Message{
			To:      []string{"a@b.com"},
			Subject: "Héllo",
			Body:    "line one\nline two",
		})
		<-srv.done

		// Assert
		if err != nil {
			t.Fatalf("Send() error = %v", err)
		}
		if srv.err != nil {
			t.Fatalf("server error = %v", srv.err)
		}
		if srv.from != "noreply@example.com" {
			t.Fatalf("MAIL FROM = %q", srv.from)
		}
		if len(srv.rcpt) != 1 || srv.rcpt[0] != "a@b.com" {
			t.Fatalf("RCPT TO = %v", srv.rcpt)
		}
		if !strings.Contains(srv.data, "Subject: =?utf-8?q?H=C3=A9llo?=") {
			t.Fatalf("subject not encoded: %q", srv.data)
		}
		if !strings.Contains(srv.data, "line one\nline two") {
			t.Fatalf("body missing: %q", srv.data)
		}
	})

	t.Run("requires a sender", func(t *testing.T) {
		s, _ := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: 25})

		err := s.Send(context.Background(), Message{To: []string{"a@b.com"}})

		if !errors.Is(err, ErrNoSender) {
			t.Fatalf("expected ErrNoSender, got %v", err)
		}
	})

	t.Run("requires recipients", func(t *testing.T) {
		s, _ := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: 25, From: "x@y.com"})

		err := s.Send(context.Background(), Message{})

		if !errors.Is(err, ErrNoRecipients) {
			t.Fatalf("expected ErrNoRecipients, got %v", err)
		}
	})

	t.Run("honors a canceled context when dialing", func(t *testing.T) {
		// Arrange
		s, _ := NewSMTP(SMTPConfig{Host: "127.0.0.1", Port: 25, From: "x@y.com", Timeout: time.Second})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		// Act
		err := s.Send(ctx, Message{To: []string{"a@b.com"}})

		// Assert
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	})
}

func TestNewSMTP_RequiresAddress(t *testing.T) {
	if _, err := NewSMTP(SMTPConfig{Host: "smtp.example.com"}); !errors.Is(err, ErrSMTPAddressRequired) {
		t.Fatalf("expected ErrSMTPAddressRequired, got %v", err)
	}
}
