package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/pkg/clock"
	"github.com/shandysiswandi/gonotify/internal/pkg/config"
	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
	"github.com/shandysiswandi/gonotify/internal/pkg/idempotency"
	"github.com/shandysiswandi/gonotify/internal/pkg/instrument"
	"github.com/shandysiswandi/gonotify/internal/pkg/validator"
)

const testConfig = `
modules:
  notification:
    worker:
      early_tolerance_seconds: 5
      status_retry_max: 2
`

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

// tickingClock advances a minute on every read.
type tickingClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *tickingClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Minute)
	return c.now
}

type seqID struct {
	mu sync.Mutex
	n  int64
}

func (s *seqID) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n
}

type fakeRepo struct {
	mu      sync.Mutex
	prefs   map[string]entity.Preference
	records map[int64]entity.Notification

	getPrefErr error
	upsertIn   *entity.PreferenceUpdate
	createErr  error
	createCall int
	getErr     error
	markErrs   []error
	markCalls  int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		prefs:   map[string]entity.Preference{},
		records: map[int64]entity.Notification{},
	}
}

func (f *fakeRepo) GetPreference(_ context.Context, userID string) (*entity.Preference, error) {
	if f.getPrefErr != nil {
		return nil, f.getPrefErr
	}
	p, ok := f.prefs[userID]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &p, nil
}

func (f *fakeRepo) UpsertPreference(_ context.Context, in entity.PreferenceUpdate) (*entity.Preference, error) {
	f.upsertIn = &in
	p, exists := f.prefs[in.UserID]
	if !exists {
		p.EmailEnabled, p.SMSEnabled = true, true
	}
	p.UserID = in.UserID
	p.EmailEnabled = lo.FromPtrOr(in.EmailEnabled, p.EmailEnabled)
	p.SMSEnabled = lo.FromPtrOr(in.SMSEnabled, p.SMSEnabled)
	if in.Email != "" {
		p.Email = in.Email
	}
	if in.PhoneNumber != "" {
		p.PhoneNumber = in.PhoneNumber
	}
	f.prefs[in.UserID] = p
	return &p, nil
}

func (f *fakeRepo) CreateNotifications(_ context.Context, items []entity.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCall++
	if f.createErr != nil {
		return f.createErr
	}
	for _, n := range items {
		f.records[n.ID] = n
	}
	return nil
}

func (f *fakeRepo) GetNotification(_ context.Context, id int64) (*entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	n, ok := f.records[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &n, nil
}

func (f *fakeRepo) ListNotifications(_ context.Context, flt entity.ListNotificationsFilter) ([]entity.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []entity.Notification
	for _, n := range f.records {
		if n.UserID == flt.UserID && (flt.Status == entity.StatusUnknown || n.Status == flt.Status) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (f *fakeRepo) mark(id int64, status entity.Status, sentAt *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markCalls++
	if len(f.markErrs) > 0 {
		err := f.markErrs[0]
		f.markErrs = f.markErrs[1:]
		if err != nil {
			return false, err
		}
	}
	n, ok := f.records[id]
	if !ok || n.Status != entity.StatusPending {
		return false, nil
	}
	n.Status = status
	n.SentAt = sentAt
	f.records[id] = n
	return true, nil
}

func (f *fakeRepo) MarkNotificationSent(_ context.Context, id int64, sentAt time.Time) (bool, error) {
	return f.mark(id, entity.StatusSent, &sentAt)
}

func (f *fakeRepo) MarkNotificationFailed(_ context.Context, id int64) (bool, error) {
	return f.mark(id, entity.StatusFailed, nil)
}

func (f *fakeRepo) record(t *testing.T, id int64) entity.Notification {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.records[id]
	if !ok {
		t.Fatalf("record %d not stored", id)
	}
	return n
}

type publishedJob struct {
	job   entity.Job
	delay time.Duration
}

type fakeJobs struct {
	mu   sync.Mutex
	jobs []publishedJob
	err  error
}

func (f *fakeJobs) PublishJob(_ context.Context, job entity.Job, delay time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, publishedJob{job: job, delay: delay})
	return nil
}

type fakeNotifier struct {
	ch       entity.Channel
	valid    bool
	sendErr  error
	panicMsg string
	sends    int
}

func (f *fakeNotifier) Channel() entity.Channel { return f.ch }
func (f *fakeNotifier) Validate(string) bool    { return f.valid }
func (f *fakeNotifier) Send(context.Context, string, string, string) error {
	f.sends++
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.sendErr
}

type fakeIdempotency struct {
	state     idempotency.State
	acquireEr error
	completed []string
	failed    []string
}

func (f *fakeIdempotency) Acquire(context.Context, string, time.Duration) (idempotency.State, error) {
	return f.state, f.acquireEr
}

func (f *fakeIdempotency) MarkCompleted(_ context.Context, key string, _ time.Duration) error {
	f.completed = append(f.completed, key)
	return nil
}

func (f *fakeIdempotency) MarkFailed(_ context.Context, key string, _ time.Duration) error {
	f.failed = append(f.failed, key)
	return nil
}

type testDeps struct {
	repo  *fakeRepo
	jobs  *fakeJobs
	email *fakeNotifier
	sms   *fakeNotifier
	idemp idempotency.Idempotency
	clock clock.Clocker
}

func newTestDeps() *testDeps {
	return &testDeps{
		repo:  newFakeRepo(),
		jobs:  &fakeJobs{},
		email: &fakeNotifier{ch: entity.ChannelEmail, valid: true},
		sms:   &fakeNotifier{ch: entity.ChannelSMS, valid: true},
		clock: fixedClock{now: testNow},
	}
}

func newTestUsecase(t *testing.T, d *testDeps) *Usecase {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	return NewNotification(Dependency{
		RepoDB:      d.repo,
		RepoJob:     d.jobs,
		Notifiers:   []Notifier{d.email, d.sms},
		Idempotency: d.idemp,
		Config:      cfg,
		UID:         &seqID{},
		Clock:       d.clock,
		Validator:   v,
		Instrument:  instrument.NewNoop(),
	})
}

func assertErrCode(t *testing.T, err error, code goerror.Code) {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected goerror, got %v", err)
	}
	if gerr.Code() != code {
		t.Fatalf("error code = %s, want %s", gerr.Code(), code)
	}
}
