package access

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boxbuddy/boxbuddy-core/internal/audit"
	"github.com/boxbuddy/boxbuddy-core/internal/clock"
)

// Logger defines the logging interface used by the Ledger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// DeviceInfo is the device detail the ledger needs for issuance checks
// and delivery notifications.
type DeviceInfo struct {
	ID   string
	Name string
}

// DeviceDirectory is the ledger's view of the device registry. The
// registry is adapted to this interface where the ledger is wired up,
// keeping the packages decoupled.
type DeviceDirectory interface {
	// Info returns identifying details for a device, or an error
	// satisfying errors.Is(err, device.ErrDeviceNotFound) semantics
	// from the underlying registry.
	Info(ctx context.Context, id string) (DeviceInfo, error)

	// SetLocked sets a device's lock state unconditionally.
	SetLocked(ctx context.Context, id string, locked bool) error
}

// Auditor records entries in the activity trail. Satisfied by *audit.Recorder.
type Auditor interface {
	Record(ctx context.Context, kind audit.Kind, deviceID, actor, text string) (audit.Entry, error)
}

// Notifier delivers user-facing notifications.
type Notifier interface {
	Send(title, body string)
}

// Broadcaster pushes code lifecycle events to connected clients.
type Broadcaster interface {
	CodeIssued(c Code)
	CodeRedeemed(c Code)
	DeliveryCompleted(c Code)
}

type noopAuditor struct{}

func (noopAuditor) Record(context.Context, audit.Kind, string, string, string) (audit.Entry, error) {
	return audit.Entry{}, nil
}

type noopNotifier struct{}

func (noopNotifier) Send(string, string) {}

type noopBroadcaster struct{}

func (noopBroadcaster) CodeIssued(Code)        {}
func (noopBroadcaster) CodeRedeemed(Code)      {}
func (noopBroadcaster) DeliveryCompleted(Code) {}

// Ledger owns every issued access code and drives the code lifecycle:
// issue, redeem with deferred re-lock, expiry sweep, partition.
//
// Codes are held newest-first in memory with write-through persistence,
// mirroring the device registry's ownership model. One mutex serialises
// all mutations so lifecycle checks and the writes they guard are atomic.
//
// The deferred re-lock after a redemption is a cancellable one-shot timer
// keyed by code ID. Deleting a device cancels its pending re-locks.
type Ledger struct {
	repo        Repository
	clk         clock.Clock
	devices     DeviceDirectory
	relockDelay time.Duration

	mu      sync.Mutex
	codes   []*Code // newest first
	byID    map[string]*Code
	relocks map[string]clock.Timer // pending re-locks by code ID

	logger    Logger
	auditor   Auditor
	notifier  Notifier
	broadcast Broadcaster
}

// NewLedger creates an access code ledger.
// relockDelay is the grace window between a code-driven unlock and the
// automatic re-lock.
func NewLedger(repo Repository, clk clock.Clock, devices DeviceDirectory, relockDelay time.Duration) *Ledger {
	return &Ledger{
		repo:        repo,
		clk:         clk,
		devices:     devices,
		relockDelay: relockDelay,
		byID:        make(map[string]*Code),
		relocks:     make(map[string]clock.Timer),
		logger:      noopLogger{},
		auditor:     noopAuditor{},
		notifier:    noopNotifier{},
		broadcast:   noopBroadcaster{},
	}
}

// SetLogger sets the logger for the ledger.
func (l *Ledger) SetLogger(logger Logger) {
	l.logger = logger
}

// SetAuditor sets the audit trail recorder.
func (l *Ledger) SetAuditor(a Auditor) {
	l.auditor = a
}

// SetNotifier sets the notification sink.
func (l *Ledger) SetNotifier(n Notifier) {
	l.notifier = n
}

// SetBroadcaster sets the code event broadcaster.
func (l *Ledger) SetBroadcaster(b Broadcaster) {
	l.broadcast = b
}

// Load populates the ledger from the repository.
// This should be called once on application startup. Pending re-locks do
// not survive a restart: a redeemed code is already used, and the box
// re-secures on the next manual lock or telemetry-driven safety lock.
func (l *Ledger) Load(ctx context.Context) error {
	codes, err := l.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading access codes: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.codes = make([]*Code, 0, len(codes))
	l.byID = make(map[string]*Code, len(codes))
	for i := range codes {
		c := codes[i].DeepCopy()
		l.codes = append(l.codes, c)
		l.byID[c.ID] = c
	}

	l.logger.Info("access ledger loaded", "count", len(codes))
	return nil
}

// Issue creates a fresh access code for a device, valid for ttlHours from
// now, and inserts it at the head of the ledger.
func (l *Ledger) Issue(ctx context.Context, deviceID string, ttlHours int, note, issuer string) (*Code, error) {
	if ttlHours <= 0 {
		return nil, ErrInvalidTTL
	}
	if _, err := l.devices.Info(ctx, deviceID); err != nil {
		return nil, fmt.Errorf("issuing code: %w", err)
	}

	token, err := NewToken()
	if err != nil {
		return nil, err
	}

	now := l.clk.Now().UTC()
	c := &Code{
		ID:        "code-" + uuid.NewString()[:8],
		DeviceID:  deviceID,
		Code:      token,
		Note:      note,
		CreatedBy: issuer,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Duration(ttlHours) * time.Hour),
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	l.codes = append([]*Code{c}, l.codes...)
	l.byID[c.ID] = c

	l.recordAudit(ctx, audit.KindCode, deviceID, issuer,
		fmt.Sprintf("Access code created (%s) • Expires in %dh", token, ttlHours))
	l.notifier.Send("Delivery code created", token)
	l.broadcast.CodeIssued(*c.DeepCopy())

	l.logger.Info("access code issued", "id", c.ID, "device_id", deviceID, "ttl_hours", ttlHours)
	return c.DeepCopy(), nil
}

// Redeem marks a code used and unlocks its device for the re-lock grace
// window. It reports whether the code was redeemed: a missing, used or
// expired code is a silent no-op, not an error.
//
// The redemption has two observable transitions separated in time. The
// unlock and the used_at stamp are synchronous. After the grace window the
// box re-locks, and only then are the delivery audit entry and
// notification emitted, strictly in that order.
func (l *Ledger) Redeem(ctx context.Context, codeID string) (bool, error) {
	l.mu.Lock()

	c, ok := l.byID[codeID]
	if !ok || !c.Active() {
		l.mu.Unlock()
		return false, nil
	}

	now := l.clk.Now().UTC()
	c.UsedAt = &now

	if err := l.repo.Update(ctx, c); err != nil {
		c.UsedAt = nil
		l.mu.Unlock()
		return false, err
	}

	redeemed := c.DeepCopy()
	l.relocks[c.ID] = l.clk.AfterFunc(l.relockDelay, func() {
		l.completeDelivery(codeID)
	})
	l.mu.Unlock()

	if err := l.devices.SetLocked(ctx, redeemed.DeviceID, false); err != nil {
		l.logger.Warn("unlocking device for redemption", "device_id", redeemed.DeviceID, "error", err)
	}
	l.broadcast.CodeRedeemed(*redeemed)

	l.logger.Info("access code redeemed", "id", codeID, "device_id", redeemed.DeviceID)
	return true, nil
}

// completeDelivery fires when a redeemed code's grace window closes:
// re-lock the box, then log the delivery, then notify. Runs on the
// clock's timer goroutine with a background context.
func (l *Ledger) completeDelivery(codeID string) {
	ctx := context.Background()

	l.mu.Lock()
	delete(l.relocks, codeID)
	c, ok := l.byID[codeID]
	if !ok {
		// Device deleted between redemption and re-lock.
		l.mu.Unlock()
		return
	}
	cpy := c.DeepCopy()
	l.mu.Unlock()

	// Last-writer-wins: the box re-locks even if its state changed during
	// the grace window. A deleted device must not be resurrected.
	if err := l.devices.SetLocked(ctx, cpy.DeviceID, true); err != nil {
		l.logger.Warn("re-locking device after delivery", "device_id", cpy.DeviceID, "error", err)
		return
	}

	l.recordAudit(ctx, audit.KindDelivery, cpy.DeviceID, "",
		fmt.Sprintf("Delivery completed with code %s • Photo saved", cpy.Code))

	deviceName := cpy.DeviceID
	if info, err := l.devices.Info(ctx, cpy.DeviceID); err == nil {
		deviceName = info.Name
	}
	l.notifier.Send("Delivery complete", deviceName)
	l.broadcast.DeliveryCompleted(*cpy)

	l.logger.Info("delivery completed", "code_id", codeID, "device_id", cpy.DeviceID)
}

// Sweep marks every active code whose expiry has passed as expired.
// Used and already-expired codes are never touched, so the sweep is
// idempotent: re-running with the same or a later now is a no-op for
// codes it already marked.
func (l *Ledger) Sweep(ctx context.Context, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.codes {
		if !c.Active() || !now.After(c.ExpiresAt) {
			continue
		}

		c.Expired = true
		if err := l.repo.Update(ctx, c); err != nil {
			c.Expired = false
			l.logger.Error("persisting code expiry", "id", c.ID, "error", err)
			continue
		}

		l.logger.Debug("access code expired", "id", c.ID, "device_id", c.DeviceID)
	}
}

// Partition splits a device's codes into active and completed
// (used or expired), both preserving newest-first ledger order.
func (l *Ledger) Partition(deviceID string) (active, completed []Code) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, c := range l.codes {
		if c.DeviceID != deviceID {
			continue
		}
		if c.Active() {
			active = append(active, *c.DeepCopy())
		} else {
			completed = append(completed, *c.DeepCopy())
		}
	}
	return active, completed
}

// Get returns a code by ID.
// Returns ErrCodeNotFound if the ID does not exist.
func (l *Ledger) Get(codeID string) (*Code, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.byID[codeID]
	if !ok {
		return nil, ErrCodeNotFound
	}
	return c.DeepCopy(), nil
}

// CancelDevice drops a deleted device's codes from the ledger and cancels
// any pending re-locks so they cannot fire against the dead device.
// Persistence cleanup cascades through the schema.
func (l *Ledger) CancelDevice(deviceID string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.codes[:0]
	for _, c := range l.codes {
		if c.DeviceID != deviceID {
			kept = append(kept, c)
			continue
		}
		if timer, ok := l.relocks[c.ID]; ok {
			timer.Stop()
			delete(l.relocks, c.ID)
		}
		delete(l.byID, c.ID)
	}
	l.codes = kept

	l.logger.Info("device codes cancelled", "device_id", deviceID)
}

// Close cancels all pending re-lock timers. Called on shutdown.
func (l *Ledger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for id, timer := range l.relocks {
		timer.Stop()
		delete(l.relocks, id)
	}
}

// PendingRelocks reports how many deferred re-locks are scheduled.
func (l *Ledger) PendingRelocks() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.relocks)
}

func (l *Ledger) recordAudit(ctx context.Context, kind audit.Kind, deviceID, actor, text string) {
	if _, err := l.auditor.Record(ctx, kind, deviceID, actor, text); err != nil {
		l.logger.Error("recording audit entry", "device_id", deviceID, "error", err)
	}
}
