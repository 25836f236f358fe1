package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jupark12/go-print-relay/models"
	"go.uber.org/zap"
)

var (
	// ErrCommandNotFound is returned when a command id is unknown
	ErrCommandNotFound = errors.New("command not found")
	// ErrInvalidTransition is returned when a status change would break monotonicity
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrDeviceIDRequired is returned when a poll carries no device id
	ErrDeviceIDRequired = errors.New("device id required")
	// ErrReservedDeviceID is returned when a device claims the unassigned sentinel
	ErrReservedDeviceID = errors.New("device id is reserved")
)

// Clock returns the current time
type Clock func() time.Time

// Journal receives a status record after every state change.
// Errors are logged and never fail the operation.
type Journal interface {
	Record(ctx context.Context, rec models.CommandRecord) error
}

// Config holds CommandQueue settings. Zero values get defaults.
type Config struct {
	ActivityWindow time.Duration
	Clock          Clock
	Journal        Journal
	Logger         *zap.Logger
}

// CommandQueue owns every command, the per-device queues and the unassigned
// bucket. A single lock serializes all mutations, so a drain is atomic with
// respect to other polls and submissions.
type CommandQueue struct {
	mu         sync.RWMutex
	commands   map[string]*models.Command
	history    []*models.Command
	queues     map[string][]*models.Command
	unassigned []*models.Command
	devices    *DeviceRegistry

	window        time.Duration
	clock         Clock
	journal       Journal
	logger        *zap.Logger
	commandUpdate chan models.CommandRecord
}

// NewCommandQueue creates a new instance of CommandQueue
func NewCommandQueue(cfg Config) *CommandQueue {
	if cfg.ActivityWindow <= 0 {
		cfg.ActivityWindow = models.DefaultActivityWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &CommandQueue{
		commands:      make(map[string]*models.Command),
		history:       make([]*models.Command, 0),
		queues:        make(map[string][]*models.Command),
		devices:       NewDeviceRegistry(),
		window:        cfg.ActivityWindow,
		clock:         cfg.Clock,
		journal:       cfg.Journal,
		logger:        cfg.Logger,
		commandUpdate: make(chan models.CommandRecord, 100),
	}
}

// Submit creates a pending print command and routes it to the most recently
// seen device, or to the unassigned bucket when no device has polled yet.
func (q *CommandQueue) Submit(ctx context.Context, payload []byte, fileName string, opts models.PrintOptions) (*models.Command, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	q.mu.Lock()
	cmd := &models.Command{
		ID:        uuid.New().String(),
		Type:      models.CommandTypePrint,
		Payload:   payload,
		FileName:  fileName,
		Options:   opts,
		Status:    models.StatusPending,
		CreatedAt: q.clock(),
	}

	if target, ok := q.devices.MostRecent(); ok {
		cmd.AssignedDevice = target
		q.queues[target] = append(q.queues[target], cmd)
	} else {
		cmd.AssignedDevice = models.Unassigned
		q.unassigned = append(q.unassigned, cmd)
	}

	q.commands[cmd.ID] = cmd
	q.history = append(q.history, cmd)
	rec := cmd.Record()
	q.notify(rec)
	snapshot := cmd.Clone()
	q.mu.Unlock()

	q.logger.Info("command submitted",
		zap.String("command_id", cmd.ID),
		zap.String("device_id", snapshot.AssignedDevice),
		zap.String("file", fileName))
	q.record(ctx, rec)

	return snapshot, nil
}

// Poll marks deviceID as seen and drains its queue followed by the
// unassigned bucket. Returned commands are delivered and never handed out again.
func (q *CommandQueue) Poll(ctx context.Context, deviceID string) ([]*models.Command, error) {
	if deviceID == "" {
		return nil, ErrDeviceIDRequired
	}
	if deviceID == models.Unassigned {
		return nil, fmt.Errorf("%w: %q", ErrReservedDeviceID, deviceID)
	}

	q.mu.Lock()
	now := q.clock()
	q.devices.Touch(deviceID, now)

	drained := q.queues[deviceID]
	delete(q.queues, deviceID)

	if len(q.unassigned) > 0 {
		for _, cmd := range q.unassigned {
			cmd.AssignedDevice = deviceID
		}
		drained = append(drained, q.unassigned...)
		q.unassigned = nil
	}

	out := make([]*models.Command, 0, len(drained))
	records := make([]models.CommandRecord, 0, len(drained))
	for _, cmd := range drained {
		cmd.Status = models.StatusDelivered
		cmd.DeliveredAt = now
		rec := cmd.Record()
		q.notify(rec)
		records = append(records, rec)
		out = append(out, cmd.Clone())
	}
	q.mu.Unlock()

	q.logger.Info("device checked in",
		zap.String("device_id", deviceID),
		zap.Int("commands", len(out)))
	for _, rec := range records {
		q.record(ctx, rec)
	}

	return out, nil
}

// Report records the outcome of a delivered command. Unknown ids return
// ErrCommandNotFound; pending or finished commands return ErrInvalidTransition
// and are left untouched.
func (q *CommandQueue) Report(ctx context.Context, commandID, deviceID string, success bool, message string) (*models.Command, error) {
	next := models.StatusFailed
	if success {
		next = models.StatusCompleted
	}

	q.mu.Lock()
	cmd, ok := q.commands[commandID]
	if !ok {
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, commandID)
	}
	if !cmd.Status.CanTransitionTo(next) {
		current := cmd.Status
		q.mu.Unlock()
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, next)
	}

	if deviceID != cmd.AssignedDevice {
		q.logger.Warn("report from unexpected device",
			zap.String("command_id", commandID),
			zap.String("device_id", deviceID),
			zap.String("assigned_device", cmd.AssignedDevice))
	}

	cmd.Status = next
	cmd.Message = message
	cmd.CompletedAt = q.clock()
	rec := cmd.Record()
	q.notify(rec)
	snapshot := cmd.Clone()
	q.mu.Unlock()

	q.logger.Info("command reported",
		zap.String("command_id", commandID),
		zap.String("status", string(next)))
	q.record(ctx, rec)

	return snapshot, nil
}

// Get retrieves a command by ID
func (q *CommandQueue) Get(commandID string) (*models.Command, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	cmd, ok := q.commands[commandID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommandNotFound, commandID)
	}
	return cmd.Clone(), nil
}

// ListCommands returns status records for every command, oldest first
func (q *CommandQueue) ListCommands() []models.CommandRecord {
	q.mu.RLock()
	defer q.mu.RUnlock()

	records := make([]models.CommandRecord, 0, len(q.history))
	for _, cmd := range q.history {
		records = append(records, cmd.Record())
	}
	return records
}

// ListDevices returns every known device with its activity flag
func (q *CommandQueue) ListDevices() map[string]models.DeviceStatus {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.devices.Snapshot(q.clock(), q.window)
}

// DeviceCount returns the number of devices that ever polled
func (q *CommandQueue) DeviceCount() int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	return q.devices.Len()
}

// PendingCounts returns the number of undelivered commands per queue.
// The unassigned bucket is reported under models.Unassigned.
func (q *CommandQueue) PendingCounts() map[string]int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	counts := make(map[string]int, len(q.queues)+1)
	for id, cmds := range q.queues {
		counts[id] = len(cmds)
	}
	counts[models.Unassigned] = len(q.unassigned)
	return counts
}

// Updates returns the command update channel
func (q *CommandQueue) Updates() <-chan models.CommandRecord {
	return q.commandUpdate
}

// notify must be called with q.mu held. Updates are dropped when nobody reads.
func (q *CommandQueue) notify(rec models.CommandRecord) {
	select {
	case q.commandUpdate <- rec:
	default:
		q.logger.Debug("command update dropped", zap.String("command_id", rec.ID))
	}
}

func (q *CommandQueue) record(ctx context.Context, rec models.CommandRecord) {
	if q.journal == nil {
		return
	}
	if err := q.journal.Record(ctx, rec); err != nil {
		q.logger.Error("failed to journal command",
			zap.String("command_id", rec.ID),
			zap.Error(err))
	}
}
