// Package agent runs on the machine next to the printer: it polls the
// broker, prints what it receives and reports each outcome.
package agent

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/jupark12/go-print-relay/models"
	"github.com/jupark12/go-print-relay/pages"
	"github.com/jupark12/go-print-relay/printer"
	"go.uber.org/zap"
)

const (
	// DefaultPollInterval is the pause after every successful poll
	DefaultPollInterval = 10 * time.Second
	// DefaultRetryInterval is the pause after a failed poll
	DefaultRetryInterval = 10 * time.Second

	msgUnknownType  = "Unknown command type"
	msgNoPDFData    = "No PDF data in command"
	msgShuttingDown = "Agent shutting down"
)

// Broker is the device side of the broker API
type Broker interface {
	Poll(ctx context.Context, deviceID string) ([]Command, error)
	Report(ctx context.Context, r Report) error
}

// WaitFunc blocks for d or until ctx is done
type WaitFunc func(ctx context.Context, d time.Duration) error

// FatalError is returned by Run when an iteration panicked
type FatalError struct {
	Value interface{}
	Stack []byte
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("agent panic: %v", e.Value)
}

// Config holds agent settings. Zero values get defaults.
type Config struct {
	DeviceID      string
	PollInterval  time.Duration
	RetryInterval time.Duration
	WorkDir       string
	Logger        *zap.Logger
	Wait          WaitFunc
}

// Agent polls the broker and executes commands one at a time
type Agent struct {
	cfg     Config
	broker  Broker
	printer printer.Printer
	logger  *zap.Logger

	mu         sync.Mutex
	processing bool
}

// New creates an agent for cfg.DeviceID
func New(cfg Config, broker Broker, p printer.Printer) *Agent {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = DefaultRetryInterval
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Wait == nil {
		cfg.Wait = sleep
	}

	return &Agent{
		cfg:     cfg,
		broker:  broker,
		printer: p,
		logger:  cfg.Logger.With(zap.String("device_id", cfg.DeviceID)),
	}
}

// Processing reports whether a command is being executed
func (a *Agent) Processing() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.processing
}

func (a *Agent) setProcessing(v bool) {
	a.mu.Lock()
	a.processing = v
	a.mu.Unlock()
}

// Run polls until ctx is cancelled. It returns nil on cancellation and a
// *FatalError if an iteration panicked.
func (a *Agent) Run(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.WorkDir, 0o755); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	a.logger.Info("starting polling client")
	for {
		delay, err := a.iterate(ctx)
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		if err := a.cfg.Wait(ctx, delay); err != nil {
			break
		}
	}

	a.logger.Info("stopping polling client")
	return nil
}

// iterate runs one poll and executes what it returned. The result is how
// long to wait before the next poll.
func (a *Agent) iterate(ctx context.Context) (delay time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.setProcessing(false)
			err = &FatalError{Value: r, Stack: debug.Stack()}
		}
	}()

	a.logger.Debug("polling server for commands")
	cmds, err := a.broker.Poll(ctx, a.cfg.DeviceID)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil
		}
		a.logger.Error("poll failed",
			zap.Error(err),
			zap.Duration("retry_in", a.cfg.RetryInterval))
		return a.cfg.RetryInterval, nil
	}

	if len(cmds) == 0 {
		a.logger.Debug("no commands received")
	}

	for _, cmd := range cmds {
		var success bool
		var message string
		if ctx.Err() != nil {
			// already claimed; leave a final status rather than a dangling delivery
			success, message = false, msgShuttingDown
		} else {
			a.logger.Info("received command", zap.String("command_id", cmd.CommandID))
			success, message = a.Execute(ctx, cmd)
		}
		a.report(ctx, cmd.CommandID, success, message)
	}

	return a.cfg.PollInterval, nil
}

// Execute runs a single command and returns the outcome to report
func (a *Agent) Execute(ctx context.Context, cmd Command) (bool, string) {
	a.setProcessing(true)
	defer a.setProcessing(false)

	if cmd.Type != models.CommandTypePrint {
		a.logger.Warn("unknown command type",
			zap.String("command_id", cmd.CommandID),
			zap.String("type", cmd.Type))
		return false, msgUnknownType
	}

	success, message := a.handlePrint(ctx, cmd)
	if success {
		a.logger.Info("command printed", zap.String("command_id", cmd.CommandID), zap.String("message", message))
	} else {
		a.logger.Error("command failed", zap.String("command_id", cmd.CommandID), zap.String("message", message))
	}
	return success, message
}

func (a *Agent) handlePrint(ctx context.Context, cmd Command) (bool, string) {
	if cmd.PDFData == "" {
		return false, msgNoPDFData
	}

	doc, err := base64.StdEncoding.DecodeString(cmd.PDFData)
	if err != nil {
		return false, fmt.Sprintf("Error processing print command: invalid PDF data: %v", err)
	}

	opts := normalizeOptions(cmd.PrintOptions)

	processed, err := pages.Select(doc, opts.SelectedPages)
	if err != nil {
		return false, fmt.Sprintf("Error processing print command: %v", err)
	}

	path, err := a.writeTemp(cmd.CommandID, processed)
	if err != nil {
		return false, fmt.Sprintf("Error processing print command: %v", err)
	}
	defer a.remove(path)

	// an interrupted submission would leave the device in an unknown state
	printCtx := context.WithoutCancel(ctx)
	jobIDs := make([]string, 0, opts.NumCopies)
	for copyNum := 1; copyNum <= opts.NumCopies; copyNum++ {
		jobID, err := a.printer.Print(printCtx, path, printer.Options{
			Copies:        1,
			Layout:        opts.Layout,
			PagesPerSheet: opts.PagesPerSheet,
		})
		if err != nil {
			return false, fmt.Sprintf("Error while printing copy %d of %d: %v", copyNum, opts.NumCopies, err)
		}
		jobIDs = append(jobIDs, jobID)
	}

	return true, "Print job submitted with ID: " + strings.Join(jobIDs, ", ")
}

func (a *Agent) writeTemp(commandID string, data []byte) (string, error) {
	f, err := os.CreateTemp(a.cfg.WorkDir, "print_job_"+sanitize(commandID)+"_*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write temp file: %w", err)
	}
	return f.Name(), nil
}

func (a *Agent) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("failed to clean up temporary file", zap.String("path", path), zap.Error(err))
	}
}

// report errors are logged only; the broker keeps the command delivered
func (a *Agent) report(ctx context.Context, commandID string, success bool, message string) {
	err := a.broker.Report(context.WithoutCancel(ctx), Report{
		DeviceID:  a.cfg.DeviceID,
		CommandID: commandID,
		Success:   success,
		Message:   message,
	})
	if err != nil {
		a.logger.Error("failed to report command result",
			zap.String("command_id", commandID),
			zap.Error(err))
		return
	}
	a.logger.Info("reported command result",
		zap.String("command_id", commandID),
		zap.Bool("success", success))
}

func normalizeOptions(opts models.PrintOptions) models.PrintOptions {
	if opts.NumCopies < 1 {
		opts.NumCopies = 1
	}
	if opts.PagesPerSheet < 1 {
		opts.PagesPerSheet = 1
	}
	if !opts.Layout.IsValid() {
		opts.Layout = models.LayoutPortrait
	}
	return opts
}

// sanitize keeps command ids safe for use in a file name
func sanitize(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, id)
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
