package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/jupark12/go-print-relay/models"
	"go.uber.org/zap"
)

const (
	defaultLPPath = "lp"
	defaultTitle  = "Print Job"

	// IPP orientation-requested values
	orientationPortrait  = "3"
	orientationLandscape = "4"
)

var requestIDPattern = regexp.MustCompile(`request id is (\S+)`)

// ErrNoJobID is returned when lp succeeds but prints no request id
var ErrNoJobID = errors.New("lp did not report a request id")

// LPConfig configures the CUPS lp printer
type LPConfig struct {
	// BinaryPath is the lp executable; searched in PATH when relative
	BinaryPath string
	// Destination is the CUPS queue name; empty uses the system default
	Destination string
	Title       string
	Logger      *zap.Logger
}

// LPPrinter prints through the CUPS lp command
type LPPrinter struct {
	binary      string
	destination string
	title       string
	logger      *zap.Logger
}

// NewLPPrinter resolves the lp binary and returns a printer for it
func NewLPPrinter(cfg LPConfig) (*LPPrinter, error) {
	if cfg.BinaryPath == "" {
		cfg.BinaryPath = defaultLPPath
	}
	if cfg.Title == "" {
		cfg.Title = defaultTitle
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	binary, err := resolveBinaryPath(cfg.BinaryPath)
	if err != nil {
		return nil, fmt.Errorf("lp binary not found (%s): %w", cfg.BinaryPath, err)
	}

	return &LPPrinter{
		binary:      binary,
		destination: cfg.Destination,
		title:       cfg.Title,
		logger:      cfg.Logger,
	}, nil
}

func resolveBinaryPath(path string) (string, error) {
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	return exec.LookPath(path)
}

// Print submits documentPath to CUPS and returns the request id
func (p *LPPrinter) Print(ctx context.Context, documentPath string, opts Options) (string, error) {
	args := buildArgs(p.destination, p.title, documentPath, opts)

	p.logger.Info("sending document to printer",
		zap.String("document", documentPath),
		zap.Strings("args", args))

	cmd := exec.CommandContext(ctx, p.binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", &PrintError{Output: strings.TrimSpace(stderr.String()), Err: err}
	}

	jobID, err := parseJobID(stdout.String())
	if err != nil {
		return "", &PrintError{Output: strings.TrimSpace(stdout.String()), Err: err}
	}

	p.logger.Info("print job submitted", zap.String("job_id", jobID))
	return jobID, nil
}

// buildArgs maps print options onto lp flags
func buildArgs(destination, title, documentPath string, opts Options) []string {
	args := make([]string, 0, 12)
	if destination != "" {
		args = append(args, "-d", destination)
	}
	args = append(args, "-t", title)

	copies := opts.Copies
	if copies < 1 {
		copies = 1
	}
	args = append(args, "-n", strconv.Itoa(copies))

	orientation := orientationPortrait
	if opts.Layout == models.LayoutLandscape {
		orientation = orientationLandscape
	}
	args = append(args, "-o", "orientation-requested="+orientation)

	if opts.PagesPerSheet > 1 {
		args = append(args, "-o", "number-up="+strconv.Itoa(opts.PagesPerSheet))
	}

	return append(args, "--", documentPath)
}

// parseJobID extracts the id from "request id is <id> (1 file(s))"
func parseJobID(output string) (string, error) {
	m := requestIDPattern.FindStringSubmatch(output)
	if m == nil {
		return "", ErrNoJobID
	}
	return m[1], nil
}
