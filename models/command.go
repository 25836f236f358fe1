package models

import (
	"errors"
	"fmt"
	"time"
)

// CommandStatus represents the current state of a command in the system
type CommandStatus string

const (
	StatusPending   CommandStatus = "pending"
	StatusDelivered CommandStatus = "delivered"
	StatusCompleted CommandStatus = "completed"
	StatusFailed    CommandStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed
func (s CommandStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether moving from s to next keeps the lifecycle monotone
func (s CommandStatus) CanTransitionTo(next CommandStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusDelivered
	case StatusDelivered:
		return next == StatusCompleted || next == StatusFailed
	}
	return false
}

// CommandTypePrint is the only command type the broker produces
const CommandTypePrint = "print"

// Unassigned marks a command that has not been claimed by any device yet
const Unassigned = "unassigned"

// Layout is the page orientation requested for a print
type Layout string

const (
	LayoutPortrait  Layout = "portrait"
	LayoutLandscape Layout = "landscape"
)

// IsValid checks if the layout is a known value
func (l Layout) IsValid() bool {
	return l == LayoutPortrait || l == LayoutLandscape
}

// ErrInvalidOptions is returned when print options are out of bounds
var ErrInvalidOptions = errors.New("invalid print options")

// PrintOptions are the user choices attached to a print command
type PrintOptions struct {
	SelectedPages string `json:"selected_pages"`
	NumCopies     int    `json:"num_copies"`
	Layout        Layout `json:"layout"`
	PagesPerSheet int    `json:"pages_per_sheet"`
}

// DefaultPrintOptions returns the options used when the form leaves fields blank
func DefaultPrintOptions() PrintOptions {
	return PrintOptions{
		NumCopies:     1,
		Layout:        LayoutPortrait,
		PagesPerSheet: 1,
	}
}

// Validate checks copies, pages per sheet and layout
func (o PrintOptions) Validate() error {
	if o.NumCopies < 1 {
		return fmt.Errorf("%w: num_copies must be at least 1", ErrInvalidOptions)
	}
	if o.PagesPerSheet < 1 {
		return fmt.Errorf("%w: pages_per_sheet must be at least 1", ErrInvalidOptions)
	}
	if !o.Layout.IsValid() {
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidOptions, o.Layout)
	}
	return nil
}

// Command represents a unit of print work routed to a device
type Command struct {
	ID             string
	Type           string
	Payload        []byte
	FileName       string
	Options        PrintOptions
	Status         CommandStatus
	AssignedDevice string
	Message        string
	CreatedAt      time.Time
	DeliveredAt    time.Time
	CompletedAt    time.Time
}

// Clone returns a copy that shares the read-only payload
func (c *Command) Clone() *Command {
	cp := *c
	return &cp
}

// WireCommand is the JSON shape handed to agents on poll.
// PDFData is base64 encoded by encoding/json.
type WireCommand struct {
	CommandID    string        `json:"command_id"`
	Type         string        `json:"type"`
	PDFData      []byte        `json:"pdf_data"`
	PrintOptions PrintOptions  `json:"print_options"`
	Timestamp    time.Time     `json:"timestamp"`
	Status       CommandStatus `json:"status"`
}

// Wire converts the command to its poll response shape
func (c *Command) Wire() WireCommand {
	return WireCommand{
		CommandID:    c.ID,
		Type:         c.Type,
		PDFData:      c.Payload,
		PrintOptions: c.Options,
		Timestamp:    c.CreatedAt,
		Status:       c.Status,
	}
}

// CommandRecord is the status view of a command, without the document
type CommandRecord struct {
	ID          string        `json:"id"`
	DeviceID    string        `json:"device_id"`
	Timestamp   time.Time     `json:"timestamp"`
	Status      CommandStatus `json:"status"`
	File        string        `json:"file"`
	Message     string        `json:"message,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
}

// Record builds the status record for c
func (c *Command) Record() CommandRecord {
	rec := CommandRecord{
		ID:        c.ID,
		DeviceID:  c.AssignedDevice,
		Timestamp: c.CreatedAt,
		Status:    c.Status,
		File:      c.FileName,
		Message:   c.Message,
	}
	if !c.CompletedAt.IsZero() {
		completed := c.CompletedAt
		rec.CompletedAt = &completed
	}
	return rec
}
