// Package printer submits documents to the locally attached print device.
package printer

import (
	"context"
	"fmt"

	"github.com/jupark12/go-print-relay/models"
)

// Options are the per-submission settings handed to the device
type Options struct {
	Copies        int
	Layout        models.Layout
	PagesPerSheet int
}

// Printer submits one document and returns the device's job id
type Printer interface {
	Print(ctx context.Context, documentPath string, opts Options) (string, error)
}

// PrintError wraps a failed submission with the device output
type PrintError struct {
	Output string
	Err    error
}

func (e *PrintError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("print failed: %v", e.Err)
	}
	return fmt.Sprintf("print failed: %v: %s", e.Err, e.Output)
}

func (e *PrintError) Unwrap() error {
	return e.Err
}
