package pages

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func init() {
	// pdfcpu would otherwise create a config directory under $HOME
	api.DisableConfigDir()
}

// PageCount returns the number of pages in a PDF document
func PageCount(doc []byte) (n int, err error) {
	// the reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return 0, fmt.Errorf("failed to read PDF: %w", err)
	}
	return r.NumPage(), nil
}

// Select builds a new PDF holding the pages named by spec, in spec order.
// doc is not modified. An empty spec returns a copy of doc.
func Select(doc []byte, spec string) ([]byte, error) {
	count, err := PageCount(doc)
	if err != nil {
		return nil, err
	}

	selected, err := Resolve(spec, count)
	if err != nil {
		return nil, err
	}

	if IsEmpty(spec) {
		return bytes.Clone(doc), nil
	}

	pageSelection := make([]string, len(selected))
	for i, p := range selected {
		pageSelection[i] = strconv.Itoa(p)
	}

	var out bytes.Buffer
	if err := api.Collect(bytes.NewReader(doc), &out, pageSelection, collectConfig()); err != nil {
		return nil, fmt.Errorf("failed to assemble selected pages: %w", err)
	}
	return out.Bytes(), nil
}

func collectConfig() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	// classic xref tables keep the output readable by simple PDF readers
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}
