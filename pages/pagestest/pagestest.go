// Package pagestest builds small PDF documents for tests.
package pagestest

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// BaseWidth is the MediaBox width of page 1. Page N is BaseWidth+N-1 wide,
// which lets tests tell pages apart after they have been reordered.
const BaseWidth = 100

// NewPDF returns a valid PDF with n empty pages.
func NewPDF(n int) []byte {
	var buf bytes.Buffer
	offsets := make([]int, 0, n+2)

	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	buf.WriteString("%PDF-1.4\n")

	kids := make([]byte, 0, n*8)
	for i := 0; i < n; i++ {
		kids = fmt.Appendf(kids, "%d 0 R ", i+3)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", bytes.TrimSpace(kids), n))
	for i := 0; i < n; i++ {
		writeObj(fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 200] /Resources << >> >>",
			BaseWidth+i,
		))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	return buf.Bytes()
}

// PageOrder reads doc and maps every page back to the page number it had in
// a document produced by NewPDF.
func PageOrder(doc []byte) ([]int, error) {
	r, err := pdf.NewReader(bytes.NewReader(doc), int64(len(doc)))
	if err != nil {
		return nil, err
	}

	order := make([]int, 0, r.NumPage())
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			return nil, fmt.Errorf("page %d missing", i)
		}
		node := p.V
		for node.Key("MediaBox").IsNull() && !node.Key("Parent").IsNull() {
			node = node.Key("Parent")
		}
		width := node.Key("MediaBox").Index(2).Float64()
		order = append(order, int(width)-BaseWidth+1)
	}
	return order, nil
}
