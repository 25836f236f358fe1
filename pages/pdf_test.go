package pages

import (
	"bytes"
	"testing"

	"github.com/jupark12/go-print-relay/pages/pagestest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageCount(t *testing.T) {
	n, err := PageCount(pagestest.NewPDF(5))
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	_, err = PageCount([]byte("not a pdf"))
	assert.Error(t, err)

	_, err = PageCount(nil)
	assert.Error(t, err)
}

func TestSelect(t *testing.T) {
	tests := []struct {
		name string
		spec string
		want []int
	}{
		{name: "example scenario", spec: "1,3-4", want: []int{1, 3, 4}},
		{name: "reversed singles", spec: "5,4,1", want: []int{5, 4, 1}},
		{name: "duplicate pages", spec: "2,2", want: []int{2, 2}},
		{name: "empty spec", spec: "", want: []int{1, 2, 3, 4, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := pagestest.NewPDF(5)
			original := bytes.Clone(doc)

			out, err := Select(doc, tt.spec)
			require.NoError(t, err)

			order, err := pagestest.PageOrder(out)
			require.NoError(t, err)
			assert.Equal(t, tt.want, order)
			assert.Equal(t, original, doc, "source document must not change")
		})
	}
}

func TestSelect_Errors(t *testing.T) {
	doc := pagestest.NewPDF(3)

	_, err := Select(doc, "1,4")
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	_, err = Select(doc, "one")
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = Select([]byte("garbage"), "1")
	assert.Error(t, err)
}
