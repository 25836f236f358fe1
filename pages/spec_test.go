package pages

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		want    []Range
		wantErr error
	}{
		{name: "empty", spec: "", want: nil},
		{name: "whitespace", spec: "   ", want: nil},
		{name: "single page", spec: "3", want: []Range{{3, 3}}},
		{name: "range", spec: "2-5", want: []Range{{2, 5}}},
		{name: "mixed keeps order", spec: "4,1-2,4", want: []Range{{4, 4}, {1, 2}, {4, 4}}},
		{name: "spaces around terms", spec: " 1 , 2 - 4 ", want: []Range{{1, 1}, {2, 4}}},
		{name: "one page range", spec: "3-3", want: []Range{{3, 3}}},
		{name: "letters", spec: "a", wantErr: ErrInvalidSpec},
		{name: "open range", spec: "3-", wantErr: ErrInvalidSpec},
		{name: "leading dash", spec: "-3", wantErr: ErrInvalidSpec},
		{name: "zero", spec: "0", wantErr: ErrInvalidSpec},
		{name: "descending", spec: "4-2", wantErr: ErrInvalidSpec},
		{name: "trailing comma", spec: "1,", wantErr: ErrInvalidSpec},
		{name: "double dash", spec: "1-2-3", wantErr: ErrInvalidSpec},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpec(tt.spec)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		spec      string
		pageCount int
		want      []int
		wantErr   error
	}{
		{name: "example scenario", spec: "1,3-4", pageCount: 5, want: []int{1, 3, 4}},
		{name: "empty is whole document", spec: "", pageCount: 4, want: []int{1, 2, 3, 4}},
		{name: "duplicates kept", spec: "2,2,1-2", pageCount: 3, want: []int{2, 2, 1, 2}},
		{name: "not sorted", spec: "5,1", pageCount: 5, want: []int{5, 1}},
		{name: "last page", spec: "5", pageCount: 5, want: []int{5}},
		{name: "single past end", spec: "6", pageCount: 5, wantErr: ErrPageOutOfRange},
		{name: "range past end", spec: "1,4-9", pageCount: 5, wantErr: ErrPageOutOfRange},
		{name: "bad syntax", spec: "x", pageCount: 5, wantErr: ErrInvalidSpec},
		{name: "huge range rejected before expansion", spec: "1-1000000000", pageCount: 2, wantErr: ErrPageOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.spec, tt.pageCount)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_CountMatchesTerms(t *testing.T) {
	// "a,b-c,d" yields 1 + (c-b+1) + 1 pages
	const pageCount = 20
	for a := 1; a <= pageCount; a += 3 {
		for b := 1; b <= pageCount; b += 4 {
			for c := b; c <= pageCount; c += 5 {
				d := pageCount - a + 1
				spec := strconv.Itoa(a) + "," + strconv.Itoa(b) + "-" + strconv.Itoa(c) + "," + strconv.Itoa(d)

				got, err := Resolve(spec, pageCount)
				require.NoError(t, err, spec)
				require.Len(t, got, 1+(c-b+1)+1, spec)
				assert.Equal(t, a, got[0], spec)
				assert.Equal(t, b, got[1], spec)
				assert.Equal(t, c, got[len(got)-2], spec)
				assert.Equal(t, d, got[len(got)-1], spec)
			}
		}
	}
}
