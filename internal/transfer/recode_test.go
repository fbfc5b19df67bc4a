package transfer

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecode(t *testing.T) {
	tests := map[string]struct {
		in     string
		fields int
		want   string
		rows   int64
	}{
		"plain": {
			in:     "1\t2010-01-02\n2\t2011-03-04\n",
			fields: 2,
			want:   "1,2010-01-02\n2,2011-03-04\n",
			rows:   2,
		},
		"null marker passes through": {
			in:     "1\t\\N\n",
			fields: 2,
			want:   "1,\\N\n",
			rows:   1,
		},
		"comma in value is quoted": {
			in:     "1\tSmith, John\n",
			fields: 2,
			want:   "1,\"Smith, John\"\n",
			rows:   1,
		},
		"quoted tab and quote": {
			in:     "1\t\"a\tb \"\"c\"\"\"\n",
			fields: 2,
			want:   "1,\"a\tb \"\"c\"\"\"\n",
			rows:   1,
		},
		"embedded newline": {
			in:     "1\t\"line1\nline2\"\n",
			fields: 2,
			want:   "1,\"line1\nline2\"\n",
			rows:   1,
		},
		"empty string stays distinct from null": {
			in:     "1\t\"\"\n",
			fields: 2,
			want:   "1,\"\"\n",
			rows:   1,
		},
		"crlf inside quotes is kept": {
			in:     "1\t\"a\r\nb\"\n",
			fields: 2,
			want:   "1,\"a\r\nb\"\n",
			rows:   1,
		},
		"quoted null marker stays text": {
			in:     "1\t\"\\N\"\n",
			fields: 2,
			want:   "1,\"\\N\"\n",
			rows:   1,
		},
		"last record without newline": {
			in:     "1\ta\n2\tb",
			fields: 2,
			want:   "1,a\n2,b\n",
			rows:   2,
		},
		"empty input": {
			in:     "",
			fields: 2,
			want:   "",
			rows:   0,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var out bytes.Buffer
			n, err := Recode(&out, strings.NewReader(tt.in), tt.fields)
			require.NoError(t, err)
			assert.Equal(t, tt.rows, n)
			assert.Equal(t, tt.want, out.String())
		})
	}
}

func TestRecodeFieldCountMismatch(t *testing.T) {
	var out bytes.Buffer
	n, err := Recode(&out, strings.NewReader("1\t2\n3\n"), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read record 2")
	assert.Equal(t, int64(1), n)
}

func TestRecodeUnterminatedQuote(t *testing.T) {
	var out bytes.Buffer
	n, err := Recode(&out, strings.NewReader("1\ta\n2\t\"open\n"), 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unterminated quoted field")
	assert.Equal(t, int64(1), n)
}
