package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatTable, false},
		{"table", FormatTable, false},
		{"JSON", FormatJSON, false},
		{" yml ", FormatYAML, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrint(t *testing.T) {
	data := []struct {
		Name string `json:"name" yaml:"name"`
	}{{Name: "a"}, {Name: "b"}}

	var buf bytes.Buffer
	require.NoError(t, Print(&buf, FormatYAML, data))
	assert.Contains(t, buf.String(), "- name: a")

	buf.Reset()
	require.NoError(t, Print(&buf, FormatJSON, data))
	assert.Contains(t, buf.String(), `"name": "b"`)

	// Values without a table form fall back to JSON.
	buf.Reset()
	require.NoError(t, Print(&buf, FormatTable, data))
	assert.Contains(t, buf.String(), `"name": "a"`)

	assert.Error(t, Print(&buf, Format("csv"), data))
}
