package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "table", want: FormatTable},
		{input: "", want: FormatTable},
		{input: "JSON", want: FormatJSON},
		{input: "yml", want: FormatYAML},
		{input: "  yaml  ", want: FormatYAML},
		{input: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinter_Print(t *testing.T) {
	data := KeyValues{{"Entries", "3"}, {"Pending", "0"}}

	t.Run("Table", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(data))
		assert.Contains(t, buf.String(), "Entries:")
		assert.Contains(t, buf.String(), "3")
	})

	t.Run("JSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatJSON, false).Print(map[string]int{"size": 3}))
		assert.Contains(t, buf.String(), `"size": 3`)
	})

	t.Run("YAML", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatYAML, false).Print(map[string]int{"size": 3}))
		assert.Equal(t, "size: 3\n", buf.String())
	})

	t.Run("TableFallsBackToJSON", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, NewPrinter(&buf, FormatTable, false).Print(map[string]int{"size": 3}))
		assert.Contains(t, buf.String(), `"size": 3`)
	})
}

func TestPrinter_Messages(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf, FormatTable, false)
	p.Success("done")
	p.Warning("careful")
	assert.Equal(t, "done\ncareful\n", buf.String())

	buf.Reset()
	NewPrinter(&buf, FormatTable, true).Success("done")
	assert.Contains(t, buf.String(), "\033[32m")
}

func TestRecordTable(t *testing.T) {
	table := RecordTable{Records: []map[string]any{
		{"id": float64(1), "title": "Garden", "likes": nil},
		{"id": float64(2.5), "tags": []any{"a"}},
	}}

	assert.Equal(t, []string{"id", "likes", "tags", "title"}, table.Headers())
	assert.Equal(t, [][]string{
		{"1", "NULL", "", "Garden"},
		{"2.5", "", `["a"]`, ""},
	}, table.Rows())

	var buf bytes.Buffer
	require.NoError(t, PrintTable(&buf, table))
	header := strings.SplitN(buf.String(), "\n", 2)[0]
	assert.Contains(t, header, "TITLE")

	explicit := RecordTable{Columns: []string{"title"}, Records: table.Records}
	assert.Equal(t, [][]string{{"Garden"}, {""}}, explicit.Rows())
}
