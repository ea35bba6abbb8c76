package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedTable struct {
	headers []string
	rows    [][]string
}

func (t fixedTable) Headers() []string { return t.headers }
func (t fixedTable) Rows() [][]string  { return t.rows }

func TestPrintTableWritesHeadersAndRows(t *testing.T) {
	var buf bytes.Buffer
	data := fixedTable{
		headers: []string{"calls", "avg_us"},
		rows:    [][]string{{"1000", "12.3"}},
	}

	require.NoError(t, PrintTable(&buf, data))

	out := buf.String()
	assert.Contains(t, out, "CALLS")
	assert.Contains(t, out, "1000")
	assert.Contains(t, out, "12.3")
}

func TestPrintTableEmptyRows(t *testing.T) {
	var buf bytes.Buffer
	data := fixedTable{headers: []string{"a", "b"}}

	require.NoError(t, PrintTable(&buf, data))
	assert.Contains(t, buf.String(), "A")
}
