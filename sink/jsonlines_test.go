package sink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xldiff/xldiff/diff"
	"github.com/xldiff/xldiff/pool"
)

func TestJSONLinesHeaderThenOps(t *testing.T) {
	p := pool.New()
	sheet := p.Intern("Sheet1")

	var buf bytes.Buffer
	s := NewJSONLines(&buf)
	require.NoError(t, s.Begin(p))
	require.NoError(t, s.Begin(p), "Begin must be idempotent")
	require.NoError(t, s.Emit(diff.SheetAdded{Sheet: sheet}))
	require.NoError(t, s.Emit(diff.RowAdded{Sheet: sheet, RowIdx: 3}))
	require.NoError(t, s.Finish())

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)

	var header struct {
		Kind    string   `json:"kind"`
		Version string   `json:"version"`
		Strings []string `json:"strings"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &header))
	assert.Equal(t, "Header", header.Kind)
	assert.Equal(t, diff.SchemaVersion, header.Version)
	assert.Equal(t, []string{"", "Sheet1"}, header.Strings)

	var first struct {
		Kind  string  `json:"kind"`
		Sheet pool.ID `json:"sheet"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &first))
	assert.Equal(t, "SheetAdded", first.Kind)
	assert.Equal(t, sheet, first.Sheet)

	op, err := diff.UnmarshalOp([]byte(lines[2]))
	require.NoError(t, err)
	added, ok := op.(*diff.RowAdded)
	require.True(t, ok)
	assert.Equal(t, uint32(3), added.RowIdx)
}

func TestKindIsFirstField(t *testing.T) {
	raw, err := diff.MarshalOp(diff.SheetRemoved{Sheet: 1})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), `{"kind":"SheetRemoved"`), string(raw))
}

func TestCollectorSnapshotsHeader(t *testing.T) {
	p := pool.New()
	p.Intern("a")

	c := &Collector{}
	require.NoError(t, c.Begin(p))
	p.Intern("b")

	assert.Equal(t, []string{"", "a"}, c.Header,
		"header snapshots the pool at Begin time")
}
