package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_Project(t *testing.T) {
	t.Run("ReordersAndPads", func(t *testing.T) {
		tbl := &Table{
			Columns: []string{"a", "b", "c"},
			Rows:    [][]string{{"1", "2", "3"}, {"4"}},
			Version: "v1",
		}

		out, err := tbl.Project([]string{"c", "a"})

		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, out.Columns)
		assert.Equal(t, [][]string{{"3", "1"}, {"", "4"}}, out.Rows)
		assert.Equal(t, "v1", out.Version)
	})

	t.Run("MissingColumn", func(t *testing.T) {
		tbl := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}

		_, err := tbl.Project([]string{"a", "z"})

		assert.ErrorIs(t, err, ErrSchemaMismatch)
	})

	t.Run("BlankSheet", func(t *testing.T) {
		out, err := (&Table{Version: "v9"}).Project([]string{"a", "b"})

		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, out.Columns)
		assert.True(t, out.IsEmpty())
		assert.Equal(t, "v9", out.Version)
	})

	t.Run("NoColumnsRequested", func(t *testing.T) {
		tbl := &Table{Columns: []string{"a"}, Rows: [][]string{{"1"}}}

		out, err := tbl.Project(nil)

		require.NoError(t, err)
		assert.Same(t, tbl, out)
	})
}
