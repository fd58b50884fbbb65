package sqlxrepos

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/aula/core"
	"github.com/trezcool/aula/core/task"
)

func TestWhere(t *testing.T) {
	var w where
	assert.Equal(t, "", w.String())

	w.add("name ILIKE ? OR email ILIKE ?", "%a%", "%a%")
	w.add("is_active = ?", true)
	assert.Equal(t, " WHERE (name ILIKE $1 OR email ILIKE $2) AND (is_active = $3)", w.String())
	assert.Equal(t, []interface{}{"%a%", "%a%", true}, w.args)
}

func TestOrderBy(t *testing.T) {
	ordering := []core.DBOrdering{
		{Field: "name", Ascending: true},
		{Field: "password_hash; DROP TABLE student", Ascending: true},
		{Field: "created_at"},
	}
	assert.Equal(t, " ORDER BY name ASC, created_at DESC", orderBy(ordering, studentOrderColumns))
	assert.Equal(t, "", orderBy(nil, studentOrderColumns))
}

func TestValidUUIDs(t *testing.T) {
	id := "6f1c2d3e-4b5a-4c6d-8e7f-9a0b1c2d3e4f"
	assert.Equal(t, []string{id}, validUUIDs([]string{"1", id, ""}))
}

func TestStepList(t *testing.T) {
	steps := stepList{{Text: "soap"}, {Text: "rinse", Image: "/img/rinse.png"}}
	val, err := steps.Value()
	require.NoError(t, err)

	var scanned stepList
	require.NoError(t, scanned.Scan(val))
	assert.Equal(t, steps, scanned)

	val, err = stepList(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), val)

	assert.Error(t, scanned.Scan(42))
}

func TestNewRecordRow(t *testing.T) {
	row, err := newRecordRow(task.MenuRecord{ID: "m1", Title: "Lunch", AssignedTo: ""})
	require.NoError(t, err)

	menu, ok := row.(menuRow)
	require.True(t, ok)
	assert.False(t, menu.AssignedTo.Valid)
	assert.NotNil(t, menu.MenuIDs)
	assert.Equal(t, task.MenuRecord{ID: "m1", Title: "Lunch", MenuIDs: []string{}}, menu.record())
}

func TestTaskTables(t *testing.T) {
	for _, src := range task.Sources {
		tbl, ok := taskTables[src]
		require.True(t, ok, src)
		assert.Contains(t, tbl.columns, tbl.student)
		assert.Contains(t, tbl.columns, tbl.completed)
		assert.Contains(t, tbl.columns, tbl.start)
	}
}
