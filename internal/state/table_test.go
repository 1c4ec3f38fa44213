package state

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_NilIsEmpty(t *testing.T) {
	var tbl *Table[int]

	assert.Equal(t, 0, tbl.Len())
	assert.Nil(t, tbl.IDs())
	assert.False(t, tbl.Has("a"))
	assert.Nil(t, tbl.Delete("a"))
}

func TestTable_SetKeepsOrder(t *testing.T) {
	tbl := (&Table[int]{}).Set("b", 1).Set("a", 2).Set("b", 3)

	assert.Equal(t, []string{"b", "a"}, tbl.IDs())
	v, ok := tbl.Get("b")
	require.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestTable_MutatorsDoNotTouchReceiver(t *testing.T) {
	base := (&Table[int]{}).Set("a", 1).Set("b", 2)

	added := base.Set("c", 3)
	removed := base.Delete("a")

	assert.Equal(t, []string{"a", "b"}, base.IDs())
	assert.Equal(t, []string{"a", "b", "c"}, added.IDs())
	assert.Equal(t, []string{"b"}, removed.IDs())
}

func TestTable_DeleteWhere(t *testing.T) {
	base := (&Table[int]{}).Set("a", 1).Set("b", 2).Set("c", 3)

	odd := base.DeleteWhere(func(_ string, v int) bool { return v%2 == 1 })
	assert.Equal(t, []string{"b"}, odd.IDs())

	none := base.DeleteWhere(func(string, int) bool { return false })
	assert.Same(t, base, none)
}

func TestTable_IDsMatchKeys(t *testing.T) {
	tbl := NewTable([]string{"x", "y", "x"}, func(id string) string { return id + "!" })

	assert.Equal(t, []string{"x", "y"}, tbl.IDs())
	for id, v := range tbl.All {
		assert.Equal(t, id+"!", v)
	}
	assert.Equal(t, len(tbl.byID), len(tbl.ids))
}

func TestTable_JSON(t *testing.T) {
	tbl := (&Table[string]{}).Set("k2", "v2").Set("k1", "v1")

	data, err := json.Marshal(tbl)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ids":["k2","k1"],"items":{"k1":"v1","k2":"v2"}}`, string(data))

	var back Table[string]
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, tbl.IDs(), back.IDs())

	data, err = json.Marshal(&struct {
		T *Table[string] `json:"t"`
	}{T: &Table[string]{}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":{"ids":[],"items":{}}}`, string(data))
}

func TestTable_UnmarshalDropsDanglingIDs(t *testing.T) {
	var tbl Table[int]
	require.NoError(t, json.Unmarshal([]byte(`{"ids":["a","ghost","a"],"items":{"a":1,"b":2}}`), &tbl))

	assert.Equal(t, []string{"a"}, tbl.IDs())
	assert.False(t, tbl.Has("b"))
}
