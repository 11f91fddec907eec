package state

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshot_RestoreIsDeep(t *testing.T) {
	s := newRetailStore(t)
	snap := s.Snapshot()

	require.NoError(t, s.Set("environment/product_stocks", []float64{0, 0, 0}))
	require.NoError(t, s.Set("agents/consumers/budget", []float64{1, 1}))
	s.PutScratch("actions", []int{1})
	s.ReportBounds(BoundsError{Index: 4, Len: 3})

	s.Restore(snap)
	v, err := s.Env("product_stocks")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 5, 50}, v.Floats())
	col, err := s.Get("agents/consumers/budget")
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 80}, col.(*Variable).Floats())
	assert.Empty(t, s.ScratchKeys())
	assert.Empty(t, s.DrainBounds())

	// Mutating after a restore must not leak back into the snapshot.
	require.NoError(t, s.Set("environment/product_stocks", []float64{7, 7, 7}))
	s.Restore(snap)
	v, err = s.Env("product_stocks")
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 5, 50}, v.Floats())
}

func TestSnapshot_JSONRoundTrip(t *testing.T) {
	s := newRetailStore(t)
	require.NoError(t, s.Set("environment/product_stocks", []float64{0.1, -2.75, 1e-9}))

	restock, err := NewVariable("restock_threshold", Int, nil)
	require.NoError(t, err)
	require.NoError(t, restock.Assign(5))
	require.NoError(t, s.DeclareEnvironment(restock))

	suppliers, err := NewAgentGroup("suppliers", 3)
	require.NoError(t, err)
	require.NoError(t, suppliers.AddProperty("inventory", Float, []int{3, 2}, false))
	require.NoError(t, suppliers.SetColumn("inventory", []float64{1, 2, 3, 4, 5, 6}))
	require.NoError(t, s.DeclareGroup(suppliers))

	buf, err := json.Marshal(s.Snapshot())
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(buf, &decoded))
	restored := FromSnapshot(&decoded)

	assert.Equal(t, s.Groups(), restored.Groups())
	require.Equal(t, s.Paths(), restored.Paths())
	for _, p := range s.Paths() {
		want, err := s.Get(p)
		require.NoError(t, err)
		got, err := restored.Get(p)
		require.NoError(t, err)
		assert.True(t, want.(*Variable).Equal(got.(*Variable)), "path %s differs", p)
	}

	inv, err := restored.Group("suppliers")
	require.NoError(t, err)
	row, err := inv.Agents[2].Attr("inventory")
	require.NoError(t, err)
	if diff := cmp.Diff([]float64{5, 6}, row.Floats()); diff != "" {
		t.Errorf("agent row mismatch (-want +got):\n%s", diff)
	}
}

func TestSnapshot_UnmarshalRejectsBadInput(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{name: "not an object", raw: `[1, 2]`},
		{name: "unknown dtype", raw: `{"environment": {"x": {"dtype": "complex", "shape": [1], "value": [1]}}}`},
		{name: "value length mismatch", raw: `{"environment": {"x": {"dtype": "float", "shape": [2], "value": [1]}}}`},
		{name: "fractional int", raw: `{"environment": {"x": {"dtype": "int", "shape": [1], "value": [1.5]}}}`},
		{name: "group order mismatch", raw: `{"agents": {"g": {"number": 1, "properties": {}}}, "group_order": []}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var snap Snapshot
			require.Error(t, json.Unmarshal([]byte(tc.raw), &snap))
		})
	}
}
