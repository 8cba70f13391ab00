package selection

import (
	"testing"
	"time"

	"staypricing/internal/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return utils.NewDate(2025, time.July, d)
}

func TestDragIgnoresForeignProperty(t *testing.T) {
	c := NewController()

	c.OnCellPress("propA", day(5), false)
	c.OnCellEnter("propA", day(8))
	c.OnCellEnter("propB", day(9))
	c.OnRelease()

	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, "propA", sel.PropertyID)
	assert.Equal(t, day(5), sel.StartDate)
	assert.Equal(t, day(8), sel.EndDate)
	assert.Equal(t, StateIdle, c.State())
}

func TestForeignEnterKeepsDragActive(t *testing.T) {
	c := NewController()

	c.OnCellPress("propA", day(5), false)
	c.OnCellEnter("propB", day(9))
	assert.Equal(t, StateDragging, c.State())

	c.OnCellEnter("propA", day(7))
	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, day(7), sel.EndDate)
}

func TestDragBackwardsOrdersEndpoints(t *testing.T) {
	c := NewController()

	c.OnCellPress("propA", day(10), false)
	c.OnCellEnter("propA", day(4))
	c.OnRelease()

	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, day(4), sel.StartDate)
	assert.Equal(t, day(10), sel.EndDate)

	// the low endpoint is recorded, not the anchor
	last := c.LastClicked()
	require.NotNil(t, last)
	assert.Equal(t, day(4), last.Date)
}

func TestShiftPressDoesNotStartDrag(t *testing.T) {
	c := NewController()

	c.OnCellPress("propA", day(5), true)
	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.CurrentSelection())

	c.OnCellEnter("propA", day(8))
	assert.Nil(t, c.CurrentSelection())
}

func TestEnterWithoutDragIsIgnored(t *testing.T) {
	c := NewController()
	c.OnCellEnter("propA", day(3))
	assert.Nil(t, c.CurrentSelection())
}

func TestShiftClickExtendsWithinProperty(t *testing.T) {
	c := NewController()

	c.OnCellClick("propA", day(3), false)
	c.OnCellClick("propA", day(7), true)

	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, "propA", sel.PropertyID)
	assert.Equal(t, day(3), sel.StartDate)
	assert.Equal(t, day(7), sel.EndDate)
}

func TestShiftClickOtherPropertyResets(t *testing.T) {
	c := NewController()

	c.OnCellClick("propA", day(3), false)
	c.OnCellClick("propB", day(7), true)

	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, "propB", sel.PropertyID)
	assert.Equal(t, day(7), sel.StartDate)
	assert.Equal(t, day(7), sel.EndDate)

	last := c.LastClicked()
	require.NotNil(t, last)
	assert.Equal(t, "propB", last.PropertyID)
	assert.Equal(t, day(7), last.Date)
}

func TestShiftClickWithoutPriorClick(t *testing.T) {
	c := NewController()

	c.OnCellClick("propA", day(7), true)

	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, day(7), sel.StartDate)
	assert.Equal(t, day(7), sel.EndDate)
}

func TestShiftClickAfterDragUsesLowEndpoint(t *testing.T) {
	c := NewController()

	c.OnCellPress("propA", day(12), false)
	c.OnCellEnter("propA", day(10))
	c.OnRelease()
	c.OnCellClick("propA", day(15), true)

	sel := c.CurrentSelection()
	require.NotNil(t, sel)
	assert.Equal(t, day(10), sel.StartDate)
	assert.Equal(t, day(15), sel.EndDate)
}

func TestClearSelection(t *testing.T) {
	c := NewController()

	c.OnCellPress("propA", day(5), false)
	c.OnCellEnter("propA", day(6))
	c.ClearSelection()

	assert.Equal(t, StateIdle, c.State())
	assert.Nil(t, c.CurrentSelection())
	assert.Nil(t, c.LastClicked())

	snap := c.Snapshot()
	assert.Nil(t, snap.Anchor)
	assert.Nil(t, snap.Selection)
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewController()
	c.OnCellPress("propA", day(5), false)

	snap := c.Snapshot()
	require.NotNil(t, snap.Anchor)
	assert.Equal(t, StateDragging, snap.State)

	c.OnCellEnter("propA", day(9))
	assert.Equal(t, day(5), snap.Selection.EndDate)
}
