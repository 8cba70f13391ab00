package selection

import (
	"time"

	"staypricing/internal/models"
	"staypricing/internal/utils"
)

type State string

const (
	StateIdle     State = "idle"
	StateDragging State = "dragging"
)

// Snapshot is a copy of the controller state, safe to hand to other goroutines.
type Snapshot struct {
	State       State                  `json:"state"`
	Anchor      *models.CellRef        `json:"anchor,omitempty"`
	Selection   *models.SelectionRange `json:"selection,omitempty"`
	LastClicked *models.CellRef        `json:"last_clicked,omitempty"`
}

// Controller turns day-cell pointer events into a SelectionRange. A
// selection never spans two properties: drags ignore cells of other
// properties and shift-clicks only extend within the last clicked property.
//
// A Controller belongs to a single UI session and is not safe for
// concurrent use.
type Controller struct {
	state       State
	anchor      models.CellRef
	current     *models.SelectionRange
	lastClicked *models.CellRef
}

func NewController() *Controller {
	return &Controller{state: StateIdle}
}

// OnCellPress starts a drag at the pressed cell. Shift-presses are left to
// OnCellClick and do not start a drag.
func (c *Controller) OnCellPress(propertyID string, date time.Time, shiftHeld bool) {
	if shiftHeld {
		return
	}
	date = utils.DateOf(date)
	c.state = StateDragging
	c.anchor = models.CellRef{PropertyID: propertyID, Date: date}
	c.setSelection(propertyID, date, date)
}

// OnCellEnter extends an active drag. Cells of another property are ignored
// and the drag stays active.
func (c *Controller) OnCellEnter(propertyID string, date time.Time) {
	if c.state != StateDragging || propertyID != c.anchor.PropertyID {
		return
	}
	c.setSelection(propertyID, c.anchor.Date, date)
}

// OnRelease ends a drag and records the low endpoint of the selection as the
// last clicked cell.
func (c *Controller) OnRelease() {
	if c.state != StateDragging {
		return
	}
	c.state = StateIdle
	if c.current != nil {
		c.lastClicked = &models.CellRef{PropertyID: c.current.PropertyID, Date: c.current.StartDate}
	}
}

func (c *Controller) OnCellClick(propertyID string, date time.Time, shiftHeld bool) {
	date = utils.DateOf(date)
	if shiftHeld && c.lastClicked != nil && c.lastClicked.PropertyID == propertyID {
		c.setSelection(propertyID, c.lastClicked.Date, date)
		return
	}
	c.setSelection(propertyID, date, date)
	c.lastClicked = &models.CellRef{PropertyID: propertyID, Date: date}
}

func (c *Controller) ClearSelection() {
	c.state = StateIdle
	c.anchor = models.CellRef{}
	c.current = nil
	c.lastClicked = nil
}

func (c *Controller) State() State {
	return c.state
}

// CurrentSelection returns a copy of the selection, or nil when nothing is
// selected.
func (c *Controller) CurrentSelection() *models.SelectionRange {
	if c.current == nil {
		return nil
	}
	sel := *c.current
	return &sel
}

func (c *Controller) LastClicked() *models.CellRef {
	if c.lastClicked == nil {
		return nil
	}
	ref := *c.lastClicked
	return &ref
}

func (c *Controller) Snapshot() Snapshot {
	snap := Snapshot{
		State:       c.state,
		Selection:   c.CurrentSelection(),
		LastClicked: c.LastClicked(),
	}
	if c.state == StateDragging {
		anchor := c.anchor
		snap.Anchor = &anchor
	}
	return snap
}

func (c *Controller) setSelection(propertyID string, a, b time.Time) {
	sel := models.NewSelectionRange(propertyID, a, b)
	c.current = &sel
}
