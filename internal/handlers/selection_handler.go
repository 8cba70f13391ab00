package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/selection"
	"staypricing/internal/services"
	"staypricing/internal/utils"
	"staypricing/internal/validators"
	"staypricing/pkg/logger"
	"staypricing/pkg/websocket"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const bulkEditTimeout = 30 * time.Second

// Frames a selection session accepts.
const (
	eventPress    = "press"
	eventEnter    = "enter"
	eventRelease  = "release"
	eventClick    = "click"
	eventClear    = "clear"
	eventSnapshot = "snapshot"
	eventApply    = "apply"
)

type cellEvent struct {
	PropertyID string `json:"property_id"`
	Date       string `json:"date"`
	Shift      bool   `json:"shift"`
}

type applyEvent struct {
	Price    string `json:"price"`
	Currency string `json:"currency"`
	Channel  string `json:"channel"`
	Now      string `json:"now"`
}

// SelectionHandler serves calendar selection sessions over websocket. Each
// connection owns one selection controller fed by the browser's pointer
// events; "apply" bulk-edits the current selection.
type SelectionHandler struct {
	bulkEditService services.BulkEditService
	logger          *logger.Logger
	clock           func() time.Time
}

func NewSelectionHandler(bulkEditService services.BulkEditService, log *logger.Logger) *SelectionHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &SelectionHandler{
		bulkEditService: bulkEditService,
		logger:          log,
		clock:           time.Now,
	}
}

// NewSession is a websocket.SessionFactory.
func (h *SelectionHandler) NewSession(c *gin.Context) websocket.MessageHandler {
	return &selectionSession{
		handler:    h,
		controller: selection.NewController(),
		logger:     h.logger.WithRequestID(c.GetString("request_id")),
	}
}

type selectionSession struct {
	handler    *SelectionHandler
	controller *selection.Controller
	logger     *logger.Logger
	watching   string
}

func (s *selectionSession) HandleMessage(client *websocket.Client, msg websocket.Message) {
	switch msg.Type {
	case eventPress, eventEnter, eventClick:
		var cell cellEvent
		if err := json.Unmarshal(msg.Data, &cell); err != nil || cell.PropertyID == "" {
			client.Reply("error", errorPayload("cell event needs property_id and date"))
			return
		}
		date, err := utils.ParseDate(cell.Date)
		if err != nil {
			client.Reply("error", errorPayload(err.Error()))
			return
		}

		switch msg.Type {
		case eventPress:
			s.controller.OnCellPress(cell.PropertyID, date, cell.Shift)
		case eventEnter:
			s.controller.OnCellEnter(cell.PropertyID, date)
		case eventClick:
			s.controller.OnCellClick(cell.PropertyID, date, cell.Shift)
		}

	case eventRelease:
		s.controller.OnRelease()

	case eventClear:
		s.controller.ClearSelection()

	case eventSnapshot:

	case eventApply:
		s.apply(client, msg.Data)
		return

	default:
		client.Reply("error", errorPayload("unknown event "+msg.Type))
		return
	}

	s.watchSelection(client)
	client.Reply("selection", s.controller.Snapshot())
}

func (s *selectionSession) Close(*websocket.Client) {
	s.controller.ClearSelection()
}

// watchSelection subscribes the client to calendar updates of the property
// it is selecting on.
func (s *selectionSession) watchSelection(client *websocket.Client) {
	sel := s.controller.CurrentSelection()
	if sel == nil || sel.PropertyID == s.watching {
		return
	}
	if s.watching != "" {
		client.Hub().LeaveRoom(client, websocket.PropertyRoom(s.watching))
	}
	client.Hub().JoinRoom(client, websocket.PropertyRoom(sel.PropertyID))
	s.watching = sel.PropertyID
}

func (s *selectionSession) apply(client *websocket.Client, data json.RawMessage) {
	sel := s.controller.CurrentSelection()
	if sel == nil {
		client.Reply("error", errorPayload("nothing is selected"))
		return
	}

	var request applyEvent
	if err := json.Unmarshal(data, &request); err != nil {
		client.Reply("error", errorPayload("invalid apply payload"))
		return
	}
	price, err := decimal.NewFromString(request.Price)
	if err != nil || price.IsNegative() {
		client.Reply("error", map[string]string{"code": "INVALID_PRICE", "message": utils.ErrInvalidNewPrice})
		return
	}
	now, err := validators.ParseNow(request.Now, s.handler.clock())
	if err != nil {
		client.Reply("error", errorPayload(err.Error()))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), bulkEditTimeout)
	defer cancel()

	result, err := s.handler.bulkEditService.ApplyBulkPrice(ctx, *sel, models.NewMoney(price, request.Currency), validators.ParseChannel(request.Channel), now)
	if err != nil {
		var partial *services.PartialBulkFailureError
		if errors.As(err, &partial) {
			failed := make([]string, len(partial.Failed))
			for i, f := range partial.Failed {
				failed[i] = utils.FormatDate(f.Date)
			}
			client.Reply("bulk_result", map[string]interface{}{
				"status": utils.StatusPartial,
				"result": result,
				"failed": failed,
			})
			return
		}
		s.logger.WithError(err).WithPropertyID(sel.PropertyID).Warn("Bulk edit from selection failed")
		client.Reply("error", errorPayload(err.Error()))
		return
	}

	// a fully applied selection is consumed; partial failures keep it for a retry
	s.controller.ClearSelection()
	client.Reply("bulk_result", map[string]interface{}{
		"status": utils.StatusSuccess,
		"result": result,
	})
	client.Reply("selection", s.controller.Snapshot())
}

func errorPayload(message string) map[string]string {
	return map[string]string{"message": message}
}
