package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"staypricing/internal/models"
	"staypricing/internal/pricing"
	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/services"
	"staypricing/internal/utils"
	"staypricing/internal/validators"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CalendarHandler struct {
	projector        *pricing.CalendarProjector
	bulkEditService  services.BulkEditService
	maxPortfolioSize int
	clock            func() time.Time
}

func NewCalendarHandler(projector *pricing.CalendarProjector, bulkEditService services.BulkEditService, maxPortfolioSize int) *CalendarHandler {
	if maxPortfolioSize <= 0 {
		maxPortfolioSize = utils.MaxPortfolioSize
	}
	return &CalendarHandler{
		projector:        projector,
		bulkEditService:  bulkEditService,
		maxPortfolioSize: maxPortfolioSize,
		clock:            time.Now,
	}
}

// GetCalendar resolves every night of a date range for one property
func (h *CalendarHandler) GetCalendar(c *gin.Context) {
	propertyID := c.Param("id")

	var query validators.CalendarQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.BadRequestResponse(c, "Invalid query: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&query); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	dateRange, err := validators.ParseDateRange(query.StartDate, query.EndDate)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	now, err := validators.ParseNow(query.Now, h.clock())
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	days, err := h.projector.Project(c.Request.Context(), propertyID, dateRange, validators.ParseChannel(query.Channel), now)
	if err != nil {
		respondProjectionError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Calendar resolved successfully", days, &utils.Meta{Count: len(days)})
}

// GetPortfolioCalendar resolves the same date range for several properties
func (h *CalendarHandler) GetPortfolioCalendar(c *gin.Context) {
	var request validators.PortfolioRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}
	if len(request.PropertyIDs) > h.maxPortfolioSize {
		utils.BadRequestResponse(c, fmt.Sprintf("At most %d properties per request", h.maxPortfolioSize))
		return
	}

	dateRange, err := validators.ParseDateRange(request.StartDate, request.EndDate)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	now, err := validators.ParseNow(request.Now, h.clock())
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	calendars, err := h.projector.ProjectPortfolio(c.Request.Context(), dedupe(request.PropertyIDs), dateRange, validators.ParseChannel(request.Channel), now)
	if err != nil {
		respondProjectionError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Portfolio calendar resolved successfully", calendars, &utils.Meta{Count: len(calendars)})
}

// ApplyBulkPrice sets one price on every night of a date range
func (h *CalendarHandler) ApplyBulkPrice(c *gin.Context) {
	propertyID := c.Param("id")

	var request validators.BulkPriceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		for _, e := range errs {
			if e.Tag == "price_amount" {
				utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_PRICE", utils.ErrInvalidNewPrice)
				return
			}
		}
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	price, err := decimal.NewFromString(strings.TrimSpace(request.Price))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_PRICE", utils.ErrInvalidNewPrice)
		return
	}
	start, err := utils.ParseDate(request.StartDate)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	end, err := utils.ParseDate(request.EndDate)
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}
	if end.Before(start) {
		utils.BadRequestResponse(c, utils.ErrInvalidDateRange)
		return
	}
	now, err := validators.ParseNow(request.Now, h.clock())
	if err != nil {
		utils.BadRequestResponse(c, err.Error())
		return
	}

	selection := models.NewSelectionRange(propertyID, start, end)
	result, err := h.bulkEditService.ApplyBulkPrice(
		c.Request.Context(),
		selection,
		models.NewMoney(price, request.Currency),
		validators.ParseChannel(request.Channel),
		now,
	)
	if err != nil {
		respondBulkEditError(c, result, err)
		return
	}

	utils.SuccessResponse(c, "Bulk price applied successfully", result)
}

func respondProjectionError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pricing.ErrInvalidRange), errors.Is(err, pricing.ErrRangeTooLong):
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error())
	case errors.Is(err, pricing.ErrUnknownChannel):
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_CHANNEL", err.Error())
	case errors.Is(err, interfaces.ErrPropertyNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "PROPERTY_NOT_FOUND", utils.ErrPropertyNotFound)
	default:
		utils.InternalServerErrorResponse(c)
	}
}

func respondBulkEditError(c *gin.Context, result *services.BulkEditResult, err error) {
	var partial *services.PartialBulkFailureError
	switch {
	case errors.As(err, &partial):
		details := make(map[string]string, len(partial.Failed))
		for _, failure := range partial.Failed {
			details[utils.FormatDate(failure.Date)] = failure.Err.Error()
		}
		utils.PartialResponse(c, "PARTIAL_BULK_FAILURE", utils.ErrPartialBulkUpdate, result, details)
	case errors.Is(err, services.ErrInvalidPrice):
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_PRICE", err.Error())
	case errors.Is(err, services.ErrBulkRangeTooLong),
		errors.Is(err, models.ErrSelectionInverted),
		errors.Is(err, models.ErrSelectionNoProperty):
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_DATE_RANGE", err.Error())
	case errors.Is(err, pricing.ErrUnknownChannel):
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_CHANNEL", err.Error())
	case errors.Is(err, services.ErrLockNotAcquired):
		utils.ErrorResponse(c, http.StatusConflict, "PROPERTY_BUSY", err.Error())
	case result != nil:
		// nights were written but the calendar could not be re-projected
		utils.ErrorResponse(c, http.StatusInternalServerError, "REPROJECTION_FAILED", err.Error())
	default:
		utils.InternalServerErrorResponse(c)
	}
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
