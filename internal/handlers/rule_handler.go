package handlers

import (
	"errors"
	"net/http"

	"staypricing/internal/repositories/interfaces"
	"staypricing/internal/services"
	"staypricing/internal/utils"
	"staypricing/internal/validators"

	"github.com/gin-gonic/gin"
)

type RuleHandler struct {
	ruleService services.PricingRuleService
}

func NewRuleHandler(ruleService services.PricingRuleService) *RuleHandler {
	return &RuleHandler{
		ruleService: ruleService,
	}
}

// ListRules lists the rules that can apply to a property, including rules
// scoped to every property. Without property_id only those global rules
// are listed.
func (h *RuleHandler) ListRules(c *gin.Context) {
	rules, err := h.ruleService.ListRules(c.Request.Context(), c.Query("property_id"))
	if err != nil {
		respondRuleError(c, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Pricing rules retrieved successfully", rules, &utils.Meta{Count: len(rules)})
}

func (h *RuleHandler) GetRule(c *gin.Context) {
	rule, err := h.ruleService.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondRuleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Pricing rule retrieved successfully", rule)
}

func (h *RuleHandler) CreateRule(c *gin.Context) {
	var request validators.RuleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rule, err := request.ToRule()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	created, err := h.ruleService.CreateRule(c.Request.Context(), rule)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	utils.CreatedResponse(c, "Pricing rule created successfully", created)
}

func (h *RuleHandler) UpdateRule(c *gin.Context) {
	var request validators.RuleRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rule, err := request.ToRule()
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	updated, err := h.ruleService.UpdateRule(c.Request.Context(), c.Param("id"), rule)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Pricing rule updated successfully", updated)
}

func (h *RuleHandler) SetRuleEnabled(c *gin.Context) {
	var request validators.RuleEnabledRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}
	if errs := validators.ValidateStruct(&request); len(errs) > 0 {
		utils.ValidationErrorResponse(c, errs.ToMap())
		return
	}

	rule, err := h.ruleService.SetRuleEnabled(c.Request.Context(), c.Param("id"), *request.Enabled)
	if err != nil {
		respondRuleError(c, err)
		return
	}

	utils.SuccessResponse(c, "Pricing rule updated successfully", rule)
}

func (h *RuleHandler) DeleteRule(c *gin.Context) {
	if err := h.ruleService.DeleteRule(c.Request.Context(), c.Param("id")); err != nil {
		respondRuleError(c, err)
		return
	}

	utils.NoContentResponse(c)
}

func respondRuleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, interfaces.ErrRuleNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, "RULE_NOT_FOUND", utils.ErrRuleNotFound)
	case errors.Is(err, services.ErrInvalidRule):
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case errors.Is(err, services.ErrLockNotAcquired):
		utils.ErrorResponse(c, http.StatusConflict, "PROPERTY_BUSY", err.Error())
	default:
		utils.InternalServerErrorResponse(c)
	}
}
