package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/auth"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
	apperrors "github.com/spec-kit/support-desk/pkg/util/errorutil"
)

// AlertsHandler exposes the alert registry and rule management.
type AlertsHandler struct {
	engine *service.AlertEngine
}

// NewAlertsHandler constructs handler.
func NewAlertsHandler(engine *service.AlertEngine) *AlertsHandler {
	return &AlertsHandler{engine: engine}
}

// ActiveAlerts GET /alerts/active.
func (h *AlertsHandler) ActiveAlerts(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	alerts := h.engine.GetActiveAlerts(actor.Scope)
	return c.JSON(fiber.Map{"data": alertNotices(alerts)})
}

// AlertHistory GET /alerts/history.
func (h *AlertsHandler) AlertHistory(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	alerts, err := h.engine.GetAlertHistory(c.UserContext(), c.QueryInt("limit", 0))
	if err != nil {
		return err
	}
	visible := alerts[:0]
	for _, a := range alerts {
		if scopeVisible(actor, a.Scope) {
			visible = append(visible, a)
		}
	}
	return c.JSON(fiber.Map{"data": alertNotices(visible)})
}

// ResolveAlert POST /alerts/:id/resolve.
func (h *AlertsHandler) ResolveAlert(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	existing, err := h.engine.GetAlert(c.Params("id"))
	if err != nil {
		return err
	}
	if !scopeVisible(actor, existing.Scope) {
		return apperrors.NewAlertNotFound(existing.ID)
	}
	alert, err := h.engine.ResolveAlert(c.UserContext(), existing.ID, actor.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": service.NewAlertNotice(alert)})
}

// ListRules GET /alerts/rules.
func (h *AlertsHandler) ListRules(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	rules, err := h.engine.ListRules(c.UserContext())
	if err != nil {
		return err
	}
	out := make([]dto.AlertRuleResponse, 0, len(rules))
	for i := range rules {
		if ruleVisible(actor, &rules[i]) {
			out = append(out, alertRuleResponse(&rules[i]))
		}
	}
	return c.JSON(fiber.Map{"data": out})
}

// CreateRule POST /alerts/rules.
func (h *AlertsHandler) CreateRule(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	input, err := h.ruleInput(c, actor)
	if err != nil {
		return err
	}
	rule, err := h.engine.CreateRule(c.UserContext(), input)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": alertRuleResponse(rule)})
}

// UpdateRule PUT /alerts/rules/:id.
func (h *AlertsHandler) UpdateRule(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.ensureRuleAccess(c, actor); err != nil {
		return err
	}
	input, err := h.ruleInput(c, actor)
	if err != nil {
		return err
	}
	rule, err := h.engine.UpdateRule(c.UserContext(), c.Params("id"), input)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": alertRuleResponse(rule)})
}

// DeleteRule DELETE /alerts/rules/:id.
func (h *AlertsHandler) DeleteRule(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	if err := h.ensureRuleAccess(c, actor); err != nil {
		return err
	}
	if err := h.engine.DeleteRule(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *AlertsHandler) ensureRuleAccess(c *fiber.Ctx, actor domain.Actor) error {
	rule, err := h.engine.GetRule(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	if !ruleVisible(actor, rule) {
		return apperrors.NewAlertRuleNotFound(rule.ID)
	}
	return nil
}

// ruleInput binds a rule payload. Non-admins are pinned to their own scope.
func (h *AlertsHandler) ruleInput(c *fiber.Ctx, actor domain.Actor) (service.AlertRuleInput, error) {
	var req dto.AlertRuleRequest
	if err := bindJSON(c, &req); err != nil {
		return service.AlertRuleInput{}, err
	}
	input := service.AlertRuleInput{
		Name:          req.Name,
		Description:   req.Description,
		Type:          req.Type,
		Enabled:       req.Enabled == nil || *req.Enabled,
		BusinessModel: req.BusinessModel,
		TenantID:      req.TenantID,
		Actions: domain.AlertActions{
			Emails:     req.Actions.Emails,
			WebhookURL: req.Actions.WebhookURL,
		},
	}
	for _, cond := range req.Conditions {
		input.Conditions = append(input.Conditions, domain.AlertCondition{
			Metric:            cond.Metric,
			Operator:          cond.Operator,
			Threshold:         cond.Threshold,
			TimeWindowMinutes: cond.TimeWindowMinutes,
		})
	}
	if input.BusinessModel == "" {
		input.BusinessModel = actor.Scope.BusinessModel
	}
	if actor.Role != domain.RolePlatformAdmin {
		tenant := actor.Scope.TenantID
		input.BusinessModel = actor.Scope.BusinessModel
		input.TenantID = &tenant
	}
	return input, nil
}

func ruleVisible(actor domain.Actor, rule *domain.AlertRule) bool {
	if actor.Role == domain.RolePlatformAdmin {
		return actor.Scope.BusinessModel == "" || actor.Scope.BusinessModel == rule.BusinessModel
	}
	return rule.AppliesTo(actor.Scope)
}

func scopeVisible(actor domain.Actor, scope domain.Scope) bool {
	if actor.Scope.BusinessModel != "" && actor.Scope.BusinessModel != scope.BusinessModel {
		return false
	}
	return actor.Scope.TenantID == "" || actor.Scope.TenantID == scope.TenantID
}
