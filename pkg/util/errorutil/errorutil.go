package errorutil

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// Error codes surfaced to callers.
const (
	CodeValidation                   = "VALIDATION_FAILED"
	CodeNotFound                     = "NOT_FOUND"
	CodeUnauthorized                 = "UNAUTHORIZED"
	CodeInternal                     = "INTERNAL_ERROR"
	CodeInvalidStatusTransition      = "INVALID_STATUS_TRANSITION"
	CodeRateLimitExceeded            = "RATE_LIMIT_EXCEEDED"
	CodeAgentNotAvailable            = "AGENT_NOT_AVAILABLE"
	CodeUnauthorizedAccess           = "UNAUTHORIZED_ACCESS"
	CodeConfigMissing                = "CONFIG_MISSING"
	CodeEscalationNotAllowed         = "ESCALATION_NOT_ALLOWED"
	CodeSatisfactionAlreadySubmitted = "SATISFACTION_ALREADY_SUBMITTED"
	CodeTicketNotFound               = "TICKET_NOT_FOUND"
	CodeAlertRuleNotFound            = "ALERT_RULE_NOT_FOUND"
	CodeAlertNotFound                = "ALERT_NOT_FOUND"
	CodeAlertAlreadyResolved         = "ALERT_ALREADY_RESOLVED"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// HasCode reports whether err carries a DomainError with the given code.
func HasCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return NewDomainError(CodeNotFound, fmt.Sprintf("%s not found", resource), http.StatusNotFound, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

func NewUnauthorizedAccess(message string) error {
	return NewDomainError(CodeUnauthorizedAccess, message, http.StatusForbidden, nil)
}

func NewInvalidStatusTransition(from, to string) error {
	return NewDomainError(CodeInvalidStatusTransition,
		fmt.Sprintf("cannot move ticket from %s to %s", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

func NewRateLimitExceeded(window string, limit int) error {
	return NewDomainError(CodeRateLimitExceeded, "ticket creation limit reached", http.StatusTooManyRequests,
		map[string]any{"window": window, "limit": limit})
}

func NewAgentNotAvailable(message string, details map[string]any) error {
	return NewDomainError(CodeAgentNotAvailable, message, http.StatusConflict, details)
}

func NewConfigMissing(businessModel, tenantID string) error {
	return NewDomainError(CodeConfigMissing, "no support configuration for tenant", http.StatusUnprocessableEntity,
		map[string]any{"business_model": businessModel, "tenant_id": tenantID})
}

func NewEscalationNotAllowed(tenantID string) error {
	return NewDomainError(CodeEscalationNotAllowed, "escalation disabled for tenant", http.StatusConflict,
		map[string]any{"tenant_id": tenantID})
}

func NewSatisfactionAlreadySubmitted(ticketID string) error {
	return NewDomainError(CodeSatisfactionAlreadySubmitted, "satisfaction already submitted", http.StatusConflict,
		map[string]any{"ticket_id": ticketID})
}

func NewTicketNotFound(ticketID string) error {
	return NewDomainError(CodeTicketNotFound, "ticket not found", http.StatusNotFound,
		map[string]any{"ticket_id": ticketID})
}

func NewAlertRuleNotFound(ruleID string) error {
	return NewDomainError(CodeAlertRuleNotFound, "alert rule not found", http.StatusNotFound,
		map[string]any{"rule_id": ruleID})
}

func NewAlertNotFound(alertID string) error {
	return NewDomainError(CodeAlertNotFound, "alert not found", http.StatusNotFound,
		map[string]any{"alert_id": alertID})
}

func NewAlertAlreadyResolved(alertID string) error {
	return NewDomainError(CodeAlertAlreadyResolved, "alert already resolved", http.StatusConflict,
		map[string]any{"alert_id": alertID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return NewNotFound("resource", nil).(*DomainError)
	}
	return NewInternalError(err).(*DomainError)
}

// MapError converts err to a DomainError, preserving nil.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	return ToDomainError(err)
}
