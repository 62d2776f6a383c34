package handlers

import (
	"github.com/spec-kit/support-desk/internal/api/dto"
	"github.com/spec-kit/support-desk/internal/domain"
	"github.com/spec-kit/support-desk/internal/service"
)

func ticketSummary(t *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              t.ID,
		Number:          t.Number,
		Subject:         t.Subject,
		Category:        t.Category,
		Priority:        t.Priority,
		Status:          t.Status,
		BusinessModel:   t.Scope.BusinessModel,
		TenantID:        t.Scope.TenantID,
		RequesterID:     t.RequesterID,
		AssignedAgentID: t.AssignedAgentID,
		VendorID:        t.VendorID,
		OrderID:         t.OrderID,
		ProductID:       t.ProductID,
		Satisfaction:    t.Satisfaction,
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		FirstResponseAt: t.FirstResponseAt,
		ResolvedAt:      t.ResolvedAt,
		ClosedAt:        t.ClosedAt,
	}
}

func ticketDetail(d *service.TicketDetails) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketResponse: ticketSummary(&d.Ticket),
		Description:    d.Ticket.Description,
		Metadata:       d.Ticket.Metadata,
		Escalations:    d.Ticket.Escalations,
		LastResponseAt: d.Ticket.LastResponseAt,
		Messages:       make([]dto.TicketMessageResponse, 0, len(d.Messages)),
		Attachments:    attachmentResponses(d.Attachments),
	}
	if d.SLA != nil {
		resp.SLA = &dto.SLAResponse{
			FirstResponseDue:    d.SLA.FirstResponseDue,
			ResolutionDue:       d.SLA.ResolutionDue,
			FirstResponseMet:    d.SLA.FirstResponseMet,
			ResolutionMet:       d.SLA.ResolutionMet,
			FirstResponseBreach: d.SLA.FirstResponseBreach,
			ResolutionBreach:    d.SLA.ResolutionBreach,
			BreachMinutes:       d.SLA.BreachMinutes,
		}
	}
	for i := range d.Messages {
		resp.Messages = append(resp.Messages, ticketMessageResponse(&d.Messages[i]))
	}
	for _, h := range d.History {
		resp.History = append(resp.History, dto.TicketHistoryResponse{
			ID:          h.ID,
			ChangeType:  h.ChangeType,
			ChangedByID: h.ChangedByID,
			OldValue:    h.OldValue,
			NewValue:    h.NewValue,
			CreatedAt:   h.CreatedAt,
		})
	}
	return resp
}

func ticketMessageResponse(m *domain.TicketMessage) dto.TicketMessageResponse {
	return dto.TicketMessageResponse{
		ID:          m.ID,
		AuthorType:  m.AuthorType,
		AuthorID:    m.AuthorID,
		Internal:    m.Internal,
		Body:        m.Body,
		Attachments: attachmentResponses(m.Attachments),
		CreatedAt:   m.CreatedAt,
	}
}

func attachmentResponses(refs []domain.AttachmentReference) []dto.AttachmentResponse {
	out := make([]dto.AttachmentResponse, 0, len(refs))
	for _, a := range refs {
		out = append(out, dto.AttachmentResponse{
			ID:         a.ID,
			StorageKey: a.StorageKey,
			FileName:   a.FileName,
			MimeType:   a.MimeType,
			SizeBytes:  a.SizeBytes,
			CreatedAt:  a.CreatedAt,
		})
	}
	return out
}

func alertRuleResponse(r *domain.AlertRule) dto.AlertRuleResponse {
	return dto.AlertRuleResponse{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		Type:          r.Type,
		Enabled:       r.Enabled,
		BusinessModel: r.BusinessModel,
		TenantID:      r.TenantID,
		Conditions:    r.Conditions,
		Actions:       r.Actions,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func alertNotices(alerts []domain.ActiveAlert) []service.AlertNotice {
	out := make([]service.AlertNotice, 0, len(alerts))
	for i := range alerts {
		out = append(out, service.NewAlertNotice(&alerts[i]))
	}
	return out
}
