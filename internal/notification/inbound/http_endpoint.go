package inbound

import (
	"strconv"

	"github.com/samber/lo"
	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/notification/usecase"
	"github.com/shandysiswandi/gonotify/internal/pkg/router"
)

type HTTPEndpoint struct {
	uc uc
}

// GetPreference returns the preference of a user.
// @Summary Get preference
// @Description Returns the channel preference of the given user.
// @Tags Notification
// @Produce json
// @Param user_id path string true "User ID"
// @Success 200 {object} router.successResponse{data=PreferenceResponse} "Preference"
// @Failure 404 {object} router.errorResponse "Preference not found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/notification/preferences/{user_id} [get]
func (h *HTTPEndpoint) GetPreference(r *router.Request) (any, error) {
	pref, err := h.uc.GetPreference(r.Context(), usecase.GetPreferenceInput{UserID: r.GetParam("user_id")})
	if err != nil {
		return nil, err
	}

	return newPreferenceResponse(pref), nil
}

// UpsertPreference creates or updates the preference of a user.
// @Summary Upsert preference
// @Description Creates the preference when absent. On update, flags are overwritten and empty addresses keep the stored value.
// @Tags Notification
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param request body UpsertPreferenceRequest true "Preference payload"
// @Success 200 {object} router.successResponse{data=PreferenceResponse} "Stored preference"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/notification/preferences/{user_id} [put]
func (h *HTTPEndpoint) UpsertPreference(r *router.Request) (any, error) {
	var req UpsertPreferenceRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	pref, err := h.uc.UpsertPreference(r.Context(), usecase.UpsertPreferenceInput{
		UserID:       r.GetParam("user_id"),
		EmailEnabled: req.EmailEnabled,
		SMSEnabled:   req.SMSEnabled,
		Email:        req.Email,
		PhoneNumber:  req.PhoneNumber,
	})
	if err != nil {
		return nil, err
	}

	return newPreferenceResponse(pref), nil
}

// CreateNotification schedules a notification on every enabled channel of a user.
// @Summary Create notification
// @Description Persists one pending record per enabled and addressed channel, then enqueues delivery now or at send_at.
// @Tags Notification
// @Accept json
// @Produce json
// @Param request body CreateNotificationRequest true "Notification payload"
// @Success 200 {object} router.successResponse{data=QueuedResponse} "Queued"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 404 {object} router.errorResponse "Preference not found"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/notification/notifications [post]
func (h *HTTPEndpoint) CreateNotification(r *router.Request) (any, error) {
	var req CreateNotificationRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.CreateNotification(r.Context(), usecase.CreateNotificationInput{
		UserID:  req.UserID,
		Subject: req.Subject,
		Message: req.Message,
		SendAt:  req.SendAt,
	})
	if err != nil {
		return nil, err
	}

	return QueuedResponse{Status: out.Status, SendAt: out.SendAt}, nil
}

// GetNotification returns the delivery status of one record.
// @Summary Get notification
// @Tags Notification
// @Produce json
// @Param id path string true "Notification ID"
// @Success 200 {object} router.successResponse{data=NotificationResponse} "Notification"
// @Failure 400 {object} router.errorResponse "Invalid id"
// @Failure 404 {object} router.errorResponse "Notification not found"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/notification/notifications/{id} [get]
func (h *HTTPEndpoint) GetNotification(r *router.Request) (any, error) {
	id, err := r.GetParamInt64("id")
	if err != nil {
		return nil, err
	}

	n, err := h.uc.GetNotification(r.Context(), usecase.GetNotificationInput{ID: id})
	if err != nil {
		return nil, err
	}

	return newNotificationResponse(*n), nil
}

// ListNotifications returns the records of a user, newest first.
// @Summary List notifications
// @Tags Notification
// @Produce json
// @Param user_id path string true "User ID"
// @Param status query string false "pending, sent or failed"
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} router.successResponse{data=NotificationsResponse} "Notification list"
// @Failure 400 {object} router.errorResponse "Invalid query"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/notification/users/{user_id}/notifications [get]
func (h *HTTPEndpoint) ListNotifications(r *router.Request) (any, error) {
	limit, err := r.GetQueryInt32("limit")
	if err != nil {
		return nil, err
	}
	offset, err := r.GetQueryInt32("offset")
	if err != nil {
		return nil, err
	}

	in := usecase.ListNotificationsInput{
		UserID: r.GetParam("user_id"),
		Status: r.GetQuery("status"),
		Limit:  limit,
		Offset: offset,
	}
	items, err := h.uc.ListNotifications(r.Context(), in)
	if err != nil {
		return nil, err
	}

	return NotificationsResponse{
		Notifications: lo.Map(items, func(n entity.Notification, _ int) NotificationResponse {
			return newNotificationResponse(n)
		}),
		limit:  limit,
		offset: offset,
	}, nil
}

// TriggerAlert broadcasts a message to explicit recipients.
// @Summary Trigger alert
// @Description Schedules one record per listed email and phone number without a preference lookup.
// @Tags Notification
// @Accept json
// @Produce json
// @Param request body TriggerAlertRequest true "Alert payload"
// @Success 200 {object} router.successResponse{data=QueuedResponse} "Queued"
// @Failure 400 {object} router.errorResponse "Invalid request body"
// @Failure 422 {object} router.errorResponse "Validation error"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/notification/alerts [post]
func (h *HTTPEndpoint) TriggerAlert(r *router.Request) (any, error) {
	var req TriggerAlertRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	out, err := h.uc.TriggerAlert(r.Context(), usecase.TriggerAlertInput{
		Subject:      req.Subject,
		Message:      req.Message,
		Emails:       req.Emails,
		PhoneNumbers: req.PhoneNumbers,
		SendAt:       req.SendAt,
	})
	if err != nil {
		return nil, err
	}

	return QueuedResponse{Status: out.Status, SendAt: out.SendAt, Count: &out.Count}, nil
}

func newNotificationResponse(n entity.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        strconv.FormatInt(n.ID, 10),
		UserID:    n.UserID,
		Subject:   n.Subject,
		Message:   n.Message,
		Channel:   n.Channel.String(),
		Recipient: n.Recipient,
		Status:    n.Status.String(),
		SendAt:    n.SendAt,
		SentAt:    n.SentAt,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}
