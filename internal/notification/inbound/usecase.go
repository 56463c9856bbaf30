package inbound

import (
	"context"

	"github.com/shandysiswandi/gonotify/internal/notification/entity"
	"github.com/shandysiswandi/gonotify/internal/notification/usecase"
)

type ucConsumer interface {
	ProcessDelivery(ctx context.Context, in usecase.ProcessDeliveryInput) error
}

type uc interface {
	ucConsumer

	GetPreference(ctx context.Context, in usecase.GetPreferenceInput) (*entity.Preference, error)
	UpsertPreference(ctx context.Context, in usecase.UpsertPreferenceInput) (*entity.Preference, error)
	CreateNotification(ctx context.Context, in usecase.CreateNotificationInput) (*usecase.CreateNotificationOutput, error)
	GetNotification(ctx context.Context, in usecase.GetNotificationInput) (*entity.Notification, error)
	ListNotifications(ctx context.Context, in usecase.ListNotificationsInput) ([]entity.Notification, error)
	TriggerAlert(ctx context.Context, in usecase.TriggerAlertInput) (*usecase.TriggerAlertOutput, error)
}
