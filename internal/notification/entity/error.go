package entity

import (
	"errors"

	"github.com/shandysiswandi/gonotify/internal/pkg/goerror"
)

var (
	// ErrPreferenceNotFound is returned when no preference exists for a user.
	ErrPreferenceNotFound = goerror.NewBusiness("preference not found", goerror.CodeNotFound)

	// ErrRecordNotFound is returned when a notification record does not exist.
	ErrRecordNotFound = goerror.NewBusiness("notification not found", goerror.CodeNotFound)

	// ErrInvalidRecipient marks a recipient rejected by its channel notifier.
	// It never reaches the original caller; the record is marked failed.
	ErrInvalidRecipient = errors.New("invalid recipient")

	// ErrDelivery wraps transport failures of a channel notifier.
	ErrDelivery = errors.New("delivery failed")

	// ErrUnknownChannel marks a job or record whose channel has no notifier.
	ErrUnknownChannel = errors.New("unknown channel")
)
