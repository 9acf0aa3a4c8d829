package service

import "errors"

var (
	// ErrForbidden is an access or authorship failure. It is never
	// retried and is surfaced to the user as a blocked action.
	ErrForbidden = errors.New("forbidden")

	ErrChannelNotFound  = errors.New("channel not found")
	ErrMessageNotFound  = errors.New("message not found")
	ErrChannelNameTaken = errors.New("channel name already exists")

	// ErrVersionConflict means an edit was submitted against a stale
	// message version; the caller should re-fetch and retry.
	ErrVersionConflict = errors.New("message was changed by another edit")
)
