// Package apierr maps domain errors onto HTTP status codes.
package apierr

import (
	"errors"
	"net/http"

	"github.com/zhouzirui/z-chat/backend/internal/export"
	"github.com/zhouzirui/z-chat/backend/internal/model/catalog"
	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	chatService "github.com/zhouzirui/z-chat/backend/internal/service/chat"
)

// Status returns the response code for err.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, chatService.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chatService.ErrSessionBusy):
		return http.StatusConflict
	case errors.Is(err, catalog.ErrUnknownModel),
		errors.Is(err, chat.ErrTemperatureOutOfRange),
		errors.Is(err, chatService.ErrInvalidTurn),
		errors.Is(err, export.ErrUnknownFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
