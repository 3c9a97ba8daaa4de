package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/park285/cheese-arena/pkg/chessdto"
)

func statusFor(code string) int {
	switch code {
	case chessdto.CodeBadRequest, chessdto.CodeInvalidPosition:
		return fiber.StatusBadRequest
	case chessdto.CodeUnknownSession, chessdto.CodeLobbyNotFound:
		return fiber.StatusNotFound
	case chessdto.CodeNotAParticipant:
		return fiber.StatusForbidden
	case chessdto.CodeNotYourTurn, chessdto.CodeGameAlreadyFinished,
		chessdto.CodeAlreadyQueued, chessdto.CodeLobbyFull, chessdto.CodeNoHistory:
		return fiber.StatusConflict
	case chessdto.CodeIllegalMove:
		return fiber.StatusUnprocessableEntity
	}
	return fiber.StatusInternalServerError
}

func (h *handler) errorHandler(c *fiber.Ctx, err error) error {
	var de chessdto.DomainError
	if errors.As(err, &de) {
		return c.Status(statusFor(de.Code)).JSON(chessdto.ErrorResponse{Error: err.Error(), Code: de.Code})
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		code := "HTTP_ERROR"
		switch fe.Code {
		case fiber.StatusNotFound:
			code = "NOT_FOUND"
		case fiber.StatusBadRequest:
			code = chessdto.CodeBadRequest
		case fiber.StatusUpgradeRequired:
			code = "UPGRADE_REQUIRED"
		}
		return c.Status(fe.Code).JSON(chessdto.ErrorResponse{Error: fe.Message, Code: code})
	}
	h.log.Error("http_internal_error", zap.String("method", c.Method()), zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(chessdto.ErrorResponse{Error: "internal error", Code: "INTERNAL"})
}
