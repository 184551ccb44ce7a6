package serverutils

import (
	"errors"

	"ai-contentgen-be/pkg/pipeline"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware converts service errors into the standard response envelope.
// Pipeline errors carry their own semantics: an invalid run state is the caller's
// fault (400), a failed stage is an upstream generation failure (502).
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Message))
		}

		var invalidState *pipeline.InvalidRunStateError
		if errors.As(err, &invalidState) {
			return ctx.Status(fiber.StatusBadRequest).JSON(ErrorResponse(invalidState.Error()))
		}

		var stageErr *pipeline.StageError
		if errors.As(err, &stageErr) {
			return ctx.Status(fiber.StatusBadGateway).JSON(ErrorResponse(stageErr.Error()))
		}

		if errors.Is(err, pipeline.ErrRunCancelled) {
			return ctx.Status(fiber.StatusConflict).JSON(ErrorResponse(err.Error()))
		}

		if errors.Is(err, pipeline.ErrRunNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(ErrorResponse(err.Error()))
		}

		return ctx.Status(fiber.StatusInternalServerError).JSON(ErrorResponse(err.Error()))
	}
}
