package controller

import (
	"ai-contentgen-be/internal/dto"
	"ai-contentgen-be/internal/pkg/serverutils"
	"ai-contentgen-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type IRunController interface {
	RegisterRoutes(r fiber.Router)
	StartRun(ctx *fiber.Ctx) error
	GetRun(ctx *fiber.Ctx) error
	ListRuns(ctx *fiber.Ctx) error
	ResumeRun(ctx *fiber.Ctx) error
	CancelRun(ctx *fiber.Ctx) error
	DeleteRun(ctx *fiber.Ctx) error
}

type runController struct {
	generateService service.IGenerateService
}

func NewRunController(generateService service.IGenerateService) IRunController {
	return &runController{
		generateService: generateService,
	}
}

func (c *runController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/generate/v1")
	h.Post("run", c.StartRun)
	h.Get("run", c.ListRuns)
	h.Get("run/:id", c.GetRun)
	h.Post("run/:id/resume", c.ResumeRun)
	h.Post("run/:id/cancel", c.CancelRun)
	h.Delete("run/:id", c.DeleteRun)
}

func (c *runController) StartRun(ctx *fiber.Ctx) error {
	var req dto.StartRunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.generateService.StartRun(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Run started", res))
}

func (c *runController) GetRun(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid run id")
	}

	res, err := c.generateService.GetRun(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success get run", res))
}

func (c *runController) ListRuns(ctx *fiber.Ctx) error {
	sessionId, err := uuid.Parse(ctx.Query("chat_session_id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid or missing chat_session_id")
	}

	res, err := c.generateService.ListRuns(ctx.Context(), sessionId)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success list runs", res))
}

func (c *runController) ResumeRun(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid run id")
	}

	res, err := c.generateService.ResumeRun(ctx.Context(), id)
	if err != nil {
		return err
	}

	return ctx.Status(fiber.StatusAccepted).JSON(serverutils.SuccessResponse("Run resumed", res))
}

func (c *runController) CancelRun(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid run id")
	}

	if err := c.generateService.CancelRun(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Run cancelled", nil))
}

func (c *runController) DeleteRun(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid run id")
	}

	if err := c.generateService.DeleteRun(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Run deleted", nil))
}
