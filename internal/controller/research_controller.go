package controller

import (
	"cc-intelligence-be/internal/dto"
	"cc-intelligence-be/internal/pkg/serverutils"
	"cc-intelligence-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IResearchController interface {
	RegisterRoutes(r fiber.Router)
	SendUtterance(ctx *fiber.Ctx) error
	SelectArea(ctx *fiber.Ctx) error
	SelectFollowUp(ctx *fiber.Ctx) error
	Retry(ctx *fiber.Ctx) error
	SwitchCompany(ctx *fiber.Ctx) error
	SetConsent(ctx *fiber.Ctx) error
	GetSession(ctx *fiber.Ctx) error
	GetAreas(ctx *fiber.Ctx) error
	ClearSession(ctx *fiber.Ctx) error
	ClearAllSessions(ctx *fiber.Ctx) error
}

type researchController struct {
	researchService service.IResearchService
}

func NewResearchController(researchService service.IResearchService) IResearchController {
	return &researchController{
		researchService: researchService,
	}
}

func (c *researchController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/research/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("utterance", c.SendUtterance)
	h.Post("area", c.SelectArea)
	h.Post("follow-up", c.SelectFollowUp)
	h.Post("retry", c.Retry)
	h.Post("company/switch", c.SwitchCompany)
	h.Post("consent", c.SetConsent)
	h.Get("session", c.GetSession)
	h.Get("areas", c.GetAreas)
	h.Delete("session/:company", c.ClearSession)
	h.Delete("sessions", c.ClearAllSessions)
}

func (c *researchController) SendUtterance(ctx *fiber.Ctx) error {
	var req dto.SendUtteranceRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.SendUtterance(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success send utterance", res))
}

func (c *researchController) SelectArea(ctx *fiber.Ctx) error {
	var req dto.SelectAreaRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.SelectArea(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select research area", res))
}

func (c *researchController) SelectFollowUp(ctx *fiber.Ctx) error {
	var req dto.SelectFollowUpRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.SelectFollowUp(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success select follow-up", res))
}

func (c *researchController) Retry(ctx *fiber.Ctx) error {
	var req dto.RetryRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.Retry(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success retry research", res))
}

func (c *researchController) SwitchCompany(ctx *fiber.Ctx) error {
	var req dto.SwitchCompanyRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.researchService.SwitchCompany(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success switch company", res))
}

func (c *researchController) SetConsent(ctx *fiber.Ctx) error {
	var req dto.ConsentRequest
	if err := ctx.BodyParser(&req); err != nil {
		return err
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	if err := c.researchService.SetConsent(ctx.Context(), &req); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success set research consent", nil))
}

func (c *researchController) GetSession(ctx *fiber.Ctx) error {
	res, err := c.researchService.GetSession(ctx.Context())
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success show session", res))
}

func (c *researchController) GetAreas(ctx *fiber.Ctx) error {
	res := c.researchService.GetAreas(ctx.Context())

	return ctx.JSON(serverutils.SuccessResponse("Success list research areas", res))
}

func (c *researchController) ClearSession(ctx *fiber.Ctx) error {
	company := ctx.Params("company")
	if company == "" {
		return fiber.NewError(fiber.StatusBadRequest, "company is required")
	}

	if err := c.researchService.ClearSession(ctx.Context(), company); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear session", nil))
}

func (c *researchController) ClearAllSessions(ctx *fiber.Ctx) error {
	if err := c.researchService.ClearAllSessions(ctx.Context()); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Success clear all sessions", nil))
}
