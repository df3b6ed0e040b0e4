package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

// DashboardHandler serves the professor dashboard.
type DashboardHandler struct {
	dashboard service.DashboardService
	reviews   service.ReviewService
	logger    zerolog.Logger
}

// NewDashboardHandler constructs a DashboardHandler.
func NewDashboardHandler(dashboard service.DashboardService, reviews service.ReviewService, logger zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{
		dashboard: dashboard,
		reviews:   reviews,
		logger:    logger.With().Str("component", "dashboard_handler").Logger(),
	}
}

// Register binds the dashboard routes. Callers apply authentication.
func (h *DashboardHandler) Register(router fiber.Router) {
	router.Get("/summary", h.summary)
	router.Get("/submissions", h.list)
	router.Get("/submissions/:key", h.detail)
	router.Post("/submissions/:key/review", h.review)
}

func (h *DashboardHandler) summary(c *fiber.Ctx) error {
	summary, err := h.dashboard.Summary(requestContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "dashboard summary", summary)
}

func (h *DashboardHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	pageSize, err := parseQueryInt(c, "page_size")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page_size")
	}

	response, err := h.dashboard.List(requestContext(c), dto.SubmissionListRequest{
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", response)
}

func (h *DashboardHandler) detail(c *fiber.Ctx) error {
	response, err := h.dashboard.Get(requestContext(c), c.Params("key"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", response)
}

func (h *DashboardHandler) review(c *fiber.Ctx) error {
	var payload dto.ReviewRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	response, err := h.reviews.Review(requestContext(c), c.Params("key"), payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "review stored", response)
}
