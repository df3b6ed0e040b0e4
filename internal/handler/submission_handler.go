package handler

import (
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/gema-grader/internal/dto"
	"github.com/noah-isme/gema-grader/internal/service"
	"github.com/noah-isme/gema-grader/internal/utils"
)

const (
	fieldTransactionFile = "transaction_file"
	fieldPortfolioFile   = "portfolio_file"
)

// SubmissionHandler accepts homework uploads and serves graded results.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes to the provided router group. Limiters, when
// given, guard the upload endpoint only.
func (h *SubmissionHandler) Register(router fiber.Router, limiters ...fiber.Handler) {
	create := append(append([]fiber.Handler{}, limiters...), h.create)
	router.Post("", create...)
	router.Get("/:key", h.get)
}

func (h *SubmissionHandler) create(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form data is required")
	}

	files := 0
	for _, headers := range form.File {
		files += len(headers)
	}
	if files != 2 {
		return utils.SendError(c, fiber.StatusBadRequest, "exactly two .java files are required")
	}

	upload := dto.SubmissionUpload{
		StudentName:     firstValue(form, "student_name"),
		StudentEmail:    firstValue(form, "student_email"),
		TransactionFile: firstFile(form, fieldTransactionFile),
		PortfolioFile:   firstFile(form, fieldPortfolioFile),
	}

	response, err := h.service.Submit(requestContext(c), upload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission graded", response)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	response, err := h.service.Get(requestContext(c), c.Params("key"))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission retrieved", response)
}

func firstValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}

func firstFile(form *multipart.Form, key string) *multipart.FileHeader {
	if headers := form.File[key]; len(headers) > 0 {
		return headers[0]
	}
	return nil
}
