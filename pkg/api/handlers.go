package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"form-relay/pkg/apperrors"
	"form-relay/pkg/middleware"
	"form-relay/pkg/models"
	"form-relay/pkg/services"
)

const maxMultipartMemory = 8 << 20

// Options tune how submissions are read and answered
type Options struct {
	// TokenField is the body field holding the reCAPTCHA token
	TokenField string
	// FallbackToSource uses the source name as form name when form is absent
	FallbackToSource bool
	// StatusPerKind answers with a status per error kind instead of a flat 500
	StatusPerKind bool
}

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	submissionService services.SubmissionService
	opts              Options
	logger            *zap.Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(submissionService services.SubmissionService, opts Options, logger *zap.Logger) *Handlers {
	return &Handlers{
		submissionService: submissionService,
		opts:              opts,
		logger:            logger,
	}
}

// HealthCheck handler for monitoring
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// NotFound answers unmatched routes with the envelope
func (h *Handlers) NotFound(c *gin.Context) {
	Fail(c, http.StatusNotFound, "Not found")
}

// HandleFormSubmission processes a form post from a website
func (h *Handlers) HandleFormSubmission(c *gin.Context) {
	log := h.logger.With(zap.String("request_id", middleware.RequestID(c)))
	origin := h.origin(c, log)

	if err := parseBody(c.Request); err != nil {
		log.Warn("Error parsing form body", zap.Error(err))
		h.fail(c, apperrors.Validation("invalid form body"))
		return
	}

	sub := services.Submission{
		Origin:   origin,
		RemoteIP: c.ClientIP(),
		Fields:   make(map[string]string, len(c.Request.PostForm)),
	}
	for key, values := range c.Request.PostForm {
		if len(values) == 0 {
			continue
		}
		if key == h.opts.TokenField {
			sub.Token = values[0]
			continue
		}
		if values[0] != "" {
			sub.Fields[key] = values[0]
		}
	}

	if _, err := h.submissionService.ProcessSubmission(c.Request.Context(), sub); err != nil {
		h.fail(c, err)
		return
	}

	Success(c, nil)
}

// origin reads form and source from the query string
func (h *Handlers) origin(c *gin.Context, log *zap.Logger) models.Origin {
	source := c.Query("source")
	form := c.Query("form")
	if form == "" && source != "" && h.opts.FallbackToSource {
		log.Warn("Form name missing, using source", zap.String("source", source))
		form = source
	}
	if source == "" {
		source = models.UnknownOrigin
	}
	if form == "" {
		form = models.UnknownOrigin
	}
	return models.Origin{Form: form, Source: source}
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if h.opts.StatusPerKind {
		status = apperrors.HTTPStatus(apperrors.KindOf(err))
	}
	Fail(c, status, err.Error())
}

// parseBody fills r.PostForm from a urlencoded or multipart body
func parseBody(r *http.Request) error {
	err := r.ParseMultipartForm(maxMultipartMemory)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}
