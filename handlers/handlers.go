package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"cardform-service/controller"
	"cardform-service/format"
	"cardform-service/logging"
	"cardform-service/models"
	"cardform-service/presentation"
	"cardform-service/service"
)

// FormHandler handles HTTP requests for payment forms
type FormHandler struct {
	store   *service.SessionStore
	catalog presentation.Catalog
}

// NewFormHandler creates a new form handler
func NewFormHandler(store *service.SessionStore, catalog presentation.Catalog) *FormHandler {
	return &FormHandler{
		store:   store,
		catalog: catalog,
	}
}

// RegisterRoutes mounts the page, the form API and the health check on r
func (h *FormHandler) RegisterRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(pageTemplate)

	r.GET("/", h.Page)
	r.GET("/static/form.js", h.Script)
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api/forms")
	api.POST("", h.CreateForm)
	api.GET("/:id", h.GetForm)
	api.POST("/:id/input", h.Input)
	api.POST("/:id/focus", h.Focus)
	api.POST("/:id/blur", h.Blur)
	api.POST("/:id/submit", h.Submit)
	api.POST("/:id/reset", h.Reset)
}

// Page renders the payment form
func (h *FormHandler) Page(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Cardholder":  format.PlaceholderCardholder,
		"CardNumber":  format.PlaceholderCardNumber,
		"Expiry":      format.PlaceholderExpiry,
		"ButtonLabel": h.catalog.ButtonIdle,
	})
}

// Script serves the page's event wiring
func (h *FormHandler) Script(c *gin.Context) {
	c.Data(http.StatusOK, "application/javascript; charset=utf-8", formScript)
}

// CreateForm starts a new form session
func (h *FormHandler) CreateForm(c *gin.Context) {
	sess, err := h.store.Create(c.Request.Context())
	if err != nil {
		logging.WithTraceContext(trace.SpanFromContext(c.Request.Context())).
			Error("Failed to create form session", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create form"})
		return
	}
	c.JSON(http.StatusCreated, sess.Snapshot())
}

// GetForm returns the current form view
func (h *FormHandler) GetForm(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Input applies a field change
func (h *FormHandler) Input(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req models.InputEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, err := models.ParseField(req.Field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	applied, err := sess.Controller.InputSeq(c.Request.Context(), field, req.Value, req.Seq)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !applied {
		logging.Debug("Dropped out-of-order input",
			zap.String("session_id", sess.ID),
			zap.String("field", string(field)),
			zap.Uint64("seq", req.Seq),
		)
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Focus enlarges a field
func (h *FormHandler) Focus(c *gin.Context) {
	h.focusChange(c, (*controller.Controller).Focus)
}

// Blur restores a field
func (h *FormHandler) Blur(c *gin.Context) {
	h.focusChange(c, (*controller.Controller).Blur)
}

func (h *FormHandler) focusChange(c *gin.Context, apply func(*controller.Controller, models.Field) error) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	var req models.FocusEvent
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, err := models.ParseField(req.Field)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := apply(sess.Controller, field); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// Submit validates the form and starts the simulated payment
func (h *FormHandler) Submit(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}

	sub, err := sess.Controller.Submit(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	snap := sess.Snapshot()
	if !sub.Accepted {
		c.JSON(http.StatusUnprocessableEntity, models.SubmitErrors{
			Error:  "validation failed",
			Fields: h.catalog.FieldErrors(sub.Failed),
			Form:   &snap,
		})
		return
	}

	trace.SpanFromContext(c.Request.Context()).AddEvent("payment_submission_started")
	c.JSON(http.StatusAccepted, snap)
}

// Reset clears the form
func (h *FormHandler) Reset(c *gin.Context) {
	sess, ok := h.session(c)
	if !ok {
		return
	}
	if err := sess.Controller.Reset(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess.Snapshot())
}

// HealthCheck handles health check requests
func (h *FormHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "sessions": h.store.Len()})
}

func (h *FormHandler) session(c *gin.Context) (*service.Session, bool) {
	sess, err := h.store.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return nil, false
	}
	return sess, true
}

func (h *FormHandler) fail(c *gin.Context, err error) {
	switch {
	case controller.IsUnknownField(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, controller.ErrSubmitInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, controller.ErrClosed):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		logging.WithTraceContext(trace.SpanFromContext(c.Request.Context())).
			Error("Form request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
