package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/formsync/internal/core"
	"github.com/vovakirdan/formsync/internal/proto"
	"github.com/vovakirdan/formsync/internal/store"
)

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// FormHandlers provides HTTP handlers for forms and responses. Reads go to
// the store directly; mutations go through the hub so channels see them.
type FormHandlers struct {
	hub   *core.Hub
	store store.Store
	log   *zerolog.Logger
}

// NewFormHandlers creates a new form handlers instance.
func NewFormHandlers(hub *core.Hub, st store.Store, logger *zerolog.Logger) *FormHandlers {
	return &FormHandlers{
		hub:   hub,
		store: st,
		log:   logger,
	}
}

// CreateFormRequest represents the create form request body.
type CreateFormRequest struct {
	Titulo    string `json:"titulo" binding:"required,max=200"`
	Descricao string `json:"descricao" binding:"max=2000"`
}

// ListForms lists the form collection.
// GET /api/formularios
func (h *FormHandlers) ListForms(c *gin.Context) {
	list, err := h.store.ListForms(c.Request.Context())
	if err != nil {
		h.fail(c, err, "failed to list forms")
		return
	}
	c.JSON(http.StatusOK, summariesToProto(list))
}

// CreateForm creates an empty form.
// POST /api/formularios
func (h *FormHandlers) CreateForm(c *gin.Context) {
	var req CreateFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid create form request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := h.hub.Do(c.Request.Context(), core.Command{
		Kind:        core.CommandCreateForm,
		Title:       req.Titulo,
		Description: req.Descricao,
	})
	if err != nil {
		h.fail(c, err, "failed to create form")
		return
	}

	h.log.Info().Str("form_id", res.Form.ID).Msg("form created")
	c.JSON(http.StatusCreated, formToProto(res.Form))
}

// GetForm returns one form.
// GET /api/formularios/:id
func (h *FormHandlers) GetForm(c *gin.Context) {
	form, err := h.store.GetForm(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to get form")
		return
	}
	c.JSON(http.StatusOK, formToProto(form))
}

// PatchForm applies the same field diff an update_formulario command carries.
// PATCH /api/formularios/:id
func (h *FormHandlers) PatchForm(c *gin.Context) {
	var patch proto.FormPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		h.log.Debug().Err(err).Msg("invalid patch request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := h.hub.Do(c.Request.Context(), core.Command{
		Kind:   core.CommandPatchForm,
		FormID: c.Param("id"),
		Patch:  patchFromProto(patch),
	})
	if err != nil {
		h.fail(c, err, "failed to patch form")
		return
	}
	c.JSON(http.StatusOK, formToProto(res.Form))
}

// DeleteForm removes a form.
// DELETE /api/formularios/:id
func (h *FormHandlers) DeleteForm(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.hub.Do(c.Request.Context(), core.Command{Kind: core.CommandDeleteForm, FormID: id}); err != nil {
		h.fail(c, err, "failed to delete form")
		return
	}
	h.log.Info().Str("form_id", id).Msg("form deleted")
	c.Status(http.StatusNoContent)
}

// ListResponses lists responses of a form, newest first.
// GET /api/formularios/:id/respostas
func (h *FormHandlers) ListResponses(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")

	if _, err := h.store.GetForm(ctx, id); err != nil {
		h.fail(c, err, "failed to get form")
		return
	}
	list, err := h.store.ListResponses(ctx, id)
	if err != nil {
		h.fail(c, err, "failed to list responses")
		return
	}
	c.JSON(http.StatusOK, responsesToProto(list))
}

// CreateResponse stores a submission.
// POST /api/formularios/:id/respostas
func (h *FormHandlers) CreateResponse(c *gin.Context) {
	var req proto.NewResponse
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid response request")
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return
	}

	res, err := h.hub.Do(c.Request.Context(), core.Command{
		Kind:    core.CommandCreateResponse,
		FormID:  c.Param("id"),
		Answers: req.Respostas,
	})
	if err != nil {
		h.fail(c, err, "failed to create response")
		return
	}
	c.JSON(http.StatusCreated, responseToProto(res.Response))
}

// DeleteResponse removes a submission.
// DELETE /api/formularios/:id/respostas/:rid
func (h *FormHandlers) DeleteResponse(c *gin.Context) {
	_, err := h.hub.Do(c.Request.Context(), core.Command{
		Kind:       core.CommandDeleteResponse,
		FormID:     c.Param("id"),
		ResponseID: c.Param("rid"),
	})
	if err != nil {
		h.fail(c, err, "failed to delete response")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FormHandlers) fail(c *gin.Context, err error, msg string) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg(msg)
		c.JSON(status, ErrorResponse{Error: "internal server error"})
		return
	}
	c.JSON(status, ErrorResponse{Error: core.AsCoreError(err).Message})
}

func statusFor(err error) int {
	if errors.Is(err, store.ErrNotFound) {
		return http.StatusNotFound
	}
	var ce *core.CoreError
	if errors.As(err, &ce) {
		switch ce.Code {
		case core.ErrCodeFormNotFound, core.ErrCodeResponseNotFound:
			return http.StatusNotFound
		case core.ErrCodeBadRequest:
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}
