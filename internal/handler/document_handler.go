package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/botdock/botdock/internal/pkg/errcode"
	"github.com/botdock/botdock/internal/pkg/response"
	"github.com/botdock/botdock/internal/service"
)

type DocumentHandler struct {
	documents *service.DocumentService
}

func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Upload accepts one multipart file and registers it for ingestion. The
// response carries the pending record; ingestion completes asynchronously
// and progress is visible through Get/List.
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "cannot read file")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "cannot read file")
		return
	}
	doc, err := h.documents.Upload(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"),
		fileHeader.Filename, fileHeader.Header.Get("Content-Type"), data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

// Notify re-triggers ingestion for an already registered document.
func (h *DocumentHandler) Notify(c *gin.Context) {
	doc, err := h.documents.Notify(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"), c.Param("document_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"), c.Param("document_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit := uint(0)
	if value := c.Query("limit"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			limit = uint(parsed)
		}
	}
	offset := uint(0)
	if value := c.Query("offset"); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			offset = uint(parsed)
		}
	}
	docs, err := h.documents.List(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"), c.Query("status"), limit, offset)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, docs)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), getOrgID(c), c.Param("chatbot_id"), c.Param("document_id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}
