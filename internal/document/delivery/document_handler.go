package delivery

import (
	"net/http"
	"strconv"

	"github.com/allan-cais/besunny-ai-sub007/internal/document/repository"

	"github.com/gin-gonic/gin"
)

// DocumentHandler serves document reads.
type DocumentHandler struct {
	docRepo repository.DocumentRepository
}

func NewDocumentHandler(docRepo repository.DocumentRepository) *DocumentHandler {
	return &DocumentHandler{docRepo: docRepo}
}

func (h *DocumentHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	docs, total, err := h.docRepo.ListByUser(c.GetString("userID"), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list documents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"documents": docs,
		"total":     total,
	})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	doc, err := h.docRepo.FindByID(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load document"})
		return
	}
	if doc == nil || doc.UserID != c.GetString("userID") {
		c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
		return
	}
	c.JSON(http.StatusOK, doc)
}
