package v1

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/storage"
)

type ArtifactReader interface {
	Get(ctx context.Context, path string) ([]byte, error)
}

// ArtifactHandler serves stored artifacts when the store has no public
// endpoint of its own (the embedded badger backend).
type ArtifactHandler struct {
	store ArtifactReader
}

func NewArtifactHandler(store ArtifactReader) *ArtifactHandler {
	return &ArtifactHandler{
		store: store,
	}
}

// HandleGetArtifact godoc
// @Summary      Download a stored artifact
// @Tags         certificates
// @Produce      png
// @Param        path  path  string  true  "Object path"
// @Success      200
// @Failure      404  {object}  response.Err
// @Router       /artifacts/{path} [get]
func (h *ArtifactHandler) HandleGetArtifact(ctx *gin.Context) {
	path, err := storage.CleanPath(ctx.Param("path"))
	if err != nil {
		response.RenderErr(ctx, response.ErrBadRequest(err))
		return
	}

	data, err := h.store.Get(ctx.Request.Context(), path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			response.RenderErr(ctx, response.ErrNotFound("artifact", "path", path))
			return
		}
		response.RenderErr(ctx, response.ErrInternalServerError(fmt.Errorf("v1.HandleGetArtifact -> h.store.Get -> %w", err)))
		return
	}

	ctx.Header("Cache-Control", "public, max-age=300")
	ctx.Data(http.StatusOK, http.DetectContentType(data), data)
}
