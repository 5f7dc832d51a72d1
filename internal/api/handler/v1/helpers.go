package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vietanh2810/certcheck-api/internal/api/handler/v1/response"
	"github.com/vietanh2810/certcheck-api/internal/api/middleware"
)

var errNoActor = errors.New("no authenticated organizer")

// HandleHealthcheck godoc
// @Summary      Healthcheck
// @Tags         health
// @Produce      json
// @Success      200  {object}  response.HealthResponse
// @Router       / [get]
func HandleHealthcheck(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, response.HealthResponse{Status: "ok", Time: time.Now().UTC()})
}

// actorFromContext is the organizer id the authenticator stored; every
// resource below is scoped to it.
func actorFromContext(ctx *gin.Context) (uint, *response.Err) {
	id := middleware.UserID(ctx)
	if id == 0 {
		return 0, response.ErrUnauthorized(errNoActor)
	}
	return id, nil
}

func uintParam(ctx *gin.Context, name string) (uint, *response.Err) {
	v, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || v == 0 {
		return 0, response.ErrBadRequest(fmt.Errorf("invalid %s %q", name, ctx.Param(name)))
	}
	return uint(v), nil
}

// uintList parses "1,2,3".
func uintList(raw string) ([]uint, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]uint, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", p)
		}
		ids = append(ids, uint(v))
	}
	return ids, nil
}
