package ap

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/amase-cc/apremind/store"
	"github.com/amase-cc/apremind/types"
	"github.com/amase-cc/apremind/world"
)

var tracer = otel.Tracer("activitypub")

type Handler struct {
	service *Service
}

func NewHandler(service *Service) Handler {
	return Handler{service}
}

func (h Handler) WebFinger(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "WebFinger")
	defer span.End()

	resource := c.QueryParam("resource")
	result, err := h.service.WebFinger(ctx, resource)
	if err != nil {
		span.RecordError(err)
		return c.JSON(http.StatusNotFound, map[string]string{"message": "Not Found"})
	}

	c.Response().Header().Set("Content-Type", world.JRDJSONMediaType)
	return c.JSON(http.StatusOK, result)
}

func (h Handler) HostMeta(c echo.Context) error {
	_, span := tracer.Start(c.Request().Context(), "HostMeta")
	defer span.End()

	xrd := `<?xml version="1.0" encoding="UTF-8"?>
<XRD xmlns="http://docs.oasis-open.org/ns/xri/xrd-1.0">
  <Link rel="lrdd" template="https://` + h.service.config.FQDN + `/.well-known/webfinger?resource={uri}"/>
</XRD>`
	return c.Blob(http.StatusOK, "application/xrd+xml", []byte(xrd))
}

// NodeInfo handles nodeinfo requests
func (h Handler) NodeInfo(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "NodeInfo")
	defer span.End()

	result, err := h.service.NodeInfo(ctx)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusInternalServerError, "Internal server error: "+err.Error())
	}

	c.Response().Header().Set("Content-Type", "application/json")
	return c.JSON(http.StatusOK, result)
}

func (h Handler) NodeInfoWellKnown(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "NodeInfoWellKnown")
	defer span.End()

	result, err := h.service.NodeInfoWellKnown(ctx)

	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusInternalServerError, "Internal server error: "+err.Error())
	}

	c.Response().Header().Set("Content-Type", "application/json")
	return c.JSON(http.StatusOK, result)
}

// --

func (h Handler) Actor(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Actor")
	defer span.End()

	result := h.service.Actor(ctx)

	c.Response().Header().Set("Content-Type", world.ActivityJSONMediaType)
	return c.JSON(http.StatusOK, result)
}

func (h Handler) Outbox(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Outbox")
	defer span.End()

	result := h.service.Outbox(ctx)

	c.Response().Header().Set("Content-Type", world.ActivityJSONMediaType)
	return c.JSON(http.StatusOK, result)
}

func (h Handler) Note(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Note")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return c.String(http.StatusBadRequest, "Invalid noteID")
	}

	result, err := h.service.Note(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			span.RecordError(err)
		}
		return c.String(http.StatusNotFound, "note not found")
	}

	c.Response().Header().Set("Content-Type", world.ActivityJSONMediaType)
	return c.JSON(http.StatusOK, result)
}

func (h Handler) Create(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "Create")
	defer span.End()

	id := c.Param("id")
	if id == "" {
		return c.String(http.StatusBadRequest, "Invalid createID")
	}

	result, err := h.service.Create(ctx, id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			span.RecordError(err)
		}
		return c.String(http.StatusNotFound, "create not found")
	}

	c.Response().Header().Set("Content-Type", world.ActivityJSONMediaType)
	return c.JSON(http.StatusOK, result)
}

func (h Handler) Inbox(c echo.Context) error {
	ctx, span := tracer.Start(c.Request().Context(), "HandlerAPInbox")
	defer span.End()

	var object types.ApObject
	err := c.Bind(&object)
	if err != nil {
		span.RecordError(err)
		return c.String(http.StatusBadRequest, "Invalid request body")
	}

	err = h.service.Inbox(ctx, object)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, ErrActorUnresolvable) {
			return c.String(http.StatusBadRequest, "actor could not be resolved")
		}
		return c.String(http.StatusInternalServerError, "Internal server error: "+err.Error())
	}

	return c.NoContent(http.StatusAccepted)
}
