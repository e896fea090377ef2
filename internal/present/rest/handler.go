package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/zeebo/xxh3"

	"github.com/totegamma/lostfound"
	"github.com/totegamma/lostfound/internal/domain"
	"github.com/totegamma/lostfound/internal/infra/artifact"
	"github.com/totegamma/lostfound/internal/present/rest/middleware"
	"github.com/totegamma/lostfound/internal/present/rest/presenter"
	"github.com/totegamma/lostfound/internal/usecase"
)

const maxImportSize = 5 << 20

// Subscriber streams registry events of the given offices.
type Subscriber interface {
	Subscribe(ctx context.Context, offices []string) (<-chan lostfound.Event, error)
}

type Handler struct {
	version string
	offices []domain.Office
	dataDir string
	item    *usecase.ItemUsecase
	auth    *middleware.AuthMiddleware
	signal  Subscriber
}

func NewHandler(
	version string,
	offices []domain.Office,
	dataDir string,
	item *usecase.ItemUsecase,
	auth *middleware.AuthMiddleware,
	signal Subscriber,
) *Handler {
	return &Handler{
		version: version,
		offices: offices,
		dataDir: dataDir,
		item:    item,
		auth:    auth,
		signal:  signal,
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/info", h.handleInfo)
	e.GET("/api/realtime", h.handleRealtime)

	api := e.Group("/api", h.auth.IdentifyOffice)
	api.GET("/items", h.handleList)
	api.GET("/item/:id", h.handleFetch)
	api.POST("/publish-data", h.handlePublish, h.auth.RequireClerk)
	api.POST("/import-xml", h.handleImportXML, h.auth.RequireClerk)
	api.POST("/item/:id/return", h.handleReturn, h.auth.RequireClerk)

	e.GET("/files/:office/"+artifact.RegistryFile, h.handleRegistryFile)
	e.GET("/files/:office/qr/:name", h.handleArtifactFile)
	e.GET("/files/:office/xml/:name", h.handleArtifactFile)
}

func (h *Handler) handleInfo(c echo.Context) error {
	offices := make([]lostfound.OfficeInfo, 0, len(h.offices))
	for _, o := range h.offices {
		offices = append(offices, lostfound.OfficeInfo{
			Name:        o.Name,
			DisplayName: o.DisplayName,
			Categories:  o.Template.Categories,
			Registry:    "/files/" + o.Name + "/" + artifact.RegistryFile,
		})
	}

	info := lostfound.Info{
		Version: h.version,
		Offices: offices,
		Endpoints: map[string]lostfound.Endpoint{
			"lostfound.publish": {
				Template: "/api/publish-data",
				Method:   "POST",
				Query:    &[]string{"office"},
			},
			"lostfound.import": {
				Template: "/api/import-xml",
				Method:   "POST",
				Query:    &[]string{"office"},
			},
			"lostfound.item": {
				Template: "/api/item/{id}",
				Method:   "GET",
				Query:    &[]string{"office"},
			},
			"lostfound.return": {
				Template: "/api/item/{id}/return",
				Method:   "POST",
				Query:    &[]string{"office"},
			},
			"lostfound.items": {
				Template: "/api/items",
				Method:   "GET",
				Query:    &[]string{"office", "returned"},
			},
			"lostfound.realtime": {
				Template: "/api/realtime",
				Method:   "GET",
				Query:    &[]string{"office"},
			},
		},
	}
	return presenter.OK(c, info)
}

func (h *Handler) handlePublish(c echo.Context) error {
	ctx := c.Request().Context()

	var form lostfound.FormData
	if err := c.Bind(&form); err != nil {
		return presenter.BadRequest(c, err)
	}

	result, err := h.item.Publish(ctx, middleware.Office(c), form)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleImportXML(c echo.Context) error {
	ctx := c.Request().Context()

	var body io.Reader = c.Request().Body
	if strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEMultipartForm) {
		fh, err := c.FormFile("xmlFile")
		if err != nil {
			return presenter.BadRequestMessage(c, "xmlFile is required")
		}
		f, err := fh.Open()
		if err != nil {
			return presenter.InternalError(c, err)
		}
		defer f.Close()
		body = f
	}

	data, err := io.ReadAll(io.LimitReader(body, maxImportSize+1))
	if err != nil {
		return presenter.BadRequest(c, err)
	}
	if len(data) > maxImportSize {
		return presenter.BadRequestMessage(c, "document too large")
	}
	if len(data) == 0 {
		return presenter.BadRequestMessage(c, "empty document")
	}

	result, err := h.item.ImportXML(ctx, middleware.Office(c), data)
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleFetch(c echo.Context) error {
	ctx := c.Request().Context()

	rec, err := h.item.FetchByID(ctx, middleware.Office(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}

	body, err := json.Marshal(h.item.Item(rec))
	if err != nil {
		return presenter.InternalError(c, err)
	}

	etag := fmt.Sprintf(`"%016x"`, xxh3.Hash(body))
	c.Response().Header().Set("ETag", etag)
	if c.Request().Header.Get("If-None-Match") == etag {
		return c.NoContent(http.StatusNotModified)
	}
	return c.JSONBlob(http.StatusOK, body)
}

func (h *Handler) handleReturn(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.item.MarkReturned(ctx, middleware.Office(c), c.Param("id"))
	if err != nil {
		return presenter.Error(c, err)
	}
	return presenter.OK(c, result)
}

func (h *Handler) handleList(c echo.Context) error {
	ctx := c.Request().Context()

	var returned *bool
	if q := c.QueryParam("returned"); q != "" {
		v, err := strconv.ParseBool(q)
		if err != nil {
			return presenter.BadRequestMessage(c, "returned must be true or false")
		}
		returned = &v
	}

	records, err := h.item.List(ctx, middleware.Office(c), returned)
	if err != nil {
		return presenter.Error(c, err)
	}

	items := make([]lostfound.Item, 0, len(records))
	for _, rec := range records {
		items = append(items, h.item.Item(rec))
	}
	return presenter.OK(c, items)
}

func (h *Handler) knownOffice(name string) bool {
	for _, o := range h.offices {
		if o.Name == name {
			return true
		}
	}
	return false
}

func (h *Handler) handleRegistryFile(c echo.Context) error {
	office := c.Param("office")
	if !h.knownOffice(office) {
		return presenter.NotFound(c, "office not found")
	}
	c.Response().Header().Set(echo.HeaderContentType, "text/csv; charset=utf-8")
	return c.File(filepath.Join(h.dataDir, office, artifact.RegistryFile))
}

func (h *Handler) handleArtifactFile(c echo.Context) error {
	office := c.Param("office")
	name := c.Param("name")
	if !h.knownOffice(office) {
		return presenter.NotFound(c, "office not found")
	}

	var dir string
	switch {
	case strings.HasPrefix(name, "qr-") && strings.HasSuffix(name, ".png"):
		dir = "qr"
	case strings.HasSuffix(name, ".xml"):
		dir = "xml"
	default:
		return presenter.NotFound(c, "file not found")
	}
	if filepath.Base(name) != name || !strings.HasSuffix(c.Path(), "/"+dir+"/:name") {
		return presenter.NotFound(c, "file not found")
	}
	return c.File(filepath.Join(h.dataDir, office, dir, name))
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) handleRealtime(c echo.Context) error {
	if h.signal == nil {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "realtime is not enabled"})
	}

	offices := c.QueryParams()["office"]
	if len(offices) == 0 {
		for _, o := range h.offices {
			offices = append(offices, o.Name)
		}
	}

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"Failed to upgrade WebSocket",
			slog.String("error", err.Error()),
			slog.String("module", "socket"),
		)
		return err
	}
	defer ws.Close()

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	events, err := h.signal.Subscribe(ctx, offices)
	if err != nil {
		slog.ErrorContext(ctx, "subscribe failed", slog.String("error", err.Error()), slog.String("module", "socket"))
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"))
		return nil
	}

	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				wsErr, ok := err.(*websocket.CloseError)
				if !ok || !(wsErr.Code == websocket.CloseNormalClosure || wsErr.Code == websocket.CloseGoingAway) {
					slog.DebugContext(
						ctx, "WebSocket closed",
						slog.String("error", err.Error()),
						slog.String("module", "socket"),
					)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				return nil
			}
			if err := ws.WriteJSON(event); err != nil {
				slog.ErrorContext(
					ctx, "Error writing message",
					slog.String("error", err.Error()),
					slog.String("module", "socket"),
				)
				return nil
			}
		}
	}
}
