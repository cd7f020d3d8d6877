package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/pokazuha/backend/internal/logging"
	"github.com/pokazuha/backend/internal/models"
	"github.com/pokazuha/backend/internal/repo"
	"github.com/pokazuha/backend/internal/service"
	"github.com/pokazuha/backend/internal/storage"
	"github.com/pokazuha/backend/internal/util"
)

type PostadHTTP struct {
	Svc   *service.PostadService
	Files *storage.FileStore
}

func (h *PostadHTTP) List(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)
	from, limit := util.Calculate(page, size)

	filter := repo.PostadFilter{
		Category: c.QueryParam("category"),
		Status:   c.QueryParam("status"),
		Offset:   from,
		Limit:    limit,
	}
	if filter.Status == "" {
		filter.Status = models.PostadStatusActive
	}

	total, ads, err := h.Svc.List(c.Request().Context(), filter)
	if err != nil {
		return postadError(err)
	}

	return c.JSON(http.StatusOK, paginatedResponse{
		Total: total, Page: page, Size: limit, Items: ads,
	})
}

// ListMine returns the caller's own ads in every moderation state.
func (h *PostadHTTP) ListMine(c echo.Context) error {
	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}

	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)
	from, limit := util.Calculate(page, size)

	filter := repo.PostadFilter{
		Status: c.QueryParam("status"),
		UserID: &userID,
		Offset: from,
		Limit:  limit,
	}

	total, ads, err := h.Svc.List(c.Request().Context(), filter)
	if err != nil {
		return postadError(err)
	}

	return c.JSON(http.StatusOK, paginatedResponse{
		Total: total, Page: page, Size: limit, Items: ads,
	})
}

func (h *PostadHTTP) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	ad, err := h.Svc.Get(c.Request().Context(), id)
	if err != nil {
		return postadError(err)
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *PostadHTTP) Search(c echo.Context) error {
	query := c.QueryParam("q")
	if query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query")
	}
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), 10)
	from, limit := util.Calculate(page, size)

	total, docs, err := h.Svc.Search(c.Request().Context(), query, from, limit)
	if err != nil {
		logging.FromContext(c.Request().Context()).Error("postad_search_failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "search unavailable")
	}

	return c.JSON(http.StatusOK, paginatedResponse{
		Total: total, Page: page, Size: limit, Items: docs,
	})
}

func (h *PostadHTTP) Create(c echo.Context) error {
	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}

	var req postadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ad, err := h.Svc.Create(c.Request().Context(), userID, service.PostadInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Location:    req.Location,
	})
	if err != nil {
		return postadError(err)
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *PostadHTTP) Update(c echo.Context) error {
	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req postadRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	ad, err := h.Svc.Update(c.Request().Context(), userID, CurrentUserRoles(c), id, service.PostadInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       req.Price,
		Category:    req.Category,
		Location:    req.Location,
	})
	if err != nil {
		return postadError(err)
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *PostadHTTP) Approve(c echo.Context) error {
	return h.moderate(c, true)
}

func (h *PostadHTTP) Reject(c echo.Context) error {
	return h.moderate(c, false)
}

func (h *PostadHTTP) moderate(c echo.Context, approve bool) error {
	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	decide := h.Svc.Reject
	if approve {
		decide = h.Svc.Approve
	}
	ad, err := decide(c.Request().Context(), userID, CurrentUserRoles(c), id)
	if err != nil {
		return postadError(err)
	}
	return c.JSON(http.StatusOK, ad)
}

func (h *PostadHTTP) Delete(c echo.Context) error {
	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Svc.Delete(c.Request().Context(), userID, CurrentUserRoles(c), id); err != nil {
		return postadError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}

func (h *PostadHTTP) UploadImage(c echo.Context) error {
	userID, ok := CurrentUserID(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	file, err := c.FormFile("image")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing image file")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read image file")
	}
	defer src.Close()

	path, err := h.Files.Save(id.String(), file.Filename, file.Size, src)
	if err != nil {
		if errors.Is(err, storage.ErrFileTooLarge) || errors.Is(err, storage.ErrBadContentType) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot store image")
	}

	position := parseIntDefault(c.FormValue("position"), 0)
	img, err := h.Svc.AttachImage(c.Request().Context(), userID, CurrentUserRoles(c), id, path, position)
	if err != nil {
		h.Files.Delete(path)
		return postadError(err)
	}
	return c.JSON(http.StatusOK, img)
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func postadError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, repo.ErrPostadNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "postad not found")
	case errors.Is(err, service.ErrNotOwner):
		return echo.NewHTTPError(http.StatusForbidden, "not allowed")
	}
	return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
}
