package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"drawing-service/internal/middleware"
	"drawing-service/internal/model"
	"drawing-service/internal/storage"
	"drawing-service/internal/tenant"
	"drawing-service/pkg/logger"
	"drawing-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Search looks up a drawing by exact product code in the caller's tenant.
func (h *Handler) Search(c echo.Context) error {
	prometheus.RecordSearch("exact")
	defer prometheus.TrackDBOperation("query")(time.Now())

	var req struct {
		ProductCode string `json:"product_code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	req.ProductCode = strings.TrimSpace(req.ProductCode)

	identity := middleware.IdentityFromEcho(c)
	var drawing *model.Drawing
	err := h.router.WithTenant(c.Request().Context(), identity, func(th *tenant.Handle) error {
		found, searchErr := h.drawings.SearchExact(th, req.ProductCode)
		if searchErr != nil {
			return searchErr
		}
		drawing = found
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	folder := tenant.FolderToken(identity.ActivationCode)
	return c.JSON(http.StatusOK, echo.Map{
		"drawing":    drawing,
		"pdf_exists": h.files.Exists(folder, drawing.PDFPath),
	})
}

// SearchFuzzy returns drawings whose product code contains the keyword,
// in lexicographic order.
func (h *Handler) SearchFuzzy(c echo.Context) error {
	prometheus.RecordSearch("fuzzy")

	var req struct {
		Keyword string `json:"keyword"`
		Limit   int    `json:"limit"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	req.Keyword = strings.TrimSpace(req.Keyword)

	var drawings []model.Drawing
	err := h.router.WithTenant(c.Request().Context(), middleware.IdentityFromEcho(c), func(th *tenant.Handle) error {
		found, searchErr := h.drawings.SearchFuzzy(th, req.Keyword, req.Limit)
		if searchErr != nil {
			return searchErr
		}
		drawings = found
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"drawings": drawings,
		"count":    len(drawings),
	})
}

// ServePDF streams a drawing's PDF for a session caller.
func (h *Handler) ServePDF(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	identity := middleware.IdentityFromEcho(c)
	var drawing *model.Drawing
	err = h.router.WithTenant(c.Request().Context(), identity, func(th *tenant.Handle) error {
		found, getErr := h.drawings.GetByID(th, uint(id))
		if getErr != nil {
			return getErr
		}
		drawing = found
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	folder := tenant.FolderToken(identity.ActivationCode)
	if !h.files.Exists(folder, drawing.PDFPath) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}
	return c.File(h.files.FullPath(folder, drawing.PDFPath))
}

// Statistics returns the drawing count for the caller's tenant. Responses
// are never cached so the count stays live.
func (h *Handler) Statistics(c echo.Context) error {
	var total int64
	err := h.router.WithTenant(c.Request().Context(), middleware.IdentityFromEcho(c), func(th *tenant.Handle) error {
		count, countErr := h.drawings.Count(th)
		if countErr != nil {
			return countErr
		}
		total = count
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	c.Response().Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	c.Response().Header().Set("Pragma", "no-cache")
	c.Response().Header().Set("Expires", "0")
	return c.JSON(http.StatusOK, echo.Map{
		"total_drawings": total,
	})
}

// ListDrawings returns the tenant's drawings for the admin data view.
func (h *Handler) ListDrawings(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	var drawings []model.Drawing
	err := h.router.WithTenant(c.Request().Context(), middleware.IdentityFromEcho(c), func(th *tenant.Handle) error {
		found, listErr := h.drawings.List(th, limit)
		if listErr != nil {
			return listErr
		}
		drawings = found
		return nil
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"drawings": drawings,
		"count":    len(drawings),
	})
}

// AddDrawing registers a drawing row for an already-stored file.
func (h *Handler) AddDrawing(c echo.Context) error {
	var req struct {
		ProductCode string `json:"product_code"`
		PDFPath     string `json:"pdf_path"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	var created *model.Drawing
	err := h.router.WithTenant(c.Request().Context(), middleware.IdentityFromEcho(c), func(th *tenant.Handle) error {
		drawing, insertErr := h.drawings.Insert(th, strings.TrimSpace(req.ProductCode), strings.TrimSpace(req.PDFPath))
		if insertErr != nil {
			return insertErr
		}
		created = drawing
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

// AddDrawingsBatch imports many drawing rows at once, skipping product
// codes the tenant already has. Used for migrating an existing PDF
// library into a fresh tenant.
func (h *Handler) AddDrawingsBatch(c echo.Context) error {
	var req struct {
		Drawings []struct {
			ProductCode string `json:"product_code"`
			PDFPath     string `json:"pdf_path"`
		} `json:"drawings"`
	}
	if err := c.Bind(&req); err != nil || len(req.Drawings) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	rows := make([]model.Drawing, 0, len(req.Drawings))
	for _, d := range req.Drawings {
		code := strings.TrimSpace(d.ProductCode)
		path := strings.TrimSpace(d.PDFPath)
		if code == "" || path == "" {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
		}
		rows = append(rows, model.Drawing{ProductCode: code, PDFPath: path})
	}

	var added, skipped int
	err := h.router.WithTenant(c.Request().Context(), middleware.IdentityFromEcho(c), func(th *tenant.Handle) error {
		var batchErr error
		added, skipped, batchErr = h.drawings.BatchInsert(th, rows)
		return batchErr
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"added":   added,
		"skipped": skipped,
	})
}

// UpdateDrawing changes a drawing's product code and/or stored path.
func (h *Handler) UpdateDrawing(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	var req struct {
		ProductCode string `json:"product_code"`
		PDFPath     string `json:"pdf_path"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	var updated *model.Drawing
	err = h.router.WithTenant(c.Request().Context(), middleware.IdentityFromEcho(c), func(th *tenant.Handle) error {
		drawing, updateErr := h.drawings.Update(th, uint(id), strings.TrimSpace(req.ProductCode), strings.TrimSpace(req.PDFPath))
		if updateErr != nil {
			return updateErr
		}
		updated = drawing
		return nil
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

// UploadDrawing stores a new PDF and its row in one request. File first,
// row second; a failed insert removes the file.
func (h *Handler) UploadDrawing(c echo.Context) error {
	log := logger.FromEcho(c)

	productCode := strings.TrimSpace(c.FormValue("product_code"))
	fileHeader, err := c.FormFile("pdf_file")
	if productCode == "" || err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	defer src.Close()

	identity := middleware.IdentityFromEcho(c)
	folder := tenant.FolderToken(identity.ActivationCode)
	fileName := storage.NewFileName(productCode)
	if err := h.files.Write(folder, fileName, src); err != nil {
		log.Error("Failed to store uploaded PDF", zap.Error(err))
		return fail(c, err)
	}

	var created *model.Drawing
	err = h.router.WithTenant(c.Request().Context(), identity, func(th *tenant.Handle) error {
		drawing, insertErr := h.drawings.Insert(th, productCode, fileName)
		if insertErr != nil {
			return insertErr
		}
		created = drawing
		return nil
	})
	if err != nil {
		if rmErr := h.files.Remove(folder, fileName); rmErr != nil {
			log.Warn("Failed to remove file after insert failure", zap.Error(rmErr))
		}
		return fail(c, err)
	}

	prometheus.UploadCounter.Inc()
	return c.JSON(http.StatusCreated, created)
}

// UpdateDrawingFile replaces a drawing's PDF (and optionally its product
// code). The new file is written first; the old file is quarantined only
// after the row update commits.
func (h *Handler) UpdateDrawingFile(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	productCode := strings.TrimSpace(c.FormValue("product_code"))
	fileHeader, err := c.FormFile("pdf_file")
	if productCode == "" || err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	defer src.Close()

	identity := middleware.IdentityFromEcho(c)
	folder := tenant.FolderToken(identity.ActivationCode)
	fileName := storage.NewFileName(productCode)
	if err := h.files.Write(folder, fileName, src); err != nil {
		log.Error("Failed to store replacement PDF", zap.Error(err))
		return fail(c, err)
	}

	var oldPath string
	var updated *model.Drawing
	err = h.router.WithTenant(c.Request().Context(), identity, func(th *tenant.Handle) error {
		current, getErr := h.drawings.GetByID(th, uint(id))
		if getErr != nil {
			return getErr
		}
		oldPath = current.PDFPath
		drawing, updateErr := h.drawings.Update(th, uint(id), productCode, fileName)
		if updateErr != nil {
			return updateErr
		}
		updated = drawing
		return nil
	})
	if err != nil {
		if rmErr := h.files.Remove(folder, fileName); rmErr != nil {
			log.Warn("Failed to remove file after update failure", zap.Error(rmErr))
		}
		return fail(c, err)
	}

	// Best effort: quarantine the superseded file.
	if oldPath != "" && oldPath != fileName {
		if _, qErr := h.files.Quarantine(folder, oldPath); qErr != nil {
			log.Warn("Failed to quarantine replaced PDF", zap.String("pdf_path", oldPath), zap.Error(qErr))
		}
	}

	prometheus.UploadCounter.Inc()
	return c.JSON(http.StatusOK, updated)
}

// DeleteDrawing removes a drawing row and quarantines its file. The file
// is moved first and restored if the row delete fails, so no row is ever
// left pointing at a missing file.
func (h *Handler) DeleteDrawing(c echo.Context) error {
	log := logger.FromEcho(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	identity := middleware.IdentityFromEcho(c)
	if err := h.deleteOne(c, identity, uint(id)); err != nil {
		return fail(c, err)
	}
	log.Info("Drawing deleted", zap.Uint64("id", id))
	return c.JSON(http.StatusOK, echo.Map{"deleted_count": 1})
}

// DeleteDrawingsBatch removes several drawings, continuing past
// individual failures and reporting how many succeeded.
func (h *Handler) DeleteDrawingsBatch(c echo.Context) error {
	log := logger.FromEcho(c)

	var req struct {
		IDs []uint `json:"ids"`
	}
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	identity := middleware.IdentityFromEcho(c)
	deleted := 0
	for _, id := range req.IDs {
		if err := h.deleteOne(c, identity, id); err != nil {
			log.Warn("Batch delete: skipping drawing", zap.Uint("id", id), zap.Error(err))
			continue
		}
		deleted++
	}

	return c.JSON(http.StatusOK, echo.Map{"deleted_count": deleted})
}

// deleteOne quarantines a drawing's file, then deletes its row,
// restoring the file if the row delete fails.
func (h *Handler) deleteOne(c echo.Context, identity tenant.Identity, id uint) error {
	log := logger.FromEcho(c)
	folder := tenant.FolderToken(identity.ActivationCode)

	var drawing *model.Drawing
	err := h.router.WithTenant(c.Request().Context(), identity, func(th *tenant.Handle) error {
		found, getErr := h.drawings.GetByID(th, id)
		if getErr != nil {
			return getErr
		}
		drawing = found
		return nil
	})
	if err != nil {
		return err
	}

	quarantined, err := h.files.Quarantine(folder, drawing.PDFPath)
	if err != nil {
		return err
	}

	err = h.router.WithTenant(c.Request().Context(), identity, func(th *tenant.Handle) error {
		return h.drawings.Delete(th, drawing.ProductCode)
	})
	if err != nil {
		if quarantined != "" {
			if restoreErr := h.files.Unquarantine(folder, drawing.PDFPath); restoreErr != nil {
				log.Warn("Failed to restore quarantined PDF after delete failure",
					zap.String("pdf_path", drawing.PDFPath), zap.Error(restoreErr))
			}
		}
		return err
	}
	return nil
}
