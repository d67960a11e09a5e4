package handler

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"drawing-service/internal/middleware"
	"drawing-service/internal/model"
	"drawing-service/internal/storage"
	"drawing-service/internal/tenant"
	"drawing-service/pkg/logger"
	"drawing-service/prometheus"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// MobileRegister creates an account for a mini-app caller and returns a
// compact bearer token.
func (h *Handler) MobileRegister(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.RegisterCounter.Inc()

	var req struct {
		Username       string `json:"username"`
		Password       string `json:"password"`
		Email          string `json:"email"`
		ActivationCode string `json:"activation_code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	code := strings.ToUpper(strings.TrimSpace(req.ActivationCode))
	prometheus.TenantProvisionCounter.Inc()
	user, err := h.accounts.Register(c.Request().Context(), req.Username, req.Password, req.Email, code)
	if err != nil {
		log.Error("Mobile registration failed", zap.String("username", req.Username), zap.Error(err))
		return fail(c, err)
	}

	return h.issueMobileToken(c, user, http.StatusCreated)
}

// MobileLogin authenticates a mini-app caller and returns a compact
// bearer token.
func (h *Handler) MobileLogin(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	user, err := h.accounts.Login(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		log.Error("Mobile login failed", zap.String("username", req.Username), zap.Error(err))
		prometheus.RecordAuthError("invalid_credentials")
		return fail(c, err)
	}

	return h.issueMobileToken(c, user, http.StatusOK)
}

func (h *Handler) issueMobileToken(c echo.Context, user *model.User, status int) error {
	token, err := h.tokens.Issue(user.ID, user.Username, user.ActivationCode, user.TenantKey)
	if err != nil {
		logger.FromEcho(c).Error("Failed to sign mobile token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal_error"})
	}
	prometheus.IncreaseActiveTokens()
	return c.JSON(status, echo.Map{
		"token": token,
		"user":  userResponse(user),
	})
}

// MobileVerify checks a token and echoes its payload. Mini-app clients
// use it to decide whether a cached token is still good.
func (h *Handler) MobileVerify(c echo.Context) error {
	payload, err := h.tokens.Verify(middleware.BearerOrForm(c))
	if err != nil {
		prometheus.RecordAuthError("invalid_token")
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"user": echo.Map{
			"id":              payload.UserID,
			"username":        payload.Username,
			"activation_code": payload.ActivationCode,
			"tenant_key":      payload.TenantKey,
		},
		"expires_at": payload.Expiry,
	})
}

// MobileUpload stores a PDF under the token's tenant: the file is written
// first and the row inserted second, and a failed insert removes the file
// so no row ever references a missing file.
func (h *Handler) MobileUpload(c echo.Context) error {
	log := logger.FromEcho(c)

	payload, err := h.tokens.Verify(middleware.BearerOrForm(c))
	if err != nil {
		prometheus.RecordAuthError("invalid_token")
		return fail(c, err)
	}

	productCode := strings.TrimSpace(c.FormValue("product_code"))
	if productCode == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		if fileHeader, err = c.FormFile("pdf_file"); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
		}
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".pdf") {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}
	defer src.Close()

	folder := tenant.FolderToken(payload.ActivationCode)
	fileName := storage.NewFileName(productCode)
	if err := h.files.Write(folder, fileName, src); err != nil {
		log.Error("Failed to store uploaded PDF", zap.Error(err))
		return fail(c, err)
	}

	identity := tenant.Identity{ExplicitCode: payload.ActivationCode}
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
		// Reverse the file write so the upload leaves no trace.
		if rmErr := h.files.Remove(folder, fileName); rmErr != nil {
			log.Warn("Failed to remove file after insert failure", zap.Error(rmErr))
		}
		return fail(c, err)
	}

	prometheus.UploadCounter.Inc()
	log.Info("Mobile upload stored",
		zap.String("product_code", productCode),
		zap.String("tenant_key", payload.TenantKey))

	pdfURL := fmt.Sprintf("/api/mobile/pdf/%d", created.ID)
	return c.JSON(http.StatusOK, echo.Map{
		"id":           created.ID,
		"product_code": created.ProductCode,
		"pdf_path":     created.PDFPath,
		"pdf_url":      pdfURL,
	})
}

// MobileServePDF streams a drawing's PDF, resolving the tenant from the
// token passed as a query parameter (mini-app webviews cannot set
// headers on document requests).
func (h *Handler) MobileServePDF(c echo.Context) error {
	payload, err := h.tokens.Verify(c.QueryParam("token"))
	if err != nil {
		prometheus.RecordAuthError("invalid_token")
		return fail(c, err)
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_input"})
	}

	identity := tenant.Identity{ExplicitCode: payload.ActivationCode}
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

	folder := tenant.FolderToken(payload.ActivationCode)
	if !h.files.Exists(folder, drawing.PDFPath) {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not_found"})
	}
	return c.File(h.files.FullPath(folder, drawing.PDFPath))
}
