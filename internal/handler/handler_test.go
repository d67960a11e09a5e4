package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"drawing-service/internal/apperr"
	"drawing-service/internal/middleware"
	"drawing-service/internal/repository"
	"drawing-service/internal/storage"
	"drawing-service/internal/tenant"
	"drawing-service/internal/testutil"
	"drawing-service/pkg/config"
	"drawing-service/pkg/jwtutil"
	"drawing-service/pkg/mobiletoken"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"
)

const handlerTestCode = "VB-HANDLERTESTS-0001"

func setupHandler(t *testing.T) (*Handler, *echo.Echo, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	files := testutil.SetupTestStore(t)
	provisioner := tenant.NewProvisioner(db, files)
	router := tenant.NewRouter(db, provisioner)

	cfg := &config.Config{
		JWT:   config.JWTConfig{SigningKey: "test-signing-key", ExpirationHours: 1},
		Token: config.TokenConfig{Secret: "test-token-secret", TTL: time.Hour},
	}
	h := New(
		cfg,
		router,
		repository.NewDrawingRepository(100),
		repository.NewAccountRepository(db, provisioner),
		files,
		mobiletoken.NewCodec(cfg.Token.Secret, cfg.Token.TTL),
		jwtutil.New(&cfg.JWT),
	)
	testutil.SeedActivationCode(t, db, handlerTestCode)
	return h, echo.New(), db
}

func seedDrawing(t *testing.T, h *Handler, productCode, pdfPath string) uint {
	t.Helper()
	var id uint
	identity := tenant.Identity{ExplicitCode: handlerTestCode}
	err := h.router.WithTenant(context.Background(), identity, func(th *tenant.Handle) error {
		d, err := h.drawings.Insert(th, productCode, pdfPath)
		if err != nil {
			return err
		}
		id = d.ID
		return nil
	})
	if err != nil {
		t.Fatalf("seed drawing %s: %v", productCode, err)
	}
	return id
}

// uploadForm builds a multipart body for the upload endpoints. An empty
// token leaves the field out for session-authenticated endpoints.
func uploadForm(t *testing.T, fileField, productCode, token string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if token != "" {
		if err := w.WriteField("token", token); err != nil {
			t.Fatalf("write token field: %v", err)
		}
	}
	if err := w.WriteField("product_code", productCode); err != nil {
		t.Fatalf("write product_code field: %v", err)
	}
	fw, err := w.CreateFormFile(fileField, "drawing.pdf")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write([]byte("%PDF-1.4\ntest")); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func tenantFiles(t *testing.T, h *Handler) []string {
	t.Helper()
	dir := filepath.Join(h.files.Root(), tenant.FolderToken(handlerTestCode))
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		t.Fatalf("read tenant dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestMobileUploadStoresFileAndRow(t *testing.T) {
	h, e, _ := setupHandler(t)

	token, err := h.tokens.Issue(1, "alice", handlerTestCode, string(tenant.DeriveKey(handlerTestCode)))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	body, contentType := uploadForm(t, "file", "NR1001", token)

	req := httptest.NewRequest(http.MethodPost, "/api/mobile/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	if err := h.MobileUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("MobileUpload: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	names := tenantFiles(t, h)
	if len(names) != 1 {
		t.Fatalf("tenant dir holds %d files, want 1: %v", len(names), names)
	}

	identity := tenant.Identity{ExplicitCode: handlerTestCode}
	err = h.router.WithTenant(context.Background(), identity, func(th *tenant.Handle) error {
		d, searchErr := h.drawings.SearchExact(th, "NR1001")
		if searchErr != nil {
			return searchErr
		}
		if d.PDFPath != names[0] {
			t.Errorf("row points at %q, stored file is %q", d.PDFPath, names[0])
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify row: %v", err)
	}
}

func TestMobileUploadRemovesFileOnInsertFailure(t *testing.T) {
	h, e, _ := setupHandler(t)

	// The product code is already taken, so the row insert after the file
	// write must fail and the file write must be reversed.
	seedDrawing(t, h, "NR1001", "NR1001_aaaa0000.pdf")

	token, err := h.tokens.Issue(1, "alice", handlerTestCode, string(tenant.DeriveKey(handlerTestCode)))
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	body, contentType := uploadForm(t, "file", "NR1001", token)

	req := httptest.NewRequest(http.MethodPost, "/api/mobile/upload", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	if err := h.MobileUpload(e.NewContext(req, rec)); err != nil {
		t.Fatalf("MobileUpload: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	if names := tenantFiles(t, h); len(names) != 0 {
		t.Errorf("rejected upload left files behind: %v", names)
	}
}

func TestUpdateDrawingFileRemovesNewFileOnFailure(t *testing.T) {
	h, e, _ := setupHandler(t)

	id := seedDrawing(t, h, "NR1001", "NR1001_aaaa0000.pdf")
	seedDrawing(t, h, "NR2002", "NR2002_bbbb0000.pdf")

	folder := tenant.FolderToken(handlerTestCode)
	if err := h.files.Write(folder, "NR1001_aaaa0000.pdf", bytes.NewReader([]byte("%PDF-1.4\nold"))); err != nil {
		t.Fatalf("write original file: %v", err)
	}

	// Renaming NR1001 to the taken code NR2002 fails the row update; the
	// replacement file written before it must be removed again.
	body, contentType := uploadForm(t, "pdf_file", "NR2002", "")
	req := httptest.NewRequest(http.MethodPut, "/", body)
	req.Header.Set(echo.HeaderContentType, contentType)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
	c.Set(middleware.ActivationCodeKey, handlerTestCode)

	if err := h.UpdateDrawingFile(c); err != nil {
		t.Fatalf("UpdateDrawingFile: %v", err)
	}
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	names := tenantFiles(t, h)
	if len(names) != 1 || names[0] != "NR1001_aaaa0000.pdf" {
		t.Errorf("tenant dir after failed replace = %v, want only the original file", names)
	}

	identity := tenant.Identity{ExplicitCode: handlerTestCode}
	err := h.router.WithTenant(context.Background(), identity, func(th *tenant.Handle) error {
		d, getErr := h.drawings.GetByID(th, id)
		if getErr != nil {
			return getErr
		}
		if d.PDFPath != "NR1001_aaaa0000.pdf" {
			t.Errorf("row path changed to %q after failed replace", d.PDFPath)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("verify row: %v", err)
	}
}

func TestDeleteDrawingQuarantinesFile(t *testing.T) {
	h, e, _ := setupHandler(t)

	id := seedDrawing(t, h, "NR1001", "NR1001_aaaa0000.pdf")
	folder := tenant.FolderToken(handlerTestCode)
	if err := h.files.Write(folder, "NR1001_aaaa0000.pdf", bytes.NewReader([]byte("%PDF-1.4\ntest"))); err != nil {
		t.Fatalf("write file: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
	c.Set(middleware.ActivationCodeKey, handlerTestCode)

	if err := h.DeleteDrawing(c); err != nil {
		t.Fatalf("DeleteDrawing: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	if h.files.Exists(folder, "NR1001_aaaa0000.pdf") {
		t.Error("deleted drawing's file still in tenant dir")
	}
	quarantined := filepath.Join(filepath.Dir(filepath.Clean(h.files.Root())), storage.QuarantineDirName, "NR1001_aaaa0000.pdf")
	if _, err := os.Stat(quarantined); err != nil {
		t.Errorf("deleted drawing's file not quarantined: %v", err)
	}

	identity := tenant.Identity{ExplicitCode: handlerTestCode}
	err := h.router.WithTenant(context.Background(), identity, func(th *tenant.Handle) error {
		_, getErr := h.drawings.GetByID(th, id)
		return getErr
	})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("row lookup after delete: got %v, want ErrNotFound", err)
	}
}

func TestDeleteDrawingRestoresFileOnRowDeleteFailure(t *testing.T) {
	h, e, db := setupHandler(t)

	id := seedDrawing(t, h, "NR1001", "NR1001_aaaa0000.pdf")
	folder := tenant.FolderToken(handlerTestCode)
	if err := h.files.Write(folder, "NR1001_aaaa0000.pdf", bytes.NewReader([]byte("%PDF-1.4\ntest"))); err != nil {
		t.Fatalf("write file: %v", err)
	}

	// A trigger that rejects row deletes forces the failure branch after
	// the file has already been quarantined.
	schema := tenant.DeriveKey(handlerTestCode).Schema()
	if err := db.Exec(
		`CREATE OR REPLACE FUNCTION reject_drawing_delete() RETURNS trigger AS $$
		BEGIN RAISE EXCEPTION 'drawing deletes disabled'; END;
		$$ LANGUAGE plpgsql`,
	).Error; err != nil {
		t.Fatalf("create trigger function: %v", err)
	}
	if err := db.Exec(fmt.Sprintf(
		"CREATE TRIGGER block_drawing_delete BEFORE DELETE ON %s.drawings FOR EACH ROW EXECUTE FUNCTION reject_drawing_delete()",
		schema,
	)).Error; err != nil {
		t.Fatalf("create trigger: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(strconv.FormatUint(uint64(id), 10))
	c.Set(middleware.ActivationCodeKey, handlerTestCode)

	if err := h.DeleteDrawing(c); err != nil {
		t.Fatalf("DeleteDrawing: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500: %s", rec.Code, rec.Body.String())
	}

	// The quarantined file must be back in the tenant dir and the row intact.
	if !h.files.Exists(folder, "NR1001_aaaa0000.pdf") {
		t.Error("file not restored after failed row delete")
	}
	identity := tenant.Identity{ExplicitCode: handlerTestCode}
	err := h.router.WithTenant(context.Background(), identity, func(th *tenant.Handle) error {
		_, getErr := h.drawings.GetByID(th, id)
		return getErr
	})
	if err != nil {
		t.Errorf("row lookup after failed delete: %v", err)
	}
}
