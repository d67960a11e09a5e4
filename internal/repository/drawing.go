package repository

import (
	"errors"
	"fmt"

	"drawing-service/internal/apperr"
	"drawing-service/internal/model"
	"drawing-service/internal/tenant"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// DrawingRepository runs drawing operations against a tenant-scoped
// handle supplied per call. It holds no mutable state.
type DrawingRepository struct {
	maxSearchResults int
}

// NewDrawingRepository returns a repository with the given fuzzy-search
// result cap.
func NewDrawingRepository(maxSearchResults int) *DrawingRepository {
	if maxSearchResults <= 0 {
		maxSearchResults = 100
	}
	return &DrawingRepository{maxSearchResults: maxSearchResults}
}

// SearchExact returns the drawing with the given product code, or
// apperr.ErrNotFound.
func (r *DrawingRepository) SearchExact(h *tenant.Handle, productCode string) (*model.Drawing, error) {
	if productCode == "" {
		return nil, fmt.Errorf("%w: empty product code", apperr.ErrInvalidInput)
	}
	var drawing model.Drawing
	err := h.DB().Where("product_code = ?", productCode).First(&drawing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: product code %s", apperr.ErrNotFound, productCode)
	}
	if err != nil {
		return nil, err
	}
	return &drawing, nil
}

// GetByID returns the drawing with the given tenant-local id, or
// apperr.ErrNotFound.
func (r *DrawingRepository) GetByID(h *tenant.Handle, id uint) (*model.Drawing, error) {
	var drawing model.Drawing
	err := h.DB().First(&drawing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: drawing id %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &drawing, nil
}

// SearchFuzzy returns drawings whose product code contains keyword,
// ordered lexicographically by product code and capped at limit. A
// non-positive or oversized limit falls back to the configured maximum.
// The match is case-sensitive.
func (r *DrawingRepository) SearchFuzzy(h *tenant.Handle, keyword string, limit int) ([]model.Drawing, error) {
	if keyword == "" {
		return nil, fmt.Errorf("%w: empty keyword", apperr.ErrInvalidInput)
	}
	if limit <= 0 || limit > r.maxSearchResults {
		limit = r.maxSearchResults
	}
	var drawings []model.Drawing
	err := h.DB().
		Where("product_code LIKE ?", "%"+keyword+"%").
		Order("product_code").
		Limit(limit).
		Find(&drawings).Error
	if err != nil {
		return nil, err
	}
	return drawings, nil
}

// Insert adds a new drawing. A product code already present in the tenant
// yields apperr.ErrDuplicateKey.
func (r *DrawingRepository) Insert(h *tenant.Handle, productCode, pdfPath string) (*model.Drawing, error) {
	if productCode == "" || pdfPath == "" {
		return nil, fmt.Errorf("%w: product code and pdf path are required", apperr.ErrInvalidInput)
	}
	drawing := model.Drawing{ProductCode: productCode, PDFPath: pdfPath}
	if err := h.DB().Create(&drawing).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s", apperr.ErrDuplicateKey, productCode)
		}
		return nil, err
	}
	return &drawing, nil
}

// BatchInsert adds many drawings, skipping those whose product code
// already exists, and reports how many were added and skipped.
func (r *DrawingRepository) BatchInsert(h *tenant.Handle, drawings []model.Drawing) (added, skipped int, err error) {
	for i := range drawings {
		row := model.Drawing{ProductCode: drawings[i].ProductCode, PDFPath: drawings[i].PDFPath}
		res := h.DB().
			Exec("INSERT INTO drawings (product_code, pdf_path, created_at, updated_at) VALUES (?, ?, NOW(), NOW()) ON CONFLICT (product_code) DO NOTHING",
				row.ProductCode, row.PDFPath)
		if res.Error != nil {
			return added, skipped, res.Error
		}
		if res.RowsAffected == 0 {
			skipped++
		} else {
			added++
		}
	}
	return added, skipped, nil
}

// Update changes a drawing's product code and/or pdf path. Empty fields
// are left untouched. A missing record yields apperr.ErrNotFound; renaming
// to a product code already used in the tenant yields apperr.ErrDuplicateKey.
func (r *DrawingRepository) Update(h *tenant.Handle, id uint, newProductCode, newPDFPath string) (*model.Drawing, error) {
	if newProductCode == "" && newPDFPath == "" {
		return nil, fmt.Errorf("%w: nothing to update", apperr.ErrInvalidInput)
	}
	var drawing model.Drawing
	err := h.DB().First(&drawing, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: drawing id %d", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if newProductCode != "" {
		drawing.ProductCode = newProductCode
	}
	if newPDFPath != "" {
		drawing.PDFPath = newPDFPath
	}
	if err := h.DB().Save(&drawing).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s", apperr.ErrDuplicateKey, newProductCode)
		}
		return nil, err
	}
	return &drawing, nil
}

// Delete removes the drawing with the given product code. An absent code
// yields apperr.ErrNotFound and leaves the row count unchanged.
func (r *DrawingRepository) Delete(h *tenant.Handle, productCode string) error {
	if productCode == "" {
		return fmt.Errorf("%w: empty product code", apperr.ErrInvalidInput)
	}
	res := h.DB().Where("product_code = ?", productCode).Delete(&model.Drawing{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: product code %s", apperr.ErrNotFound, productCode)
	}
	return nil
}

// Count returns the number of drawings in the tenant.
func (r *DrawingRepository) Count(h *tenant.Handle) (int64, error) {
	var count int64
	if err := h.DB().Model(&model.Drawing{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// List returns up to limit drawings ordered by id.
func (r *DrawingRepository) List(h *tenant.Handle, limit int) ([]model.Drawing, error) {
	if limit <= 0 {
		limit = 1000
	}
	var drawings []model.Drawing
	if err := h.DB().Order("id").Limit(limit).Find(&drawings).Error; err != nil {
		return nil, err
	}
	return drawings, nil
}

// isUniqueViolation matches the Postgres unique-constraint error class.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
