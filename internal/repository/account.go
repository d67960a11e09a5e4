package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"drawing-service/internal/apperr"
	"drawing-service/internal/model"
	"drawing-service/internal/tenant"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AccountRepository manages users and activation codes in the shared
// identity store. It is not tenant-scoped; registration is the one place
// where the shared store and tenant provisioning meet.
type AccountRepository struct {
	db          *gorm.DB
	provisioner *tenant.Provisioner
}

// NewAccountRepository returns a repository over the shared database
// handle.
func NewAccountRepository(db *gorm.DB, provisioner *tenant.Provisioner) *AccountRepository {
	return &AccountRepository{db: db, provisioner: provisioner}
}

// Register creates a user gated by an activation code. The code must have
// the canonical shape and be active; a code that merely exists does not
// authorize registration. On success the tenant namespace is provisioned
// and the derived tenant key stored on the user.
func (r *AccountRepository) Register(ctx context.Context, username, password, email, activationCode string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: username and password are required", apperr.ErrInvalidInput)
	}
	activationCode = strings.ToUpper(strings.TrimSpace(activationCode))
	if !tenant.ValidFormat(activationCode) {
		return nil, fmt.Errorf("%w: malformed code", apperr.ErrInvalidActivationCode)
	}
	if err := r.CheckActivationCode(ctx, activationCode); err != nil {
		return nil, err
	}

	// Reject a taken username before touching the tenant namespace, so a
	// failed registration never leaves a freshly provisioned schema behind.
	// The unique-violation check on insert still covers the race window.
	taken, err := r.UsernameExists(ctx, username)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, fmt.Errorf("%w: username %s", apperr.ErrDuplicateKey, username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	key, err := r.provisioner.EnsureTenant(ctx, activationCode)
	if err != nil {
		return nil, err
	}

	user := model.User{
		Username:       username,
		PasswordHash:   string(hash),
		Email:          email,
		ActivationCode: activationCode,
		TenantKey:      string(key),
		IsActive:       true,
	}
	if err := r.db.WithContext(ctx).Create(&user).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: username %s", apperr.ErrDuplicateKey, username)
		}
		return nil, err
	}
	return &user, nil
}

// Login checks credentials and returns the user with a resolved tenant
// key, recomputing the key when the stored value is missing (records
// created before tenancy). Updates last_login on success. Any failure,
// including an inactive account, yields apperr.ErrInvalidCredentials.
func (r *AccountRepository) Login(ctx context.Context, username, password string) (*model.User, error) {
	if username == "" || password == "" {
		return nil, apperr.ErrInvalidCredentials
	}

	var user model.User
	err := r.db.WithContext(ctx).Where("username = ? AND is_active = ?", username, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, apperr.ErrInvalidCredentials
	}

	now := time.Now()
	if err := r.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		return nil, err
	}
	user.LastLogin = &now

	if user.TenantKey == "" {
		user.TenantKey = string(tenant.DeriveKey(user.ActivationCode))
		// Best effort: cache the recomputed key for the next login.
		if err := r.db.WithContext(ctx).Model(&user).Update("tenant_key", user.TenantKey).Error; err != nil {
			return &user, nil
		}
	}
	return &user, nil
}

// UsernameExists reports whether a username is already taken.
func (r *AccountRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// CheckActivationCode verifies that a code is recognized and active.
func (r *AccountRepository) CheckActivationCode(ctx context.Context, code string) error {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&model.ActivationCode{}).
		Where("code = ? AND is_active = ?", code, true).
		Count(&count).Error
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", apperr.ErrInvalidActivationCode, code)
	}
	return nil
}

// CreateActivationCode stores a freshly generated activation code.
// When code is empty a new one is generated.
func (r *AccountRepository) CreateActivationCode(ctx context.Context, code, description string) (*model.ActivationCode, error) {
	if code == "" {
		code = tenant.GenerateCode()
	}
	if !tenant.ValidFormat(code) {
		return nil, fmt.Errorf("%w: malformed code", apperr.ErrInvalidActivationCode)
	}
	record := model.ActivationCode{Code: code, Description: description, IsActive: true}
	if err := r.db.WithContext(ctx).Create(&record).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: code %s", apperr.ErrDuplicateKey, code)
		}
		return nil, err
	}
	return &record, nil
}

// ListActivationCodes returns all codes, newest first.
func (r *AccountRepository) ListActivationCodes(ctx context.Context) ([]model.ActivationCode, error) {
	var codes []model.ActivationCode
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&codes).Error
	if err != nil {
		return nil, err
	}
	return codes, nil
}
