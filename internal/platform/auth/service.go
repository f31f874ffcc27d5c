package auth

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// ロール定義。画面側の権限分岐もこの4種で完結させる。
const (
	RoleAdmin   = "admin"
	RoleManager = "manager"
	RoleWorker  = "worker"
	RoleClient  = "client"
)

var (
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
)

// 秘密鍵は環境変数から。未設定での起動は許さない。
func JWTSecret() ([]byte, error) {
	s := os.Getenv("JWT_SECRET")
	if s == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	return []byte(s), nil
}

type Service struct {
	store  AccountStore
	secret []byte
}

func NewService(db *sql.DB, secret []byte) *Service {
	return &Service{store: NewStore(db), secret: secret}
}

type AuthService interface {
	Login(ctx context.Context, id, password string) (string, error)
	Register(ctx context.Context, req RegisterInput) error
	Delete(ctx context.Context, id string) error
	SetDisabled(ctx context.Context, id string, disabled bool) error
}

type RegisterInput struct {
	ID           string
	TenantID     string
	Password     string
	Role         string
	EmployeeULID *string
}

func validRole(r string) bool {
	switch r {
	case RoleAdmin, RoleManager, RoleWorker, RoleClient:
		return true
	}
	return false
}

func (s *Service) Login(ctx context.Context, id, password string) (string, error) {
	acct, err := s.store.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if acct == nil {
		return "", errors.New("authentication failed")
	}
	if acct.IsDisabled {
		return "", errors.New("account disabled")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(acct.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("authentication failed")
	}

	claims := jwt.MapClaims{
		"sub":       acct.ID,
		"tenant_id": acct.TenantID,
		"role":      acct.Role,
		"exp":       time.Now().Add(24 * time.Hour).Unix(),
	}
	if acct.EmployeeULID.Valid {
		claims["employee_ulid"] = acct.EmployeeULID.String
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

func (s *Service) Register(ctx context.Context, req RegisterInput) error {
	if !validRole(req.Role) {
		return errors.New("invalid role")
	}
	exists, err := s.store.GetByID(ctx, req.ID)
	if err != nil {
		return err
	}
	if exists != nil {
		return ErrAlreadyExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	acct := &Account{
		ID:           req.ID,
		TenantID:     req.TenantID,
		PasswordHash: string(hash),
		Role:         req.Role,
		IsDisabled:   false,
	}
	if req.EmployeeULID != nil && *req.EmployeeULID != "" {
		acct.EmployeeULID.String = *req.EmployeeULID
		acct.EmployeeULID.Valid = true
	}
	return s.store.Create(ctx, acct)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	n, err := s.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) SetDisabled(ctx context.Context, id string, disabled bool) error {
	n, err := s.store.SetDisabled(ctx, id, disabled)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
