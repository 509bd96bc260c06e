package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"academy/internal/model"
	"academy/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DTOs for Request validation
type CreateUserRequest struct {
	Username     string  `json:"username" binding:"required,notblank,max=255"`
	Email        string  `json:"email" binding:"required,email"`
	Password     string  `json:"password" binding:"required,min=6"`
	Role         string  `json:"role" binding:"required"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
}

type UpdateUserRequest struct {
	Username     string  `json:"username"`
	Email        string  `json:"email" binding:"omitempty,email"`
	Password     string  `json:"password" binding:"omitempty,min=6"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"department_id" binding:"omitempty,uuid"`
}

type LoginUserRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

type TokenResponse struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

// DTO for returning User without exposing sensitive data (e.g. password)
type UserResponse struct {
	ID           uuid.UUID  `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	DepartmentID *uuid.UUID `json:"department_id"`
	CreatedAt    string     `json:"created_at"`
	UpdatedAt    string     `json:"updated_at"`
}

// ErrInvalidCredentials is returned by Login and RefreshToken.
var ErrInvalidCredentials = errors.New("invalid email or password")

// UserService defines the interface for business logic related to User
type UserService interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error)
	RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error)
	Logout(ctx context.Context, refreshToken string) error
	GetUserByID(ctx context.Context, id string) (*UserResponse, error)
	ListUsers(ctx context.Context, role string, page, limit int) ([]UserResponse, int64, error)
	UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id string) error
}

// TokenConfig carries the signing secret and token lifetimes.
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

type userService struct {
	repo   repository.UserRepository
	roles  repository.RoleRepository
	depts  repository.DepartmentRepository
	tokens TokenConfig
	now    func() time.Time
}

// NewUserService returns a new instance of UserService
func NewUserService(repo repository.UserRepository, roles repository.RoleRepository, depts repository.DepartmentRepository, tokens TokenConfig) UserService {
	return &userService{repo: repo, roles: roles, depts: depts, tokens: tokens, now: time.Now}
}

// Helper: parse model to standard json API response
func mapToResponse(user *model.User) *UserResponse {
	return &UserResponse{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		Role:         user.Role,
		DepartmentID: user.DepartmentID,
		CreatedAt:    user.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    user.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// checkRole accepts built-in roles and custom roles present in the roles table.
func (s *userService) checkRole(ctx context.Context, role string) error {
	if model.ValidRole(role) {
		return nil
	}
	if _, err := s.roles.FindByName(ctx, role); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return validationf("unknown role '%s'", role)
		}
		return fmt.Errorf("failed to check role: %w", err)
	}
	return nil
}

// resolveDepartment parses and checks the department assignment of a user.
func (s *userService) resolveDepartment(ctx context.Context, role string, raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		if role == model.RoleHeadOfDepartment {
			return nil, validationf("department_id is required for role %s", role)
		}
		return nil, nil
	}
	id, err := parseID("department", *raw)
	if err != nil {
		return nil, err
	}
	if _, err := s.depts.FindByID(ctx, id); err != nil {
		return nil, notFound("department", err)
	}
	return &id, nil
}

func (s *userService) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if err := s.checkRole(ctx, req.Role); err != nil {
		return nil, err
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)

	// Double check username/email uniqueness via repo directly
	if _, err := s.repo.GetByUsername(ctx, username); err == nil {
		return nil, conflictf("username already exists")
	}
	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, conflictf("email already exists")
	}

	deptID, err := s.resolveDepartment(ctx, req.Role, req.DepartmentID)
	if err != nil {
		return nil, err
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		Password:     string(hashedPassword),
		Role:         req.Role,
		DepartmentID: deptID,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) Login(ctx context.Context, req LoginUserRequest) (*TokenResponse, error) {
	user, err := s.repo.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return s.issueTokens(ctx, user)
}

// RefreshToken rotates a refresh token: the presented one is consumed.
func (s *userService) RefreshToken(ctx context.Context, req RefreshTokenRequest) (*TokenResponse, error) {
	rt, err := s.repo.FindRefreshToken(ctx, req.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: refresh token is invalid or expired", ErrInvalidCredentials)
	}
	user, err := s.repo.GetByID(ctx, rt.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: user no longer exists", ErrInvalidCredentials)
	}
	if err := s.repo.DeleteRefreshToken(ctx, rt.Token); err != nil {
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return s.issueTokens(ctx, user)
}

func (s *userService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.repo.DeleteRefreshToken(ctx, refreshToken)
}

func (s *userService) issueTokens(ctx context.Context, user *model.User) (*TokenResponse, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":  user.ID.String(),
		"role": user.Role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.tokens.AccessTTL).Unix(),
	}
	if user.DepartmentID != nil {
		claims["department_id"] = user.DepartmentID.String()
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokens.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}
	refresh := &model.RefreshToken{
		UserID:    user.ID,
		Token:     hex.EncodeToString(buf),
		ExpiresAt: now.Add(s.tokens.RefreshTTL),
	}
	if err := s.repo.SaveRefreshToken(ctx, refresh); err != nil {
		return nil, fmt.Errorf("failed to store refresh token: %w", err)
	}

	return &TokenResponse{Token: tokenString, RefreshToken: refresh.Token}, nil
}

func (s *userService) GetUserByID(ctx context.Context, id string) (*UserResponse, error) {
	userID, err := parseID("user", id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound("user", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) ListUsers(ctx context.Context, role string, page, limit int) ([]UserResponse, int64, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}

	users, total, err := s.repo.List(ctx, role, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch users: %w", err)
	}

	responses := make([]UserResponse, 0, len(users))
	for i := range users {
		responses = append(responses, *mapToResponse(&users[i]))
	}
	return responses, total, nil
}

func (s *userService) UpdateUser(ctx context.Context, id string, req UpdateUserRequest) (*UserResponse, error) {
	userID, err := parseID("user", id)
	if err != nil {
		return nil, err
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound("user", err)
	}

	if req.Role != "" {
		if err := s.checkRole(ctx, req.Role); err != nil {
			return nil, err
		}
		user.Role = req.Role
	}

	if username := strings.TrimSpace(req.Username); username != "" && username != user.Username {
		if _, err := s.repo.GetByUsername(ctx, username); err == nil {
			return nil, conflictf("username already exists")
		}
		user.Username = username
	}

	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if _, err := s.repo.GetByEmail(ctx, email); err == nil {
			return nil, conflictf("email already exists")
		}
		user.Email = email
	}

	if req.DepartmentID != nil {
		deptID, err := s.resolveDepartment(ctx, user.Role, req.DepartmentID)
		if err != nil {
			return nil, err
		}
		user.DepartmentID = deptID
	} else if user.Role == model.RoleHeadOfDepartment && user.DepartmentID == nil {
		return nil, validationf("department_id is required for role %s", user.Role)
	}

	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.Password = string(hashed)
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return mapToResponse(user), nil
}

func (s *userService) DeleteUser(ctx context.Context, id string) error {
	userID, err := parseID("user", id)
	if err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, userID); err != nil {
		return notFound("user", err)
	}
	return s.repo.Delete(ctx, userID)
}
