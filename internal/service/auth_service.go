package service

import (
	"context"
	"errors"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/logger"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type AuthService struct {
	UserRepo *repository.UserRepository
	Cfg      *config.Config
}

func NewAuthService(userRepo *repository.UserRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		UserRepo: userRepo,
		Cfg:      cfg,
	}
}

type RegisterRequest struct {
	Name      string         `json:"name" binding:"required"`
	Email     string         `json:"email" binding:"required,email"`
	Password  string         `json:"password" binding:"required,min=8"`
	Role      model.UserRole `json:"role"`
	CompanyID *uint          `json:"companyId"`
}

// Register 由管理员或公司招聘方创建账号，非管理员只能在本公司建号
func (s *AuthService) Register(ctx context.Context, claims *util.Claims, req RegisterRequest) (*model.User, error) {
	if claims == nil {
		return nil, util.NewUnauthorizedError("authentication required")
	}
	role := req.Role
	if role == "" {
		role = model.RoleRecruiter
	}
	switch role {
	case model.RoleAdmin, model.RoleRecruiter, model.RoleInterviewer:
	default:
		return nil, util.NewValidationError("invalid role").With("role", role)
	}
	if role == model.RoleAdmin && !claims.IsAdmin() {
		return nil, util.NewForbiddenError("only admins can create admins")
	}

	companyID := req.CompanyID
	if !claims.IsAdmin() {
		cid := claims.CompanyID
		companyID = &cid
	}
	if companyID != nil {
		if _, err := s.UserRepo.FindCompanyByID(ctx, *companyID); err != nil {
			return nil, lookupError(err, "Company")
		}
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if _, err := s.UserRepo.FindByEmail(ctx, email); err == nil {
		return nil, util.NewConflictError("email is already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.NewInternalError("lookup user", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, util.NewInternalError("hash password", err)
	}
	user := &model.User{
		Name:      req.Name,
		Email:     email,
		Password:  string(hashed),
		Role:      role,
		CompanyID: companyID,
	}
	if err := s.UserRepo.Create(ctx, user); err != nil {
		return nil, util.NewInternalError("create user", err)
	}
	logger.Log.Info("user registered", zap.Uint("userId", user.ID), zap.String("role", string(role)))
	return user, nil
}

type LoginResult struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	user, err := s.UserRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, util.NewUnauthorizedError("invalid credentials")
		}
		return nil, util.NewInternalError("lookup user", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, util.NewUnauthorizedError("invalid credentials")
	}
	if user.Disabled {
		return nil, util.NewForbiddenError("account is disabled")
	}

	token, err := util.GenerateJWT(user, s.Cfg.JWT.Secret, s.Cfg.JWT.ExpireTime)
	if err != nil {
		return nil, util.NewInternalError("sign token", err)
	}
	return &LoginResult{Token: token, User: user}, nil
}

func (s *AuthService) Profile(ctx context.Context, claims *util.Claims) (*model.User, error) {
	if claims == nil {
		return nil, util.NewUnauthorizedError("authentication required")
	}
	user, err := s.UserRepo.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, lookupError(err, "User")
	}
	return user, nil
}
