package service

import (
	"context"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/util"
	"testing"
	"time"
)

const testJWTSecret = "test-secret"

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	db := newTestDB(t)
	for _, id := range []uint{1, 2} {
		if err := db.Create(&model.Company{BaseModel: model.BaseModel{ID: id}, Name: "Company"}).Error; err != nil {
			t.Fatalf("create company: %v", err)
		}
	}
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testJWTSecret, ExpireTime: time.Hour}}
	return NewAuthService(repository.NewUserRepository(db), cfg)
}

func adminClaims() *util.Claims {
	return &util.Claims{UserID: 1, Role: model.RoleAdmin, Email: "admin@example.com"}
}

func TestAuthRegisterAndLogin(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	companyID := uint(2)

	user, err := svc.Register(ctx, adminClaims(), RegisterRequest{
		Name:      "Mara Ortiz",
		Email:     "  Mara@Example.com ",
		Password:  "correct-horse",
		CompanyID: &companyID,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.Email != "mara@example.com" || user.Role != model.RoleRecruiter {
		t.Fatalf("user = %+v", user)
	}
	if user.Password == "correct-horse" {
		t.Fatalf("password stored in plaintext")
	}

	_, err = svc.Register(ctx, adminClaims(), RegisterRequest{Name: "Dup", Email: "MARA@example.com", Password: "another-pass"})
	requireKind(t, err, util.KindConflict)

	result, err := svc.Login(ctx, "MARA@example.com", "correct-horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	claims, err := util.ParseJWT(result.Token, testJWTSecret)
	if err != nil {
		t.Fatalf("ParseJWT: %v", err)
	}
	if claims.UserID != user.ID || claims.CompanyID != 2 || claims.Role != model.RoleRecruiter {
		t.Fatalf("claims = %+v", claims)
	}
	if _, err := util.ParseJWT(result.Token, "other-secret"); err == nil {
		t.Fatalf("token accepted with wrong secret")
	}

	_, err = svc.Login(ctx, "mara@example.com", "wrong-password")
	requireKind(t, err, util.KindUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	requireKind(t, err, util.KindUnauthorized)

	profile, err := svc.Profile(ctx, claims)
	if err != nil || profile.ID != user.ID {
		t.Fatalf("Profile = %+v, %v", profile, err)
	}
	_, err = svc.Profile(ctx, nil)
	requireKind(t, err, util.KindUnauthorized)
}

func TestAuthLoginDisabledAccount(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, adminClaims(), RegisterRequest{Name: "Off", Email: "off@example.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := svc.UserRepo.DB.Model(&model.User{}).Where("id = ?", user.ID).Update("disabled", true).Error; err != nil {
		t.Fatalf("disable user: %v", err)
	}
	_, err = svc.Login(ctx, "off@example.com", "correct-horse")
	requireKind(t, err, util.KindForbidden)
}

func TestAuthRegisterScopesToTenant(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()
	other := uint(2)

	// 非管理员指定的公司被忽略，始终落在自己公司
	user, err := svc.Register(ctx, recruiterClaims(1), RegisterRequest{
		Name:      "Interviewer",
		Email:     "iv@example.com",
		Password:  "correct-horse",
		Role:      model.RoleInterviewer,
		CompanyID: &other,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.CompanyID == nil || *user.CompanyID != 1 {
		t.Fatalf("company = %v, want 1", user.CompanyID)
	}

	_, err = svc.Register(ctx, recruiterClaims(1), RegisterRequest{Name: "Root", Email: "root@example.com", Password: "correct-horse", Role: model.RoleAdmin})
	requireKind(t, err, util.KindForbidden)

	_, err = svc.Register(ctx, recruiterClaims(1), RegisterRequest{Name: "X", Email: "x@example.com", Password: "correct-horse", Role: "OWNER"})
	requireKind(t, err, util.KindValidation)

	_, err = svc.Register(ctx, nil, RegisterRequest{Name: "X", Email: "y@example.com", Password: "correct-horse"})
	requireKind(t, err, util.KindUnauthorized)

	missing := uint(99)
	_, err = svc.Register(ctx, adminClaims(), RegisterRequest{Name: "X", Email: "z@example.com", Password: "correct-horse", CompanyID: &missing})
	requireKind(t, err, util.KindNotFound)
}
