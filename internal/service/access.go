package service

import (
	"errors"
	"hire_assessment_backend/internal/util"

	"gorm.io/gorm"
)

// companyScope 管理员不限定租户
func companyScope(claims *util.Claims) *uint {
	if claims == nil || claims.IsAdmin() {
		return nil
	}
	id := claims.CompanyID
	return &id
}

// ensureCompanyAccess 跨租户访问按不存在处理，不暴露资源是否存在
func ensureCompanyAccess(claims *util.Claims, companyID uint, what string) error {
	if claims == nil {
		return util.NewUnauthorizedError("authentication required")
	}
	if !claims.CanAccessCompany(companyID) {
		return util.NewNotFoundError(what + " not found")
	}
	return nil
}

// lookupError 记录不存在转为 NotFound，其余包装为内部错误
func lookupError(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return util.NewNotFoundError(what + " not found")
	}
	return util.NewInternalError("load "+what, err)
}
