package repository

import (
	"context"
	"hire_assessment_backend/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByID(ctx context.Context, id uint) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Preload("Company").First(&user, id).Error
	return &user, err
}

func (r *UserRepository) ListByCompany(ctx context.Context, companyID uint) ([]model.User, error) {
	var users []model.User
	err := r.DB.WithContext(ctx).Where("company_id = ?", companyID).Order("name asc").Find(&users).Error
	return users, err
}

func (r *UserRepository) CreateCompany(ctx context.Context, company *model.Company) error {
	return r.DB.WithContext(ctx).Create(company).Error
}

func (r *UserRepository) FindCompanyByID(ctx context.Context, id uint) (*model.Company, error) {
	var company model.Company
	err := r.DB.WithContext(ctx).First(&company, id).Error
	return &company, err
}
