package database

import (
	"fmt"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"log"
	"os"
	"path/filepath"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Dialector 根据配置选择数据库驱动
func Dialector(cfg *config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "", "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=Local",
			cfg.User,
			cfg.Password,
			cfg.Host,
			cfg.Port,
			cfg.DBName,
			cfg.Charset,
			cfg.ParseTime,
		)
		return mysql.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host,
			cfg.Port,
			cfg.User,
			cfg.Password,
			cfg.DBName,
			cfg.SSLMode,
		)
		return postgres.Open(dsn), nil
	case "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, err
			}
		}
		return sqlite.Open(cfg.Path + "?_foreign_keys=on"), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func InitDB(cfg *config.DatabaseConfig, migrate bool) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
		// 级联删除在仓储层事务内完成
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}

	log.Printf("Database connection established (%s)", cfg.Driver)

	if cfg.Driver == "sqlite" {
		// sqlite 单写者，避免 database is locked
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}

	if !migrate {
		return db, nil
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	log.Println("Database migration completed")

	if err := seedAdmin(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate 迁移全部表结构，测试中同样复用
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&model.Company{},
		&model.User{},
		&model.JobPost{},
		&model.Resume{},
		&model.AssessmentStage{},
		&model.MCQAssessment{},
		&model.MCQQuestion{},
		&model.MCQAnswer{},
		&model.MCQTemplate{},
		&model.AvatarAssessment{},
		&model.AvatarRecording{},
		&model.ManualMeeting{},
		&model.Interview{},
		&model.InterviewQuestion{},
		&model.InterviewAttempt{},
		&model.InterviewAnswer{},
		&model.OfferLetter{},
	)
}

// 默认管理员账号（仅在用户表为空时创建）
func seedAdmin(db *gorm.DB) error {
	var count int64
	db.Model(&model.User{}).Count(&count)
	if count > 0 {
		return nil
	}

	email := os.Getenv("HIRE_ADMIN_EMAIL")
	password := os.Getenv("HIRE_ADMIN_PASSWORD")
	if email == "" || password == "" {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	return db.Create(&model.User{
		Name:     "Administrator",
		Email:    email,
		Password: string(hashed),
		Role:     model.RoleAdmin,
	}).Error
}
