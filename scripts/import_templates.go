// 从 YAML 文件批量导入选择题题库
//
// 用法: go run scripts/import_templates.go -file configs/templates/sample_bank.yaml -company 1

package main

import (
	"context"
	"flag"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/internal/repository"
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"hire_assessment_backend/pkg/database"
	"hire_assessment_backend/pkg/logger"
	"log"
	"os"
)

func main() {
	file := flag.String("file", "", "YAML 题库文件")
	companyID := flag.Uint("company", 0, "题库所属公司ID")
	userID := flag.Uint("user", 1, "记录为创建人的用户ID")
	flag.Parse()

	if *file == "" || *companyID == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig("configs")
	if err != nil {
		log.Fatalf("无法读取配置文件: %v", err)
	}
	logger.InitLogger(cfg)

	db, err := database.InitDB(&cfg.Database, false)
	if err != nil {
		log.Fatalf("数据库连接失败: %v", err)
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatalf("打开题库文件失败: %v", err)
	}
	defer f.Close()

	settings := service.NewAssessmentSettings(cfg.Assessment)
	templates := service.NewTemplateService(repository.NewMCQRepository(db), nil, settings)
	claims := &util.Claims{UserID: *userID, Role: model.RoleAdmin, CompanyID: *companyID}

	list, err := templates.Import(context.Background(), claims, f)
	if err != nil {
		log.Fatalf("导入失败: %v", err)
	}
	log.Printf("导入完成，共 %d 道题", len(list))
}
