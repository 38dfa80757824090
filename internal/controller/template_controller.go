package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"io"

	"github.com/gin-gonic/gin"
)

const maxTemplateBankSize = 2 << 20

type TemplateController struct {
	TemplateService *service.TemplateService
}

func NewTemplateController(templateService *service.TemplateService) *TemplateController {
	return &TemplateController{TemplateService: templateService}
}

// ListTemplates godoc
// @Summary 题库列表
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param category query string false "分类"
// @Param difficulty query string false "难度"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/assessments/mcq/templates [get]
func (c *TemplateController) ListTemplates(ctx *gin.Context) {
	var q service.TemplateListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.TemplateService.List(ctx.Request.Context(), util.GetUserFromContext(ctx), q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// CreateTemplates godoc
// @Summary 新增题目
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateTemplatesRequest true "题目"
// @Success 201 {object} util.Response{data=[]model.MCQTemplate}
// @Router /api/assessments/mcq/templates [post]
func (c *TemplateController) CreateTemplates(ctx *gin.Context) {
	var req service.CreateTemplatesRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	list, err := c.TemplateService.Create(ctx.Request.Context(), util.GetUserFromContext(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, list)
}

// DeleteTemplate godoc
// @Summary 删除题目
// @Tags 题库
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "题目ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/mcq/templates/{id} [delete]
func (c *TemplateController) DeleteTemplate(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.TemplateService.Delete(ctx.Request.Context(), util.GetUserFromContext(ctx), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// Generate godoc
// @Summary AI 出题
// @Description 调用出题服务生成选择题并写入题库，失败时不落库
// @Tags 题库
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.GenerateRequest true "出题参数"
// @Success 201 {object} util.Response{data=[]model.MCQTemplate}
// @Failure 400 {object} util.Response "未配置出题服务"
// @Router /api/assessments/mcq/generate [post]
func (c *TemplateController) Generate(ctx *gin.Context) {
	var req service.GenerateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	list, err := c.TemplateService.Generate(ctx.Request.Context(), util.GetUserFromContext(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, list)
}

// Import godoc
// @Summary 导入 YAML 题库
// @Description 上传 file 字段或直接以请求体提交 YAML
// @Tags 题库
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param file formData file false "YAML 题库"
// @Success 201 {object} util.Response{data=[]model.MCQTemplate}
// @Router /api/assessments/mcq/templates/import [post]
func (c *TemplateController) Import(ctx *gin.Context) {
	var r io.Reader = io.LimitReader(ctx.Request.Body, maxTemplateBankSize)
	if fh, err := ctx.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			util.BadRequest(ctx, "cannot read uploaded file")
			return
		}
		defer f.Close()
		r = io.LimitReader(f, maxTemplateBankSize)
	}

	list, err := c.TemplateService.Import(ctx.Request.Context(), util.GetUserFromContext(ctx), r)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, list)
}
