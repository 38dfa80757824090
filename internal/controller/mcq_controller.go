package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type MCQController struct {
	MCQService *service.MCQService
}

func NewMCQController(mcqService *service.MCQService) *MCQController {
	return &MCQController{MCQService: mcqService}
}

// GetPaper godoc
// @Summary 选择题试卷
// @Description 不含标准答案
// @Tags 选择题
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "选择题测评ID"
// @Success 200 {object} util.Response{data=service.MCQPaperView}
// @Router /api/assessments/mcq/{id} [get]
func (c *MCQController) GetPaper(ctx *gin.Context) {
	paper, err := c.MCQService.GetPaper(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, paper)
}

// Submit godoc
// @Summary 提交选择题答案
// @Description final 缺省为 true，评分后阶段置为完成；重复提交返回 409
// @Tags 选择题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "选择题测评ID"
// @Param   body body service.MCQSubmitRequest true "作答"
// @Success 200 {object} util.Response{data=service.MCQScoreResult}
// @Failure 400 {object} util.Response "题目不存在或选项越界"
// @Failure 409 {object} util.Response "已提交"
// @Router /api/assessments/mcq/{id}/submit [post]
func (c *MCQController) Submit(ctx *gin.Context) {
	var req service.MCQSubmitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.MCQService.Submit(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// SaveDraftRequest 草稿只需答案
type SaveDraftRequest struct {
	Answers []service.MCQAnswerInput `json:"answers" binding:"required,min=1,dive"`
}

// SaveDraft godoc
// @Summary 保存选择题草稿
// @Tags 选择题
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "选择题测评ID"
// @Param   body body SaveDraftRequest true "作答"
// @Success 200 {object} util.Response{data=service.MCQScoreResult}
// @Router /api/assessments/mcq/{id}/draft [put]
func (c *MCQController) SaveDraft(ctx *gin.Context) {
	var req SaveDraftRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.MCQService.SaveDraft(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req.Answers)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListAnswers godoc
// @Summary 选择题作答明细
// @Tags 选择题
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "选择题测评ID"
// @Param includeQuestions query bool false "是否附带题目"
// @Success 200 {object} util.Response{data=service.MCQAnswersResult}
// @Router /api/assessments/mcq/{id}/answers [get]
func (c *MCQController) ListAnswers(ctx *gin.Context) {
	include := ctx.Query("includeQuestions") == "true"
	result, err := c.MCQService.ListAnswers(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), include)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
