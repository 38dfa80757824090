package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AssessmentStageController struct {
	StageService  *service.AssessmentStageService
	AvatarService *service.AvatarService
}

func NewAssessmentStageController(stageService *service.AssessmentStageService, avatarService *service.AvatarService) *AssessmentStageController {
	return &AssessmentStageController{
		StageService:  stageService,
		AvatarService: avatarService,
	}
}

// CreateStage godoc
// @Summary 创建测评阶段
// @Description 按类型附带选择题、视频面试或线下面试信息；视频面试需要口令时返回一次性口令
// @Tags 测评阶段
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateStageRequest true "阶段信息"
// @Success 201 {object} util.Response{data=service.CreateStageResult}
// @Failure 400 {object} util.Response "参数错误"
// @Failure 404 {object} util.Response "职位或简历不存在"
// @Router /api/assessments [post]
func (c *AssessmentStageController) CreateStage(ctx *gin.Context) {
	var req service.CreateStageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.StageService.Create(ctx.Request.Context(), util.GetUserFromContext(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, result)
}

// ListStages godoc
// @Summary 测评阶段列表
// @Tags 测评阶段
// @Produce  json
// @Security ApiKeyAuth
// @Param jobPostId query string false "职位ID"
// @Param resumeId query string false "简历ID"
// @Param interviewerId query int false "面试官ID"
// @Param type query string false "MCQ / AVATAR / MANUAL"
// @Param status query string false "阶段状态"
// @Param dateFrom query string false "开始日期 YYYY-MM-DD"
// @Param dateTo query string false "结束日期 YYYY-MM-DD"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/assessments [get]
func (c *AssessmentStageController) ListStages(ctx *gin.Context) {
	var q service.StageListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.StageService.List(ctx.Request.Context(), util.GetUserFromContext(ctx), q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetStage godoc
// @Summary 测评阶段详情
// @Tags 测评阶段
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "阶段ID"
// @Success 200 {object} util.Response{data=model.AssessmentStage}
// @Failure 404 {object} util.Response
// @Router /api/assessments/{id} [get]
func (c *AssessmentStageController) GetStage(ctx *gin.Context) {
	stage, err := c.StageService.Get(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stage)
}

// UpdateStage godoc
// @Summary 更新测评阶段
// @Description 状态只能按流转规则变更；分数仅在完成时写入
// @Tags 测评阶段
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "阶段ID"
// @Param   body body service.UpdateStageRequest true "更新内容"
// @Success 200 {object} util.Response{data=model.AssessmentStage}
// @Failure 409 {object} util.Response "状态冲突"
// @Router /api/assessments/{id} [patch]
func (c *AssessmentStageController) UpdateStage(ctx *gin.Context) {
	var req service.UpdateStageRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	stage, err := c.StageService.Update(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stage)
}

// DeleteStage godoc
// @Summary 删除测评阶段
// @Tags 测评阶段
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "阶段ID"
// @Success 200 {object} util.Response
// @Router /api/assessments/{id} [delete]
func (c *AssessmentStageController) DeleteStage(ctx *gin.Context) {
	id := ctx.Param("id")
	if err := c.StageService.Delete(ctx.Request.Context(), util.GetUserFromContext(ctx), id); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"deleted": id})
}

// InviteAvatar godoc
// @Summary 发送视频面试邀请
// @Description 重新生成会话口令并通知候选人，口令只返回这一次
// @Tags 测评阶段
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "阶段ID"
// @Param   body body service.AvatarInviteRequest false "候选人信息"
// @Success 200 {object} util.Response{data=service.AvatarInviteResult}
// @Router /api/assessments/{id}/avatar/invite [post]
func (c *AssessmentStageController) InviteAvatar(ctx *gin.Context) {
	var req service.AvatarInviteRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	result, err := c.AvatarService.Invite(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListRecordings godoc
// @Summary 视频面试录音列表
// @Tags 测评阶段
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "阶段ID"
// @Success 200 {object} util.Response{data=[]model.AvatarRecording}
// @Router /api/assessments/{id}/avatar/recordings [get]
func (c *AssessmentStageController) ListRecordings(ctx *gin.Context) {
	list, err := c.AvatarService.ListRecordings(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
