package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type InterviewController struct {
	InterviewService *service.InterviewService
	AttemptService   *service.AttemptService
}

func NewInterviewController(interviewService *service.InterviewService, attemptService *service.AttemptService) *InterviewController {
	return &InterviewController{
		InterviewService: interviewService,
		AttemptService:   attemptService,
	}
}

// CreateInterview godoc
// @Summary 创建在线面试
// @Description 题目来自题库模板或请求中的题目
// @Tags 在线面试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateInterviewRequest true "面试信息"
// @Success 201 {object} util.Response{data=model.Interview}
// @Router /api/interviews [post]
func (c *InterviewController) CreateInterview(ctx *gin.Context) {
	var req service.CreateInterviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	interview, err := c.InterviewService.Create(ctx.Request.Context(), util.GetUserFromContext(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, interview)
}

// ListInterviews godoc
// @Summary 在线面试列表
// @Tags 在线面试
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/interviews [get]
func (c *InterviewController) ListInterviews(ctx *gin.Context) {
	page, limit := pageParams(ctx)
	result, err := c.InterviewService.List(ctx.Request.Context(), util.GetUserFromContext(ctx), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetInterview godoc
// @Summary 在线面试详情
// @Tags 在线面试
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "面试ID"
// @Success 200 {object} util.Response{data=model.Interview}
// @Router /api/interviews/{id} [get]
func (c *InterviewController) GetInterview(ctx *gin.Context) {
	interview, err := c.InterviewService.Get(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, interview)
}

// SendInterview godoc
// @Summary 发送面试给候选人
// @Description 生成作答记录和一次性会话口令，返回测试链接与二维码
// @Tags 在线面试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "面试ID"
// @Param   body body service.SendInterviewRequest false "候选人信息"
// @Success 200 {object} util.Response{data=service.SendInterviewResult}
// @Failure 409 {object} util.Response "已有进行中或已完成的作答"
// @Router /api/interviews/{id}/send [post]
func (c *InterviewController) SendInterview(ctx *gin.Context) {
	var req service.SendInterviewRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	result, err := c.InterviewService.Send(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// ListAttempts godoc
// @Summary 面试的作答记录
// @Tags 在线面试
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "面试ID"
// @Success 200 {object} util.Response{data=[]model.InterviewAttempt}
// @Router /api/interviews/{id}/attempts [get]
func (c *InterviewController) ListAttempts(ctx *gin.Context) {
	list, err := c.AttemptService.ListByInterview(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}
