package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type AttemptController struct {
	AttemptService *service.AttemptService
	Hub            *service.AttemptMonitor
}

func NewAttemptController(attemptService *service.AttemptService, monitor *service.AttemptMonitor) *AttemptController {
	return &AttemptController{
		AttemptService: attemptService,
		Hub:            monitor,
	}
}

// TrackAttempt godoc
// @Summary 作答结果
// @Description 面试官查看作答详情，包含标准答案与得分
// @Tags 作答
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Success 200 {object} util.Response{data=service.AttemptTrackView}
// @Router /api/attempts/{id} [get]
func (c *AttemptController) TrackAttempt(ctx *gin.Context) {
	view, err := c.AttemptService.Track(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// UpdateStatus godoc
// @Summary 结束作答
// @Description 只允许将进行中的作答置为终态
// @Tags 作答
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "作答ID"
// @Param   body body service.AttemptStatusRequest true "目标状态"
// @Success 200 {object} util.Response{data=model.InterviewAttempt}
// @Failure 409 {object} util.Response "作答已结束"
// @Router /api/attempts/{id}/status [patch]
func (c *AttemptController) UpdateStatus(ctx *gin.Context) {
	var req service.AttemptStatusRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	attempt, err := c.AttemptService.UpdateStatus(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// Monitor godoc
// @Summary 实时监控
// @Description websocket，推送本公司作答的提交、违规和超时事件；attemptId 可选
// @Tags 作答
// @Security ApiKeyAuth
// @Param attemptId query string false "只看某个作答"
// @Param token query string false "JWT"
// @Router /api/attempts/monitor [get]
func (c *AttemptController) Monitor(ctx *gin.Context) {
	claims := util.GetUserFromContext(ctx)
	if claims == nil {
		util.Unauthorized(ctx)
		return
	}
	service.ServeMonitor(c.Hub, ctx.Writer, ctx.Request, claims.UserID, claims.CompanyID, claims.IsAdmin(), ctx.Query("attemptId"))
}
