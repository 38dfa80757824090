package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type JobController struct {
	JobService *service.JobService
	Scoring    *service.ResumeScoringService
}

func NewJobController(jobService *service.JobService, scoring *service.ResumeScoringService) *JobController {
	return &JobController{JobService: jobService, Scoring: scoring}
}

// CreateJob godoc
// @Summary 创建职位
// @Tags 职位
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateJobRequest true "职位信息"
// @Success 201 {object} util.Response{data=model.JobPost}
// @Router /api/jobs [post]
func (c *JobController) CreateJob(ctx *gin.Context) {
	var req service.CreateJobRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	job, err := c.JobService.Create(ctx.Request.Context(), util.GetUserFromContext(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, job)
}

// ListJobs godoc
// @Summary 职位列表
// @Tags 职位
// @Produce  json
// @Security ApiKeyAuth
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/jobs [get]
func (c *JobController) ListJobs(ctx *gin.Context) {
	page, limit := pageParams(ctx)
	result, err := c.JobService.List(ctx.Request.Context(), util.GetUserFromContext(ctx), page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetJob godoc
// @Summary 职位详情
// @Tags 职位
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "职位ID"
// @Success 200 {object} util.Response{data=model.JobPost}
// @Failure 404 {object} util.Response
// @Router /api/jobs/{id} [get]
func (c *JobController) GetJob(ctx *gin.Context) {
	job, err := c.JobService.Get(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, job)
}

// AddResume godoc
// @Summary 添加简历
// @Tags 职位
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "职位ID"
// @Param   body body service.CreateResumeRequest true "候选人信息"
// @Success 201 {object} util.Response{data=model.Resume}
// @Router /api/jobs/{id}/resumes [post]
func (c *JobController) AddResume(ctx *gin.Context) {
	var req service.CreateResumeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	resume, err := c.JobService.AddResume(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, resume)
}

// ListResumes godoc
// @Summary 职位下的简历
// @Tags 职位
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "职位ID"
// @Success 200 {object} util.Response{data=[]model.Resume}
// @Router /api/jobs/{id}/resumes [get]
func (c *JobController) ListResumes(ctx *gin.Context) {
	resumes, err := c.JobService.ListResumes(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, resumes)
}

// ScoreResumes godoc
// @Summary 简历评分排序
// @Description 模型不可用时返回临时分数，provisional 为 true
// @Tags 职位
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "职位ID"
// @Param   body body service.ScoreResumesRequest false "指定简历，为空时全部评分"
// @Success 200 {object} util.Response{data=[]service.ResumeRanking}
// @Router /api/jobs/{id}/resumes/score [post]
func (c *JobController) ScoreResumes(ctx *gin.Context) {
	var req service.ScoreResumesRequest
	if ctx.Request.ContentLength > 0 {
		if err := ctx.ShouldBindJSON(&req); err != nil {
			util.BadRequest(ctx, err.Error())
			return
		}
	}
	rankings, err := c.Scoring.ScoreJob(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, rankings)
}
