package controller

import (
	"encoding/json"
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const maxSubmitBodySize = 1 << 20

// CandidateController 候选人入口，不走 JWT，凭会话口令访问
type CandidateController struct {
	AttemptService *service.AttemptService
	AvatarService  *service.AvatarService
}

func NewCandidateController(attemptService *service.AttemptService, avatarService *service.AvatarService) *CandidateController {
	return &CandidateController{
		AttemptService: attemptService,
		AvatarService:  avatarService,
	}
}

// VerifyRequest 口令也可放在 X-Session-Password 请求头
// swagger:model VerifyRequest
type VerifyRequest struct {
	Password string `json:"password"`
}

// VerifyAttempt godoc
// @Summary 校验面试口令
// @Tags 候选人
// @Accept  json
// @Produce  json
// @Param attemptId path string true "作答ID"
// @Param   body body VerifyRequest false "口令"
// @Success 200 {object} util.Response{data=object} "{verified: true}"
// @Failure 401 {object} util.Response "口令错误"
// @Failure 429 {object} util.Response "尝试次数过多"
// @Router /api/candidate/attempts/{attemptId}/verify [post]
func (c *CandidateController) VerifyAttempt(ctx *gin.Context) {
	var req VerifyRequest
	_ = ctx.ShouldBindJSON(&req)
	err := c.AttemptService.VerifyPassword(ctx.Request.Context(), ctx.Param("attemptId"), sessionSecret(ctx, req.Password), ctx.ClientIP())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"verified": true})
}

// TakeAttempt godoc
// @Summary 获取作答题目
// @Description 不含标准答案；超时的作答返回 410
// @Tags 候选人
// @Produce  json
// @Param attemptId path string true "作答ID"
// @Param X-Session-Password header string true "会话口令"
// @Success 200 {object} util.Response{data=service.CandidateInterviewView}
// @Failure 410 {object} util.Response "已超时"
// @Router /api/candidate/attempts/{attemptId} [get]
func (c *CandidateController) TakeAttempt(ctx *gin.Context) {
	view, err := c.AttemptService.Take(ctx.Request.Context(), ctx.Param("attemptId"), sessionSecret(ctx, ""), ctx.ClientIP())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, view)
}

// CandidateSubmitRequest 提交体，禁止未知字段
// swagger:model CandidateSubmitRequest
type CandidateSubmitRequest struct {
	service.AttemptSubmitRequest
	Password string `json:"password"`
}

// SubmitAttempt godoc
// @Summary 提交作答
// @Tags 候选人
// @Accept  json
// @Produce  json
// @Param attemptId path string true "作答ID"
// @Param X-Session-Password header string false "会话口令"
// @Param   body body CandidateSubmitRequest true "答案"
// @Success 200 {object} util.Response{data=service.AttemptSubmitResult}
// @Failure 409 {object} util.Response "已提交"
// @Failure 410 {object} util.Response "已超时"
// @Router /api/candidate/attempts/{attemptId}/submit [post]
func (c *CandidateController) SubmitAttempt(ctx *gin.Context) {
	var req CandidateSubmitRequest
	dec := json.NewDecoder(io.LimitReader(ctx.Request.Body, maxSubmitBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		util.BadRequest(ctx, "invalid request body: "+err.Error())
		return
	}
	if err := binding.Validator.ValidateStruct(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.AttemptService.Submit(ctx.Request.Context(), ctx.Param("attemptId"), sessionSecret(ctx, req.Password), ctx.ClientIP(), req.AttemptSubmitRequest)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// RecordViolation godoc
// @Summary 上报违规
// @Description 切屏等违规累计达到上限时作答被终止
// @Tags 候选人
// @Produce  json
// @Param attemptId path string true "作答ID"
// @Param X-Session-Password header string true "会话口令"
// @Success 200 {object} util.Response{data=service.ViolationResult}
// @Router /api/candidate/attempts/{attemptId}/violations [post]
func (c *CandidateController) RecordViolation(ctx *gin.Context) {
	result, err := c.AttemptService.RecordViolation(ctx.Request.Context(), ctx.Param("attemptId"), sessionSecret(ctx, ""), ctx.ClientIP())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// VerifyAvatar godoc
// @Summary 校验视频面试口令
// @Tags 候选人
// @Accept  json
// @Produce  json
// @Param stageId path string true "阶段ID"
// @Param   body body VerifyRequest false "口令"
// @Success 200 {object} util.Response{data=object} "{verified: true}"
// @Failure 401 {object} util.Response "口令错误"
// @Router /api/candidate/assessments/{stageId}/verify [post]
func (c *CandidateController) VerifyAvatar(ctx *gin.Context) {
	var req VerifyRequest
	_ = ctx.ShouldBindJSON(&req)
	err := c.AvatarService.VerifyPassword(ctx.Request.Context(), ctx.Param("stageId"), sessionSecret(ctx, req.Password), ctx.ClientIP())
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"verified": true})
}

// UploadRecording godoc
// @Summary 上传视频面试录音
// @Tags 候选人
// @Accept  multipart/form-data
// @Produce  json
// @Param stageId path string true "阶段ID"
// @Param X-Session-Password header string false "会话口令"
// @Param file formData file true "录音文件"
// @Param questionIndex formData int false "题目序号"
// @Param uploadId formData string false "客户端生成的上传ID，用于查询进度"
// @Success 201 {object} util.Response{data=model.AvatarRecording}
// @Router /api/candidate/assessments/{stageId}/recordings [post]
func (c *CandidateController) UploadRecording(ctx *gin.Context) {
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	index, _ := strconv.Atoi(ctx.DefaultPostForm("questionIndex", "0"))

	rec, err := c.AvatarService.UploadRecording(ctx.Request.Context(), service.RecordingUpload{
		StageID:       ctx.Param("stageId"),
		Secret:        sessionSecret(ctx, ctx.PostForm("password")),
		Client:        ctx.ClientIP(),
		UploadID:      ctx.PostForm("uploadId"),
		QuestionIndex: index,
		File:          file,
	})
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, rec)
}

// UploadProgress godoc
// @Summary 录音上传进度
// @Tags 候选人
// @Produce  json
// @Param stageId path string true "阶段ID"
// @Param uploadId path string true "上传ID"
// @Success 200 {object} util.Response{data=service.UploadProgress}
// @Failure 404 {object} util.Response
// @Router /api/candidate/assessments/{stageId}/uploads/{uploadId} [get]
func (c *CandidateController) UploadProgress(ctx *gin.Context) {
	p, err := c.AvatarService.GetProgress(ctx.Param("uploadId"), ctx.Param("stageId"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, p)
}
