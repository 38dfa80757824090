package controller

import (
	"fmt"
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type StatsController struct {
	StatsService *service.StatsService
}

func NewStatsController(statsService *service.StatsService) *StatsController {
	return &StatsController{StatsService: statsService}
}

func statsFilter(ctx *gin.Context) (service.StatsFilter, error) {
	f := service.StatsFilter{JobPostID: ctx.Query("jobPostId")}
	if v := ctx.Query("interviewerId"); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return f, util.NewValidationError("invalid interviewerId")
		}
		uid := uint(id)
		f.InterviewerID = &uid
	}
	from, err := util.ParseDate(ctx.Query("dateFrom"))
	if err != nil {
		return f, util.NewValidationError("invalid dateFrom")
	}
	to, err := util.ParseDate(ctx.Query("dateTo"))
	if err != nil {
		return f, util.NewValidationError("invalid dateTo")
	}
	if to != nil && len(ctx.Query("dateTo")) == len(util.DateFormat) {
		end := to.Add(24*time.Hour - time.Nanosecond)
		to = &end
	}
	f.DateFrom, f.DateTo = from, to
	return f, nil
}

// Stats godoc
// @Summary 测评统计
// @Description 总览、题型分布、优秀候选人、近期动态与月度趋势
// @Tags 统计
// @Produce  json
// @Security ApiKeyAuth
// @Param jobPostId query string false "职位ID"
// @Param interviewerId query int false "面试官ID"
// @Param dateFrom query string false "开始日期 YYYY-MM-DD"
// @Param dateTo query string false "结束日期 YYYY-MM-DD"
// @Success 200 {object} util.Response{data=service.AssessmentStats}
// @Router /api/assessments/stats [get]
func (c *StatsController) Stats(ctx *gin.Context) {
	f, err := statsFilter(ctx)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	stats, err := c.StatsService.Stats(ctx.Request.Context(), util.GetUserFromContext(ctx), f)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, stats)
}

// Shortlist godoc
// @Summary 候选人入围名单
// @Tags 统计
// @Produce  json
// @Security ApiKeyAuth
// @Param jobPostId query string false "职位ID"
// @Success 200 {object} util.Response{data=[]service.ShortlistEntry}
// @Router /api/assessments/shortlist [get]
func (c *StatsController) Shortlist(ctx *gin.Context) {
	f, err := statsFilter(ctx)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	list, err := c.StatsService.Shortlist(ctx.Request.Context(), util.GetUserFromContext(ctx), f)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, list)
}

// ExportShortlist godoc
// @Summary 导出入围名单
// @Tags 统计
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param jobPostId query string false "职位ID"
// @Success 200 {file} file
// @Router /api/assessments/shortlist/export [get]
func (c *StatsController) ExportShortlist(ctx *gin.Context) {
	f, err := statsFilter(ctx)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	buf, err := c.StatsService.ExportShortlist(ctx.Request.Context(), util.GetUserFromContext(ctx), f)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	name := fmt.Sprintf("shortlist-%s.xlsx", time.Now().Format("20060102"))
	ctx.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	ctx.Data(http.StatusOK, util.MimeXLSX, buf.Bytes())
}
