package controller

import (
	"hire_assessment_backend/internal/service"
	"hire_assessment_backend/internal/util"
	"net/http"

	"github.com/gin-gonic/gin"
)

type OfferController struct {
	OfferService *service.OfferService
}

func NewOfferController(offerService *service.OfferService) *OfferController {
	return &OfferController{OfferService: offerService}
}

// CreateOffer godoc
// @Summary 创建录用通知
// @Tags 录用
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body service.CreateOfferRequest true "录用信息"
// @Success 201 {object} util.Response{data=model.OfferLetter}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /api/offers [post]
func (c *OfferController) CreateOffer(ctx *gin.Context) {
	var req service.CreateOfferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	offer, err := c.OfferService.Create(ctx.Request.Context(), util.GetUserFromContext(ctx), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, offer)
}

// ListOffers godoc
// @Summary 录用通知列表
// @Tags 录用
// @Produce  json
// @Security ApiKeyAuth
// @Param jobId query string false "职位ID"
// @Param status query string false "状态"
// @Param page query int false "页码"
// @Param limit query int false "每页数量"
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /api/offers [get]
func (c *OfferController) ListOffers(ctx *gin.Context) {
	var q service.OfferListQuery
	if err := ctx.ShouldBindQuery(&q); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.OfferService.List(ctx.Request.Context(), util.GetUserFromContext(ctx), q)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// GetOffer godoc
// @Summary 录用通知详情（含测评结果）
// @Tags 录用
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "录用通知ID"
// @Success 200 {object} util.Response{data=service.OfferDetail}
// @Failure 404 {object} util.Response
// @Router /api/offers/{id} [get]
func (c *OfferController) GetOffer(ctx *gin.Context) {
	detail, err := c.OfferService.Get(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, detail)
}

// UpdateOffer godoc
// @Summary 修改录用通知或流转状态
// @Tags 录用
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "录用通知ID"
// @Param   body body service.UpdateOfferRequest true "修改内容"
// @Success 200 {object} util.Response{data=model.OfferLetter}
// @Failure 409 {object} util.Response
// @Router /api/offers/{id} [patch]
func (c *OfferController) UpdateOffer(ctx *gin.Context) {
	var req service.UpdateOfferRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	offer, err := c.OfferService.Update(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, offer)
}

// DeleteOffer godoc
// @Summary 删除录用通知
// @Tags 录用
// @Produce  json
// @Security ApiKeyAuth
// @Param id path string true "录用通知ID"
// @Success 200 {object} util.Response
// @Router /api/offers/{id} [delete]
func (c *OfferController) DeleteOffer(ctx *gin.Context) {
	if err := c.OfferService.Delete(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id")); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"message": "Offer deleted successfully"})
}

// OfferLetter godoc
// @Summary 下载录用通知
// @Tags 录用
// @Produce  html
// @Security ApiKeyAuth
// @Param id path string true "录用通知ID"
// @Success 200 {string} string "HTML"
// @Router /api/offers/{id}/letter [get]
func (c *OfferController) OfferLetter(ctx *gin.Context) {
	html, err := c.OfferService.Letter(ctx.Request.Context(), util.GetUserFromContext(ctx), ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	if ctx.Query("download") == "1" {
		ctx.Header("Content-Disposition", `attachment; filename="offer-letter-`+ctx.Param("id")+`.html"`)
	}
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", html)
}
