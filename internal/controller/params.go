package controller

import (
	"hire_assessment_backend/internal/util"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

func pageParams(ctx *gin.Context) (int, int) {
	page, _ := strconv.Atoi(ctx.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(ctx.DefaultQuery("limit", "20"))
	return page, limit
}

// sessionSecret 优先取请求头，其次取请求体中的口令
func sessionSecret(ctx *gin.Context, fromBody string) string {
	if v := strings.TrimSpace(ctx.GetHeader(util.SessionPasswordHeader)); v != "" {
		return v
	}
	return strings.TrimSpace(fromBody)
}
