package app

import (
	"hire_assessment_backend/docs"
	"hire_assessment_backend/internal/config"
	"hire_assessment_backend/internal/middleware"
	"hire_assessment_backend/internal/model"
	"hire_assessment_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c)

	// 2. 候选人路由，凭会话口令访问
	a.registerCandidateRoutes(router, c)

	// 3. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg))
	{
		authGroup.GET("/profile", c.auth.Profile)

		// 招聘方与面试官
		a.registerRecruiterRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/login", c.auth.Login)
	}
}

func (a *App) registerCandidateRoutes(router *gin.Engine, c *controllers) {
	candidate := router.Group("/api/candidate")
	{
		candidate.POST("/attempts/:attemptId/verify", c.candidate.VerifyAttempt)
		candidate.GET("/attempts/:attemptId", c.candidate.TakeAttempt)
		candidate.POST("/attempts/:attemptId/submit", c.candidate.SubmitAttempt)
		candidate.POST("/attempts/:attemptId/violations", c.candidate.RecordViolation)

		candidate.POST("/assessments/:stageId/verify", c.candidate.VerifyAvatar)
		candidate.POST("/assessments/:stageId/recordings", c.candidate.UploadRecording)
		candidate.GET("/assessments/:stageId/uploads/:uploadId", c.candidate.UploadProgress)
	}
}

func (a *App) registerRecruiterRoutes(group *gin.RouterGroup, c *controllers) {
	staff := middleware.RoleMiddleware(model.RoleRecruiter, model.RoleInterviewer)
	recruiter := middleware.RoleMiddleware(model.RoleRecruiter)

	group.POST("/users", recruiter, c.auth.Register)

	jobs := group.Group("/jobs", staff)
	{
		jobs.GET("", c.job.ListJobs)
		jobs.POST("", recruiter, c.job.CreateJob)
		jobs.GET("/:id", c.job.GetJob)
		jobs.GET("/:id/resumes", c.job.ListResumes)
		jobs.POST("/:id/resumes", recruiter, c.job.AddResume)
		jobs.POST("/:id/resumes/score", recruiter, c.job.ScoreResumes)
	}

	offers := group.Group("/offers", recruiter)
	{
		offers.GET("", c.offer.ListOffers)
		offers.POST("", c.offer.CreateOffer)
		offers.GET("/:id", c.offer.GetOffer)
		offers.PATCH("/:id", c.offer.UpdateOffer)
		offers.DELETE("/:id", c.offer.DeleteOffer)
		offers.GET("/:id/letter", c.offer.OfferLetter)
	}

	assessments := group.Group("/assessments", staff)
	{
		assessments.GET("/stats", c.stats.Stats)
		assessments.GET("/shortlist", c.stats.Shortlist)
		assessments.GET("/shortlist/export", c.stats.ExportShortlist)

		mcq := assessments.Group("/mcq")
		{
			mcq.GET("/templates", c.template.ListTemplates)
			mcq.POST("/templates", recruiter, c.template.CreateTemplates)
			mcq.POST("/templates/import", recruiter, c.template.Import)
			mcq.DELETE("/templates/:id", recruiter, c.template.DeleteTemplate)
			mcq.POST("/generate", recruiter, c.template.Generate)

			mcq.GET("/:id", c.mcq.GetPaper)
			mcq.POST("/:id/submit", c.mcq.Submit)
			mcq.PUT("/:id/draft", c.mcq.SaveDraft)
			mcq.GET("/:id/answers", c.mcq.ListAnswers)
		}

		assessments.GET("", c.stage.ListStages)
		assessments.POST("", recruiter, c.stage.CreateStage)
		assessments.GET("/:id", c.stage.GetStage)
		assessments.PATCH("/:id", c.stage.UpdateStage)
		assessments.DELETE("/:id", recruiter, c.stage.DeleteStage)
		assessments.POST("/:id/avatar/invite", recruiter, c.stage.InviteAvatar)
		assessments.GET("/:id/avatar/recordings", c.stage.ListRecordings)
	}

	interviews := group.Group("/interviews", staff)
	{
		interviews.GET("", c.interview.ListInterviews)
		interviews.POST("", recruiter, c.interview.CreateInterview)
		interviews.GET("/:id", c.interview.GetInterview)
		interviews.POST("/:id/send", c.interview.SendInterview)
		interviews.GET("/:id/attempts", c.interview.ListAttempts)
	}

	attempts := group.Group("/attempts", staff)
	{
		attempts.GET("/monitor", c.attempt.Monitor)
		attempts.GET("/:id", c.attempt.TrackAttempt)
		attempts.PATCH("/:id/status", c.attempt.UpdateStatus)
	}
}
