package router

import (
	"ats-optimizer/internal/api/handler"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
)

// RegisterRoutes 注册 API 路由
// analyzeGuards 挂在评分和生成接口前，例如限流
func RegisterRoutes(h *server.Hertz, analysis *handler.AnalysisHandler, admin *handler.AdminHandler, adminAuth app.HandlerFunc, analyzeGuards ...app.HandlerFunc) {
	api := h.Group("/api/v1")

	api.GET("/health", analysis.Health)

	scoring := api.Group("", analyzeGuards...)
	scoring.POST("/analyze", analysis.Analyze)
	scoring.POST("/analyze/text", analysis.AnalyzeText)
	scoring.POST("/download-optimized", analysis.DownloadOptimized)

	api.POST("/admin/login", admin.Login)

	// 以下管理接口需要登录令牌
	secured := api.Group("/admin", adminAuth)
	secured.POST("/logout", admin.Logout)
	secured.GET("/dashboard", admin.Dashboard)
	secured.GET("/history", admin.History)
	secured.GET("/history/:id", admin.GetHistory)
	secured.PUT("/history/:id", admin.UpdateHistory)
	secured.GET("/history/:id/download", admin.DownloadHistory)
}
