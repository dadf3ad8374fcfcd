package router

import (
	"log/slog"
	"net/http"
	"time"

	"reviewhub/internal/config"
	"reviewhub/internal/handlers"
	"reviewhub/internal/middleware"
	"reviewhub/internal/ratelimit"
	"reviewhub/internal/response"
	"reviewhub/internal/services"
	"reviewhub/internal/utils"
	"reviewhub/internal/ws"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/multitemplate"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Deps is everything the routes need.
type Deps struct {
	Config     *config.Config
	Logger     *slog.Logger
	DB         *gorm.DB
	Templates  multitemplate.Renderer
	Limiter    *ratelimit.Limiter
	Throttle   *middleware.IPThrottle
	Hub        *ws.Hub
	Auth       *services.AuthService
	Posts      *services.PostService
	Feed       *services.FeedService
	Tags       *services.TagService
	Votes      *services.VoteService
	Moderation *services.ModerationService
	Audit      *services.AuditService
}

// New builds the engine with middleware and every route.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.HTMLRender = d.Templates
	r.Use(middleware.RequestLogger(d.Logger), middleware.Recovery())

	origins := d.Config.Server.CORSOrigins
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders:    []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		corsCfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		corsCfg.AllowOrigins = origins
	}
	r.Use(cors.New(corsCfg))

	if d.Throttle != nil {
		r.Use(d.Throttle.Middleware())
	}

	store := cookie.NewStore([]byte(d.Config.Server.SessionSecret))
	store.Options(sessions.Options{Path: "/", MaxAge: int(d.Config.Auth.TokenTTL.Seconds()), HttpOnly: true, SameSite: http.SameSiteLaxMode})
	r.Use(sessions.Sessions("reviewhub_session", store))
	r.Use(middleware.LoadUser(d.Auth))

	RegisterRoutes(r, d)

	r.NoRoute(func(c *gin.Context) {
		response.Fail(c, utils.NewNotFoundError("route"))
	})
	return r
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Handlers
	storyHandler := handlers.NewStoryHandler(d.Posts, d.Feed, d.Tags)
	voteHandler := handlers.NewVoteHandler(d.Votes)
	adminHandler := handlers.NewAdminHandler(d.Moderation, d.Tags, d.Audit)
	authHandler := handlers.NewAuthHandler(d.Auth)
	threadHandler := handlers.NewThreadHandler(d.Posts)
	seoHandler := handlers.NewSEOHandler(d.DB, d.Feed, d.Config.Server.SiteURL)

	limit := func(name string) gin.HandlerFunc {
		rl := d.Config.RateLimit(name)
		return middleware.RateLimit(d.Limiter, ratelimit.Policy{Key: name, Limit: rl.Limit, Window: rl.Window})
	}

	// 公共路由 (Public Routes)
	r.GET("/healthz", handlers.Health(d.DB))
	r.GET("/p/:id", threadHandler.Show) // 帖子详情页（服务端渲染）
	r.GET("/robots.txt", seoHandler.RobotsTxt)
	r.GET("/sitemap.xml", seoHandler.SitemapXML)
	r.GET("/feed.xml", seoHandler.RSSFeed)
	if d.Hub != nil {
		r.GET("/ws", gin.WrapH(d.Hub)) // 实时事件推送
	}

	api := r.Group("/api")
	{
		api.GET("/posts", storyHandler.List)    // 帖子流
		api.GET("/posts/:id", storyHandler.Get) // 帖子与全部回复
		api.GET("/sidebar", storyHandler.Sidebar)
		api.GET("/tags", storyHandler.Tags)

		api.POST("/auth/register", limit(config.PolicyLogin), authHandler.Register)
		api.POST("/auth/login", limit(config.PolicyLogin), authHandler.Login)
		api.POST("/auth/logout", authHandler.Logout)
	}

	// 受保护路由 (Protected Routes)
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired())
	{
		authorized.POST("/posts", limit(config.PolicyCreatePost), storyHandler.Create)              // 发帖/回复
		authorized.POST("/posts/:id/vote", limit(config.PolicyVote), voteHandler.Vote)              // 投票
		authorized.POST("/posts/:id/moderate", limit(config.PolicyModerate), adminHandler.Moderate) // 置顶/锁定/隐藏
	}

	// 管理后台 (Admin Routes)
	admin := api.Group("/admin")
	admin.Use(middleware.AdminRequired())
	{
		admin.POST("/tags", limit(config.PolicyModerate), adminHandler.CreateTag)
		admin.DELETE("/tags/:id", limit(config.PolicyModerate), adminHandler.DeleteTag)
		admin.GET("/audit", adminHandler.Audit)
	}
}
