// Package api contains all endpoints available
package api

import (
	"fmt"
	"time"

	"firstbit/storage-api/db"
	"firstbit/storage-api/middleware"
	"firstbit/storage-api/service"
	"firstbit/storage-api/storage"

	cache "github.com/chenyahui/gin-cache"
	"github.com/chenyahui/gin-cache/persist"
	ginzap "github.com/gin-contrib/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/gorm"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

var store = persist.NewMemoryStore(time.Minute)

type API struct {
	DB       *gorm.DB
	Router   *gin.Engine
	S3       *storage.Client
	Registry *service.Registry
	Codes    *service.CodeStore
	Mailer   *service.Mailer
	Redis    *redis.Client
	Limiter  middleware.RateLimitStore
}

func NewRouter() (*API, error) {
	a := &API{}

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database, %w", err)
	}
	a.DB = database

	makeLogger()

	a.Redis = db.NewRedis()
	a.Limiter = middleware.NewRedisRateStore(a.Redis)
	a.Codes = service.NewCodeStore(a.Redis)
	a.Mailer = service.NewMailer()

	s3, err := storage.New()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 client, %w", err)
	}
	a.S3 = s3
	a.Registry = service.NewRegistry(database, s3)

	service.StartSessionSweeper(
		time.Duration(viper.GetInt("upload.sweep_interval_minutes"))*time.Minute,
		time.Duration(viper.GetInt("upload.session_ttl_hours"))*time.Hour,
		a.Registry,
	)

	router := gin.New()
	a.Router = router

	router.Use(
		cors.New(cors.Config{
			AllowOrigins:     []string{"http://localhost:5173"},
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}),
		gin.Recovery(),
		middleware.NewRequestIDMiddleware(),
		ginzap.GinzapWithConfig(zap.L(), &ginzap.Config{
			TimeFormat: "15:04:05.000",
			UTC:        true,
			Skipper: func(c *gin.Context) bool {
				return c.Request.Method == "HEAD"
			},
			Context: func(c *gin.Context) []zapcore.Field {
				fields := []zapcore.Field{}

				if v := c.GetString("requestID"); v != "" {
					fields = append(fields, zap.String("request_id", v))
				}

				if v := c.GetString("userID"); v != "" {
					fields = append(fields, zap.String("userID", v))
				}

				return fields
			},
		}),
	)

	router.HandleMethodNotAllowed = true
	router.RedirectFixedPath = true
	a.Router.MaxMultipartMemory = viper.GetInt64("upload.chunk_size")

	jwt := middleware.NewJWTMiddleware(database)
	admin := middleware.RequireAdmin()
	chunkLimit := viper.GetInt64("upload.chunk_size") + 1<<20 // part payload + form overhead

	uploadRate := a.rateLimit("upload")
	filesRate := a.rateLimit("files")
	authRate := a.rateLimit("auth")
	sendCodeRate := a.rateLimit("auth-send-code")

	main := router.Group("/api")
	{
		// HEAD /api/heartbeat		-> Used to check if the server is alive
		main.HEAD("/heartbeat", a.Heartbeat)
	}

	auth := main.Group("/auth", middleware.BodySizeLimiter(1<<20))
	{
		// POST /api/auth/send-code	-> Emails a one-time login code
		auth.POST("/send-code", sendCodeRate, a.AuthSendCode)

		// POST /api/auth/login		-> Exchanges email+code for an auth cookie
		auth.POST("/login", authRate, a.AuthLogin)
	}

	files := main.Group("/files", jwt)
	{
		// GET /api/files		-> Lists the caller's files
		files.GET("", filesRate, a.FileFetchBulk)

		// GET /api/files/count		-> Number of non-deleted files the caller owns
		files.GET("/count", filesRate, a.FileCount)

		// GET /api/files/:id/download	-> Presigned, time-limited download URL
		files.GET("/:id/download", filesRate, a.FileDownload)

		// PATCH /api/files/:id		-> Soft delete or restore one file
		files.PATCH("/:id", filesRate, a.FileEdit)

		// DELETE /api/files/:id	-> Hard delete: removes the row and the object
		files.DELETE("/:id", filesRate, a.FileDelete)

		// PATCH /api/files/bulk	-> Soft delete or restore many files at once
		files.PATCH("/bulk", filesRate, a.FileBulkEdit)

		// The multipart upload lifecycle
		files.POST("/init-multipart", uploadRate, a.UploadInit)
		files.POST("/upload-multipart", uploadRate, middleware.BodySizeLimiter(chunkLimit), a.UploadPart)
		files.POST("/complete-multipart", uploadRate, a.UploadComplete)
		files.POST("/abort-multipart", uploadRate, a.UploadAbort)
	}

	adm := main.Group("/admin", jwt, admin)
	{
		// GET /api/admin/users		-> Paginated user listing with search
		adm.GET("/users", a.AdminUserList)

		// POST /api/admin/users	-> Creates a user
		adm.POST("/users", a.AdminUserCreate)

		// PATCH /api/admin/users/:id	-> Updates name/email/role
		adm.PATCH("/users/:id", a.AdminUserUpdate)

		// DELETE /api/admin/users/:id	-> Removes a user
		adm.DELETE("/users/:id", a.AdminUserDelete)

		// GET /api/admin/files		-> All files, any owner, incl. deleted
		adm.GET("/files", a.AdminFileList)

		// PATCH /api/admin/files/:id	-> Soft delete/restore any file
		adm.PATCH("/files/:id", a.AdminFileEdit)

		// DELETE /api/admin/files/:id	-> Hard delete any file
		adm.DELETE("/files/:id", a.AdminFileDelete)

		// GET /api/admin/upload-history -> Audit log of upload attempts.
		// Identical for every admin, so a short URI cache is safe here
		adm.GET("/upload-history", cacheFor(10), a.AdminUploadHistory)
	}

	return a, nil
}

func (a *API) rateLimit(class string) gin.HandlerFunc {
	return middleware.RateLimiterMiddleware(a.Limiter, rateCfg(class))
}

func rateCfg(class string) middleware.RateLimiterConfig {
	return middleware.RateLimiterConfig{
		Class:    class,
		Limit:    viper.GetInt("rate_limit." + class + ".limit"),
		Interval: time.Duration(viper.GetInt("rate_limit."+class+".interval_seconds")) * time.Second,
		FailOpen: viper.GetBool("rate_limit.fail_open"),
	}
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()
	cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + t.Format("15:04:05.000") + reset)
	}
	cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
		pae.AppendString(gray + ec.TrimmedPath() + reset)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}

func cacheFor(sec int) gin.HandlerFunc {
	return cache.CacheByRequestURI(store, time.Second*time.Duration(sec))
}
