package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"userhub/api/internal/cache"
	"userhub/api/internal/config"
	"userhub/api/internal/mail"
	"userhub/api/internal/middleware"
	"userhub/api/internal/models"
	"userhub/api/internal/repository"
	"userhub/api/internal/service"
	"userhub/api/internal/storage"
)

type HandlerSet struct {
	log            zerolog.Logger
	cfg            *config.AppConfig
	authService    *service.AuthService
	accountService *service.AccountService
	db             *pgxpool.Pool
	cache          *redis.Client
	revoker        *cache.RevocationList
	users          *repository.UserRepository
}

func NewHandlerSet(log zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client, store *storage.ObjectStore, mailer mail.Mailer, cfg *config.AppConfig) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewTokenRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	revoker := cache.NewRevocationList(redisClient)

	auth := service.NewAuthService(userRepo, tokenRepo, sessionRepo, revoker, mailer, cfg, log)
	account := service.NewAccountService(userRepo, auth, store, cfg, log)

	return HandlerSet{
		log:            log,
		cfg:            cfg,
		authService:    auth,
		accountService: account,
		db:             db,
		cache:          redisClient,
		revoker:        revoker,
		users:          userRepo,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/health", h.Health)

	auth := router.Group("/auth")
	auth.POST("/register", h.RegisterUser)
	auth.POST("/verify-email", h.VerifyEmail)
	auth.POST("/login",
		middleware.RateLimit(h.cache, h.log, "login", h.cfg.Security.LoginRateLimit, h.cfg.Security.LoginRateWindow),
		h.Login,
	)
	auth.POST("/refresh", h.Refresh)
	auth.POST("/forgot-password",
		middleware.RateLimit(h.cache, h.log, "forgot", h.cfg.Security.LoginRateLimit, h.cfg.Security.LoginRateWindow),
		h.ForgotPassword,
	)
	auth.POST("/reset-password", h.ResetPassword)
	auth.POST("/logout", middleware.Auth(h.cfg, h.users, h.revoker), h.Logout)

	profile := router.Group("/profile")
	profile.Use(middleware.Auth(h.cfg, h.users, h.revoker))
	profile.GET("", h.GetProfile)
	profile.PUT("", h.UpdateProfile)
	profile.POST("/avatar", h.UploadAvatar)

	admin := router.Group("/admin")
	admin.Use(
		middleware.Auth(h.cfg, h.users, h.revoker),
		middleware.RequireRoles(models.RoleAdmin),
	)
	admin.GET("/users", h.AdminListUsers)
	admin.PUT("/users/:id/role", h.AdminUpdateRole)
	admin.DELETE("/users/:id", h.AdminDeleteUser)

	if h.cfg.Testing.Enabled {
		test := router.Group("/test")
		test.POST("/verify-user", h.TestVerifyUser)
		test.POST("/set-user-role", h.TestSetUserRole)
		test.POST("/clear-database", h.TestClearDatabase)
	}
}
