package cmd

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pinceletas/user-auth-service/app/controller"
	"github.com/pinceletas/user-auth-service/app/middleware"
	"github.com/pinceletas/user-auth-service/app/queue"
	"github.com/pinceletas/user-auth-service/app/repository"
	"github.com/pinceletas/user-auth-service/app/service"
	"github.com/pinceletas/user-auth-service/config"

	_ "github.com/go-sql-driver/mysql"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the HTTP (Echo) server together with the background staleness sweeper.`,
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configureLogging(cfg); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	db, err := sql.Open("mysql", cfg.DSN())
	if err != nil {
		logrus.WithError(err).Fatal("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logrus.WithError(err).Fatal("Failed to ping database")
	}

	userRepo := repository.NewUserRepository(db)
	resetTokenRepo := repository.NewResetTokenRepository(db)

	tokenService := service.NewTokenService(cfg)
	mailer := service.NewResendMailer(cfg)
	verifier, err := service.NewFirebaseVerifier(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to initialize firebase verifier")
	}

	var authOpts []service.AuthServiceOption
	if len(cfg.Kafka.Brokers) > 0 {
		producer := queue.NewProducer(cfg)
		defer producer.Close()
		authOpts = append(authOpts, service.WithNotificationPublisher(producer))
	}

	authService := service.NewAuthService(userRepo, tokenService, verifier, authOpts...)
	userService := service.NewUserService(userRepo)
	resetService := service.NewPasswordResetService(db, userRepo, resetTokenRepo, mailer, cfg)
	reportService := service.NewReportService(userRepo)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper := service.NewSweeper(userRepo, resetService, cfg)
	sweeper.Start(ctx)

	e := buildEcho(cfg, authService, userService, resetService, reportService, tokenService)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("Failed to start HTTP server")
		}
	}()

	<-ctx.Done()
	logrus.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Error("HTTP server shutdown failed")
	}

	sweeper.Wait()
	logrus.Info("Shutdown complete")
}

func buildEcho(
	cfg *config.Config,
	authService *service.AuthService,
	userService *service.UserService,
	resetService *service.PasswordResetService,
	reportService *service.ReportService,
	tokenService *service.TokenService,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	authMiddleware := middleware.NewAuthMiddleware(tokenService, cfg.HTTP.PublicPathPrefixes)
	e.Use(authMiddleware.Authenticate)

	authController := controller.NewAuthController(authService, resetService)
	userController := controller.NewUserController(userService)
	reportController := controller.NewReportController(reportService)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	auth := e.Group("/auth")
	auth.POST("/register", authController.Register)
	auth.POST("/login", authController.Login)
	auth.POST("/firebase-login", authController.FirebaseLogin)
	auth.POST("/firebase-register", authController.FirebaseRegister)
	auth.POST("/forgot-password", authController.ForgotPassword)
	auth.POST("/reset-password", authController.ResetPassword)

	me := e.Group("/users/me")
	me.Use(authMiddleware.RequireAuth)
	me.GET("", userController.Me)
	me.PUT("", userController.UpdateProfile)
	me.PUT("/address", userController.UpdateAddress)
	me.POST("/change-password", userController.ChangePassword)
	me.POST("/deactivate", userController.Deactivate)
	me.PUT("/accept-terms", userController.AcceptTerms)
	me.GET("/terms", userController.TermsStatus)

	admin := e.Group("/users")
	admin.Use(authMiddleware.RequireRole("ADMIN"))
	admin.DELETE("/:email", userController.Delete)

	reports := e.Group("/reports")
	reports.Use(authMiddleware.RequireRole("ADMIN"))
	reports.GET("/users/active-inactive", reportController.UserActiveInactiveStats)

	return e
}
