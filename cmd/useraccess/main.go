package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jinzhu/copier"
	"github.com/redis/go-redis/v9"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-useraccess/migrations"
	"github.com/tendant/simple-useraccess/pkg/auth"
	authapi "github.com/tendant/simple-useraccess/pkg/auth/api"
	"github.com/tendant/simple-useraccess/pkg/client"
	"github.com/tendant/simple-useraccess/pkg/config"
	"github.com/tendant/simple-useraccess/pkg/emailverification"
	"github.com/tendant/simple-useraccess/pkg/login"
	"github.com/tendant/simple-useraccess/pkg/notification"
	"github.com/tendant/simple-useraccess/pkg/passwordreset"
	"github.com/tendant/simple-useraccess/pkg/refreshtoken"
	"github.com/tendant/simple-useraccess/pkg/role"
	roleapi "github.com/tendant/simple-useraccess/pkg/role/api"
	"github.com/tendant/simple-useraccess/pkg/tokengenerator"
	"github.com/tendant/simple-useraccess/pkg/user"
	userapi "github.com/tendant/simple-useraccess/pkg/user/api"
)

type Services struct {
	authService *auth.AuthService
	userService *user.UserService
	roleService *role.RoleService
	tokenIssuer tokengenerator.TokenIssuer
}

func main() {
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     cfg.SlogLevel(),
	}))
	slog.SetDefault(logger)

	ctx := context.Background()

	dbConfig := cfg.Database.ToDbConfig()
	pool, err := dbutils.NewDbPool(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(1)
	}
	defer pool.Close()

	if err := migrations.Up(ctx, pool); err != nil {
		slog.Error("Failed to apply migrations", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(cfg.MailMq.RedisOptions())
	defer rdb.Close()
	mailQueue, err := notification.NewRedisMailQueue(rdb, cfg.MailMq.QueueName)
	if err != nil {
		slog.Error("Failed to create mail queue", "error", err)
		os.Exit(1)
	}

	services, err := initializeServices(pool, mailQueue, cfg)
	if err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server := app.DefaultApp()
	setupRoutes(server.R, services, cfg)

	slog.Info("User access service ready", "base_url", cfg.Registration.BaseURL, "mail_queue", mailQueue.QueueName())
	server.Run()
}

func initializeServices(pool *pgxpool.Pool, publisher notification.MailPublisher, cfg config.Config) (*Services, error) {
	accessExpiry, err := cfg.JWT.ParseAccessTokenExpiry()
	if err != nil {
		return nil, err
	}
	refreshExpiry, err := cfg.Token.ParseRefreshTokenExpiry()
	if err != nil {
		return nil, err
	}
	verificationExpiry, err := cfg.Token.ParseVerificationTokenExpiry()
	if err != nil {
		return nil, err
	}
	resetExpiry, err := cfg.Token.ParsePasswordResetTokenExpiry()
	if err != nil {
		return nil, err
	}

	hasher, err := login.NewPasswordHasher(cfg.Password.Algorithm)
	if err != nil {
		return nil, err
	}

	var complexity auth.PasswordComplexity
	if err := copier.Copy(&complexity, &cfg.PasswordComplexity); err != nil {
		return nil, err
	}

	userRepo := user.NewPostgresUserRepository(pool)
	roleRepo := role.NewPostgresRoleRepository(pool)
	issuer := tokengenerator.NewJwtTokenIssuer(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Audience, accessExpiry)

	authService, err := auth.NewAuthService(
		auth.WithUserRepository(userRepo),
		auth.WithRoleRepository(roleRepo),
		auth.WithPasswordHasher(hasher),
		auth.WithPasswordComplexity(complexity),
		auth.WithTokenIssuer(issuer),
		auth.WithRefreshTokenService(refreshtoken.NewService(
			refreshtoken.NewPostgresRepository(pool), userRepo,
			refreshtoken.WithExpiry(refreshExpiry),
		)),
		auth.WithVerificationService(emailverification.NewEmailVerificationService(
			emailverification.NewPostgresRepository(pool),
			emailverification.WithTokenExpiry(verificationExpiry),
		)),
		auth.WithPasswordResetService(passwordreset.NewService(
			passwordreset.NewPostgresRepository(pool),
			passwordreset.WithTokenExpiry(resetExpiry),
		)),
		auth.WithMailPublisher(publisher),
		auth.WithBaseURL(cfg.Registration.BaseURL),
		auth.WithDefaultRole(cfg.Registration.DefaultRole),
		auth.WithRefreshTokenRotation(cfg.Token.RefreshTokenRotation),
	)
	if err != nil {
		return nil, err
	}

	return &Services{
		authService: authService,
		userService: user.NewUserService(userRepo),
		roleService: role.NewRoleService(roleRepo, userRepo),
		tokenIssuer: issuer,
	}, nil
}

func setupRoutes(r *chi.Mux, services *Services, cfg config.Config) {
	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	authHandle := authapi.NewHandle(services.authService, authapi.WithSecureCookie(cfg.JWT.CookieSecure))
	userHandle := userapi.NewHandle(services.userService)
	roleHandle := roleapi.NewHandle(services.roleService)

	r.Group(func(r chi.Router) {
		r.Use(client.AuthMiddleware(services.tokenIssuer))

		r.Mount("/auth", authHandle.Routes())

		r.With(client.RequireAuth).Post("/user/me/change-password", authHandle.ChangePassword)

		r.Group(func(r chi.Router) {
			r.Use(client.RequireRole("ADMIN"))
			r.Mount("/role", roleHandle.Routes())
			r.Mount("/permission", roleHandle.PermissionRoutes())

			users := userHandle.Routes()
			roleHandle.UserRoleRoutes(users)
			r.Mount("/user", users)
		})
	})
}
