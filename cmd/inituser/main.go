package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5"
	dbutils "github.com/tendant/db-utils/db"
	"github.com/tendant/simple-useraccess/pkg/config"
	"github.com/tendant/simple-useraccess/pkg/login"
	"github.com/tendant/simple-useraccess/pkg/role"
	"github.com/tendant/simple-useraccess/pkg/user"
)

type UserInfo struct {
	Email       string
	Password    string
	RoleName    string
	Permissions []string
}

func main() {
	email := flag.String("email", "", "Email (and username) for the new user (required)")
	password := flag.String("password", "", "Password for the new user (required)")
	roleName := flag.String("role", "ADMIN", "Role to assign to the user")
	permissions := flag.String("permissions", "READ,WRITE", "Comma separated permissions granted to the role")
	flag.Parse()

	if *email == "" || *password == "" || *roleName == "" {
		fmt.Println("Error: email, password and role are required")
		flag.Usage()
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
	}))
	slog.SetDefault(logger)

	config.LoadEnvFile()
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to read configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	dbConfig := cfg.Database.ToDbConfig()
	pool, err := dbutils.NewDbPool(ctx, dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(1)
	}
	defer pool.Close()

	hasher, err := login.NewPasswordHasher(cfg.Password.Algorithm)
	if err != nil {
		slog.Error("Failed to create password hasher", "error", err)
		os.Exit(1)
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		slog.Error("Failed to start transaction", "error", err)
		os.Exit(1)
	}
	// Ignored once the transaction is committed.
	defer tx.Rollback(ctx)

	info := UserInfo{
		Email:       *email,
		Password:    *password,
		RoleName:    *roleName,
		Permissions: splitPermissions(*permissions),
	}
	created, err := createUser(ctx, tx, hasher, info)
	if err != nil {
		slog.Error("Failed to initialize user", "email", info.Email, "error", err)
		os.Exit(1)
	}

	if err := tx.Commit(ctx); err != nil {
		slog.Error("Failed to commit transaction", "error", err)
		os.Exit(1)
	}

	slog.Info("User created", "id", created.ID, "email", created.Email, "role", info.RoleName, "permissions", info.Permissions)
}

// createUser stores an enabled, confirmed user and grants it the role and
// permissions in info, creating whichever of them do not exist yet.
func createUser(ctx context.Context, tx pgx.Tx, hasher login.PasswordHasher, info UserInfo) (user.User, error) {
	users := user.NewPostgresUserRepository(tx)
	roles := role.NewPostgresRoleRepository(tx)

	hash, err := hasher.Hash(info.Password)
	if err != nil {
		return user.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	created, err := users.Create(ctx, user.User{
		Username:       info.Email,
		Email:          info.Email,
		PasswordHash:   hash,
		EmailConfirmed: true,
		Enabled:        true,
		Provider:       user.ProviderLocal,
	})
	if err != nil {
		return user.User{}, err
	}

	r, err := roles.GetRoleByName(ctx, info.RoleName)
	if errors.Is(err, role.ErrRoleNotFound) {
		r, err = roles.CreateRole(ctx, info.RoleName)
	}
	if err != nil {
		return user.User{}, fmt.Errorf("failed to find or create role %q: %w", info.RoleName, err)
	}

	for _, name := range info.Permissions {
		p, err := roles.GetPermissionByName(ctx, name)
		if errors.Is(err, role.ErrPermissionNotFound) {
			p, err = roles.CreatePermission(ctx, name)
		}
		if err != nil {
			return user.User{}, fmt.Errorf("failed to find or create permission %q: %w", name, err)
		}
		if err := roles.GrantPermission(ctx, r.ID, p.ID); err != nil {
			return user.User{}, err
		}
	}

	if err := roles.AssignUserRole(ctx, created.ID, r.ID); err != nil {
		return user.User{}, err
	}
	return created, nil
}

func splitPermissions(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
