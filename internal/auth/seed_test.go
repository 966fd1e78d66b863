package auth

import (
	"context"
	"log/slog"
	"testing"

	"github.com/nerrad567/sentry-core/internal/infrastructure/config"
)

func TestSeedAdmin_FirstBoot(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	password, err := SeedAdmin(ctx, repo, config.SeedAdminConfig{
		Username: "root",
		Password: "configured-password",
	}, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "configured-password" {
		t.Errorf("password = %q, want the configured one", password)
	}

	admin, err := repo.GetByUsername(ctx, "root")
	if err != nil {
		t.Fatalf("GetByUsername() error = %v", err)
	}
	if admin.Role != RoleAdmin || !admin.IsActive {
		t.Errorf("seed admin = %+v, want active admin", admin)
	}

	ok, err := VerifyPassword("configured-password", admin.PasswordHash)
	if err != nil || !ok {
		t.Errorf("VerifyPassword() = %v, %v; configured password should verify", ok, err)
	}
}

func TestSeedAdmin_GeneratesPassword(t *testing.T) {
	repo := NewUserRepository(testDB(t))

	password, err := SeedAdmin(context.Background(), repo, config.SeedAdminConfig{}, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password == "" {
		t.Error("SeedAdmin() should generate a password when none is configured")
	}

	if _, err := repo.GetByUsername(context.Background(), "admin"); err != nil {
		t.Errorf("default admin username missing: %v", err)
	}
}

func TestSeedAdmin_SkippedWhenUsersExist(t *testing.T) {
	repo := NewUserRepository(testDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, newTestUser("alice")); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	password, err := SeedAdmin(ctx, repo, config.SeedAdminConfig{Username: "root"}, slog.Default())
	if err != nil {
		t.Fatalf("SeedAdmin() error = %v", err)
	}
	if password != "" {
		t.Error("SeedAdmin() should skip when users exist")
	}
}
