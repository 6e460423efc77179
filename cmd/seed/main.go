package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"gorm.io/gorm"

	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/database"
	"github.com/crexpressinc/formsgate/internal/forms"
	"github.com/crexpressinc/formsgate/internal/logger"
	"github.com/crexpressinc/formsgate/internal/models"
	"github.com/crexpressinc/formsgate/internal/submissions"
	"github.com/crexpressinc/formsgate/internal/utils"
)

func main() {
	email := flag.String("email", os.Getenv("SEED_ADMIN_EMAIL"), "admin account email")
	password := flag.String("password", os.Getenv("SEED_ADMIN_PASSWORD"), "admin account password")
	name := flag.String("name", "Administrator", "admin display name")
	reset := flag.Bool("reset-password", false, "overwrite the password of an existing account")
	flag.Parse()

	fmt.Println("🌱 Forms gateway seeder")
	fmt.Println(strings.Repeat("=", 60))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	zl, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("❌ Failed to build logger: %v", err)
	}

	db, err := database.Connect(cfg.Database, zl)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	fmt.Println("✅ Connected to database")

	fmt.Println("🔨 Running database migrations...")
	if err := db.AutoMigrate(); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}
	fmt.Println("✅ Migrations complete")
	fmt.Println()

	ctx := context.Background()

	// Built-in forms; the registry only needs the store for deletes
	registry := forms.NewRegistry(db, submissions.NewStore(db, nil, zl), zl)
	created, err := registry.EnsureDefaults(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to create default forms: %v", err)
	}
	fmt.Printf("✅ Default forms ready (%d created)\n", created)

	if *email == "" {
		fmt.Println("⚠️  No -email given, skipping admin account")
		return
	}
	if err := seedAdmin(ctx, db, *email, *password, *name, *reset); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// seedAdmin creates the admin account or, with reset, replaces its password
func seedAdmin(ctx context.Context, db *database.DB, email, password, name string, reset bool) error {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.AdminUser
	err := db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	switch {
	case err == nil:
		if !reset {
			fmt.Printf("   ✓ Admin %s already exists\n", email)
			return nil
		}
		if len(password) < 8 {
			return errors.New("password must be at least 8 characters")
		}
		hash, err := utils.HashPassword(password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}
		if err := db.WithContext(ctx).Model(&user).Updates(map[string]interface{}{"password": hash, "is_active": true}).Error; err != nil {
			return fmt.Errorf("update admin: %w", err)
		}
		fmt.Printf("   ✓ Password reset for %s\n", email)
		return nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	if len(password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user = models.AdminUser{Email: email, Password: hash, Name: name, Role: "admin", IsActive: true}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Printf("✅ Created admin %s\n", email)
	return nil
}
