package database

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/crexpressinc/formsgate/internal/config"
	"github.com/crexpressinc/formsgate/internal/models"
)

const (
	embeddedDataPath = "./db_data"
	embeddedPort     = 5433
)

// DB wraps gorm.DB and includes a reference to an embedded process if active
type DB struct {
	*gorm.DB
	embedded *embeddedpostgres.EmbeddedPostgres
}

// Wrap adapts an already opened gorm handle (tests, tools).
func Wrap(db *gorm.DB) *DB {
	return &DB{DB: db}
}

// cleanupStaleEmbeddedPostgres cleans up leftover processes from a previous crash
func cleanupStaleEmbeddedPostgres(log zerolog.Logger) {
	pidFile := filepath.Join(embeddedDataPath, "postmaster.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		// No pid file = clean state
		return
	}

	// First line of postmaster.pid is the PID
	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	if !scanner.Scan() {
		return
	}
	pid, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil {
		log.Warn().Err(err).Msg("⚠️  could not parse PID from postmaster.pid")
		return
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		log.Info().Int("pid", pid).Msg("🧹 cleaning up stale postmaster.pid")
		os.Remove(pidFile)
		return
	}

	// On Unix, FindProcess always succeeds, so signal 0 is the liveness probe
	if err := process.Signal(syscall.Signal(0)); err != nil {
		log.Info().Int("pid", pid).Msg("🧹 cleaning up stale postmaster.pid (process not running)")
		os.Remove(pidFile)
		return
	}

	log.Warn().Int("pid", pid).Msg("⚠️  found orphaned PostgreSQL process, attempting to stop")
	if err := process.Signal(syscall.SIGTERM); err != nil {
		log.Warn().Err(err).Int("pid", pid).Msg("⚠️  could not send SIGTERM")
	}

	for i := 0; i < 10; i++ {
		time.Sleep(500 * time.Millisecond)
		if err := process.Signal(syscall.Signal(0)); err != nil {
			log.Info().Msg("✅ orphaned PostgreSQL process stopped")
			os.Remove(pidFile)
			return
		}
	}

	log.Warn().Msg("⚠️  process did not stop gracefully, sending SIGKILL")
	process.Kill()
	time.Sleep(500 * time.Millisecond)
	os.Remove(pidFile)
}

// isPortInUse checks if a port is already in use
func isPortInUse(port int) bool {
	conn, err := net.DialTimeout("tcp", fmt.Sprintf("127.0.0.1:%d", port), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// DSN builds the connection string; DATABASE_URL wins over the PG_* parts.
func DSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
	)
}

// UseEmbedded reports whether Connect will start an embedded PostgreSQL:
// no DATABASE_URL, localhost and no password.
func UseEmbedded(cfg config.DatabaseConfig) bool {
	return cfg.URL == "" && cfg.Host == "localhost" && cfg.Password == ""
}

// Connect establishes a connection to a PostgreSQL database (external or embedded)
func Connect(cfg config.DatabaseConfig, log zerolog.Logger) (*DB, error) {
	log = log.With().Str("component", "database").Logger()

	var embedded *embeddedpostgres.EmbeddedPostgres

	if UseEmbedded(cfg) {
		log.Info().Msg("📦 Mode: [Embedded PostgreSQL] - initializing internal database")

		cleanupStaleEmbeddedPostgres(log)

		if isPortInUse(embeddedPort) {
			log.Warn().Int("port", embeddedPort).Msg("⚠️  port still in use, waiting for release")
			for i := 0; i < 6; i++ {
				time.Sleep(500 * time.Millisecond)
				if !isPortInUse(embeddedPort) {
					break
				}
			}
			if isPortInUse(embeddedPort) {
				return nil, fmt.Errorf("port %d is still in use by another process", embeddedPort)
			}
		}

		embeddedCfg := embeddedpostgres.DefaultConfig().
			DataPath(embeddedDataPath).
			Port(uint32(embeddedPort)).
			Database(cfg.Database).
			Username(cfg.Username).
			Password("postgres")

		embedded = embeddedpostgres.NewDatabase(embeddedCfg)
		if err := embedded.Start(); err != nil {
			return nil, fmt.Errorf("failed to start embedded database: %w", err)
		}

		cfg.Port = strconv.Itoa(embeddedPort)
		cfg.Password = "postgres"
		log.Info().Int("port", embeddedPort).Msg("✅ embedded PostgreSQL process started")
	} else {
		log.Info().Str("host", cfg.Host).Str("port", cfg.Port).Msg("🌐 Mode: [External PostgreSQL]")
	}

	db, err := gorm.Open(postgres.Open(DSN(cfg)), &gorm.Config{
		Logger: logger.Default.LogMode(gormLogLevel(cfg.LogLevel)),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		if embedded != nil {
			_ = embedded.Stop()
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err == nil {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	log.Info().Msg("✅ database connection established")

	return &DB{
		DB:       db,
		embedded: embedded,
	}, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

// Ping checks connectivity
func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close ensures the database connection and embedded process are shut down
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	closeErr := sqlDB.Close()

	if db.embedded != nil {
		if err := db.embedded.Stop(); err != nil && closeErr == nil {
			closeErr = err
		}
	}
	return closeErr
}

// AutoMigrate synchronizes the schema for every persisted model
func (db *DB) AutoMigrate() error {
	return db.DB.AutoMigrate(
		&models.AdminUser{},
		&models.Form{},
		&models.FormLink{},
		&models.Submission{},
		&models.Artifact{},
	)
}
