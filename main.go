package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/nextpost/backend/repository"
	"github.com/nextpost/backend/services"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "nextpost",
		Short: "NextPost social media scheduling backend",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(createAdminCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server and the post scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := services.LoadConfig()
			setupLogging(config)

			repo, err := openDatabase(config)
			if err != nil {
				return err
			}

			if err := repo.AutoMigrate(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			if config.Database.Seed {
				seeder := services.NewDatabaseSeeder(repo)
				if err := seeder.SeedDatabase(); err != nil {
					slog.Error("Database seeding failed", "error", err)
				}
			}

			server := services.NewServer(config)
			server.SetDatabase(repo)
			if err := server.InitializeServices(); err != nil {
				return fmt.Errorf("failed to initialize services: %w", err)
			}

			server.Start()
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := services.LoadConfig()
			setupLogging(config)

			repo, err := openDatabase(config)
			if err != nil {
				return err
			}

			if err := repo.AutoMigrate(); err != nil {
				return fmt.Errorf("failed to run migrations: %w", err)
			}

			slog.Info("Migrations applied")
			return nil
		},
	}
}

func createAdminCmd() *cobra.Command {
	var email, password, fullName string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			config := services.LoadConfig()
			setupLogging(config)

			repo, err := openDatabase(config)
			if err != nil {
				return err
			}

			authService := services.NewAuthService(repo, config.JWT.Secret)
			user, err := authService.CreateAdmin(context.Background(), email, password, fullName)
			if err != nil {
				return fmt.Errorf("failed to create admin: %w", err)
			}

			slog.Info("Admin account created", "email", user.Email, "user_id", user.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&password, "password", "", "admin password")
	cmd.Flags().StringVar(&fullName, "name", "Administrator", "admin display name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")

	return cmd
}

// setupLogging installs a JSON slog handler, mirroring to a rotating file
// when one is configured
func setupLogging(config *services.Config) {
	var sink io.Writer = os.Stdout
	if config.Log.File != "" {
		sink = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   config.Log.File,
			MaxSize:    config.Log.MaxSizeMB,
			MaxBackups: config.Log.MaxBackups,
		})
	}

	logger := slog.New(slog.NewJSONHandler(sink, nil))
	slog.SetDefault(logger)
}

func openDatabase(config *services.Config) (*repository.GORMRepository, error) {
	if config.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not configured")
	}

	sqlDB, err := sql.Open("pgx", config.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxIdleConns(config.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(config.Database.MaxOpenConns)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ORM: %w", err)
	}

	slog.Info("Connected to database")
	return repository.NewGORMRepository(db), nil
}
