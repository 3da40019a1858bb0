package commands

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/spf13/cobra"

	filestore "github.com/taskledger/core/internal/adapters/storage/file"
	pgstore "github.com/taskledger/core/internal/adapters/storage/postgres"
	"github.com/taskledger/core/internal/application/services"
	"github.com/taskledger/core/internal/infrastructure/config"
	"github.com/taskledger/core/internal/infrastructure/database"
	"github.com/taskledger/core/internal/infrastructure/logger"
	"github.com/taskledger/core/internal/infrastructure/server"
	"github.com/taskledger/core/internal/ports"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the TaskLedger server",
		Long:  "Start the TaskLedger server with all configured routes and middleware",
		Run: func(cmd *cobra.Command, args []string) {
			runServer()
		},
	}
}

// NewMigrateCommand creates the migrate command with subcommands
func NewMigrateCommand() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long:  "Manage database migrations for the postgres storage backend (up, down, version)",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Run all up migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("up")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Run all down migrations",
		Run: func(cmd *cobra.Command, args []string) {
			runMigration("down")
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print current migration version",
		Run: func(cmd *cobra.Command, args []string) {
			showMigrationVersion()
		},
	})

	return migrateCmd
}

// NewUserCommand creates the user management command
func NewUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management commands",
		Long:  "Create users directly against the configured storage backend",
	}

	createUserCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new user",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")

			if username == "" || password == "" {
				log.Fatal("Username and password are required")
			}

			createUser(username, password)
		},
	}

	createUserCmd.Flags().String("username", "", "Username (required)")
	createUserCmd.Flags().String("password", "", "Password (required)")

	listUsersCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered users",
		Run: func(cmd *cobra.Command, args []string) {
			listUsers()
		},
	}

	userCmd.AddCommand(createUserCmd)
	userCmd.AddCommand(listUsersCmd)
	return userCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print TaskLedger version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("TaskLedger v1.0.0")
		},
	}
}

// buildRepositories constructs the repositories for the configured storage
// driver, plus that backend's health descriptor and a cleanup function.
func buildRepositories(cfg *config.Config) (ports.UserRepository, ports.TaskRepository, server.StorageHealth, func(), error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := database.New(cfg.Database)
		if err != nil {
			return nil, nil, server.StorageHealth{}, nil, fmt.Errorf("connect to database: %w", err)
		}
		userRepo := pgstore.NewUserRepository(db.DB)
		taskRepo := pgstore.NewTaskRepository(db.DB)
		health := server.StorageHealth{
			Check: db.HealthCheck,
			Info:  db.GetConnectionInfo,
		}
		return userRepo, taskRepo, health, func() { _ = db.Close() }, nil
	default:
		store := filestore.New(cfg.Storage.FilePath)
		userRepo := filestore.NewUserRepository(store)
		taskRepo := filestore.NewTaskRepository(store)
		health := server.StorageHealth{
			Check: func() error {
				_, err := store.Load()
				return err
			},
			Info: func() map[string]interface{} {
				return map[string]interface{}{
					"driver":    config.DriverFile,
					"file_path": cfg.Storage.FilePath,
				}
			},
		}
		return userRepo, taskRepo, health, func() {}, nil
	}
}

func runServer() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer appLogger.Close()

	userRepo, taskRepo, storage, cleanup, err := buildRepositories(cfg)
	if err != nil {
		appLogger.Fatal("Failed to initialize storage", "error", err)
	}
	defer cleanup()

	// Create the data file up front so a broken path fails at startup, not
	// on the first request.
	if err := storage.Check(); err != nil {
		appLogger.Fatal("Storage not usable", "error", err)
	}

	srv, err := server.New(cfg, userRepo, taskRepo, storage, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize server", "error", err)
	}

	appLogger.Info("Starting TaskLedger server",
		"port", cfg.Server.Port,
		"storage", cfg.Storage.Driver,
		"environment", cfg.App.Environment,
	)

	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
			appLogger.Info("Server stopped", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", "error", err)
	}
}

func runMigration(direction string) {
	m := newMigrator()

	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if err != nil && err != migrate.ErrNoChange {
		log.Fatalf("Migration failed: %v", err)
	}

	if err == migrate.ErrNoChange {
		fmt.Println("No migrations to run")
	} else {
		fmt.Printf("Migration %s completed successfully\n", direction)
	}
}

func showMigrationVersion() {
	m := newMigrator()

	version, dirty, err := m.Version()
	if err != nil {
		log.Fatalf("Failed to get migration version: %v", err)
	}

	fmt.Printf("Current migration version: %d\n", version)
	fmt.Printf("Dirty: %t\n", dirty)
}

func newMigrator() *migrate.Migrate {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	driver, err := postgres.WithInstance(db.DB.DB, &postgres.Config{})
	if err != nil {
		log.Fatalf("Failed to create migration driver: %v", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		"file://migrations",
		"postgres",
		driver,
	)
	if err != nil {
		log.Fatalf("Failed to create migration instance: %v", err)
	}

	return m
}

func createUser(username, password string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	userRepo, _, _, cleanup, err := buildRepositories(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer cleanup()

	authService := services.NewAuthService(userRepo, nil, cfg.Session, logger.Nop())

	user, err := authService.Register(context.Background(), ports.RegisterRequest{
		Username: username,
		Password: password,
	})
	if err != nil {
		log.Fatalf("Failed to create user: %v", err)
	}

	fmt.Printf("User created successfully:\n")
	fmt.Printf("  Username: %s\n", user.Username)
}

func listUsers() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	userRepo, _, _, cleanup, err := buildRepositories(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize storage: %v", err)
	}
	defer cleanup()

	users, err := userRepo.List(context.Background())
	if err != nil {
		log.Fatalf("Failed to list users: %v", err)
	}

	count, err := userRepo.Count(context.Background())
	if err != nil {
		log.Fatalf("Failed to count users: %v", err)
	}

	for _, u := range users {
		fmt.Println(u.Username)
	}
	fmt.Printf("%d user(s)\n", count)
}
