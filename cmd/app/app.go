package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/vietanh2810/certcheck-api/internal/api"
	"github.com/vietanh2810/certcheck-api/internal/config"
	"github.com/vietanh2810/certcheck-api/internal/db"
	"github.com/vietanh2810/certcheck-api/internal/logger"
	"github.com/vietanh2810/certcheck-api/internal/repository/dao"
)

var configPath string

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "certcheck-api",
		Short:         "Certificate issuing and event check-in API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "./cmd/app/config.yml", "path to the YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database tables",
		RunE: func(*cobra.Command, []string) error {
			return migrate()
		},
	})

	return root
}

// Execute runs the command line. Without a subcommand it serves the API.
func Execute() error {
	root := newRootCmd()
	args := os.Args[1:]
	if len(args) == 0 {
		args = []string{"serve"}
	}
	root.SetArgs(args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return root.ExecuteContext(ctx)
}

func bootstrap() (*config.AppConfig, *gorm.DB, error) {
	conf, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger -> %w", err)
	}

	if _, err = maxprocs.Set(maxprocs.Logger(zap.S().Infof)); err != nil {
		zap.L().Warn("failed to set GOMAXPROCS", zap.Error(err))
	}

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize database -> %w", err)
	}

	return conf, postgresDB, nil
}

func migrate() error {
	_, postgresDB, err := bootstrap()
	if err != nil {
		return err
	}
	if err = dao.InitTables(postgresDB); err != nil {
		return fmt.Errorf("failed to migrate tables -> %w", err)
	}
	zap.L().Info("tables migrated")

	return nil
}

func serve(ctx context.Context) error {
	conf, postgresDB, err := bootstrap()
	if err != nil {
		return err
	}
	if err = dao.InitTables(postgresDB); err != nil {
		return fmt.Errorf("failed to migrate tables -> %w", err)
	}
	conf.Watch()

	s, err := api.NewServer(ctx, conf, postgresDB)
	if err != nil {
		return fmt.Errorf("failed to initialize server -> %w", err)
	}
	defer func() {
		if err := s.Close(); err != nil {
			zap.L().Warn("failed to close server resources", zap.Error(err))
		}
	}()

	addr := ":" + s.Config.API.Port
	zap.L().Info(fmt.Sprintf("starting server at %v", addr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Router.Run(addr)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start the server -> %w", err)
		}
	case <-ctx.Done():
		zap.L().Info("shutting down")
	}

	return nil
}
