package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/isaacvitor/postgresql-nutshell/internal/config"
	"github.com/isaacvitor/postgresql-nutshell/internal/database"
	"github.com/isaacvitor/postgresql-nutshell/internal/logger"
	"github.com/isaacvitor/postgresql-nutshell/internal/shutdown"
	"github.com/isaacvitor/postgresql-nutshell/internal/storage"
)

// Version is set at build time
var Version = "dev"

// shutdownTimeout bounds how long closing the connection and backends may take
const shutdownTimeout = 10 * time.Second

// app carries state shared by all subcommands
type app struct {
	configFile string
	envFile    string
	verbose    bool
	cfg        *config.Config
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "jsonbench",
		Short: "Benchmark PostgreSQL jsonb access operators and chart the results",
		Long: `jsonbench times the four jsonb field access forms (->, #>, [] subscript and
jsonpath) against a fixture table of documents of varying size and nesting
depth, using EXPLAIN ANALYZE, and renders the medians as log-log charts.`,
		Version:           Version,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "config file (default: jsonbench.toml in ., /etc/jsonbench, $HOME/.jsonbench)")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before configuration, ignored when missing")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging (per-sample timings and queries)")

	root.AddCommand(
		newRunCmd(a),
		newGridCmd(a),
		newPlotCmd(a),
		newHistoryCmd(a),
	)

	return root
}

// setup loads the environment file and configuration, then the logger
func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}

	a.cfg = cfg
	logger.Setup(cfg.Log.Level, cfg.Log.Format)
	return nil
}

// validate re-checks the configuration after subcommand flag overrides
func (a *app) validate() error {
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (a *app) newCoordinator() *shutdown.Coordinator {
	return shutdown.New(shutdownTimeout, logger.Get("shutdown"))
}

// closeAll runs the coordinator; close errors are logged, not returned, so
// they never mask the command's own result
func closeAll(coord *shutdown.Coordinator) {
	if err := coord.Shutdown(); err != nil {
		log.Warn().Err(err).Msg("Cleanup incomplete")
	}
}

func (a *app) openStorage(coord *shutdown.Coordinator) (storage.Backend, error) {
	s := a.cfg.Storage
	backend, err := storage.New(&storage.Config{
		Backend:   s.Backend,
		LocalPath: s.LocalPath,
		S3: storage.S3Config{
			Bucket:    s.S3Bucket,
			Prefix:    s.S3Prefix,
			Region:    s.S3Region,
			Endpoint:  s.S3Endpoint,
			AccessKey: s.S3AccessKey,
			SecretKey: s.S3SecretKey,
			UseSSL:    s.S3UseSSL,
			PathStyle: s.S3PathStyle,
		},
		Azure: storage.AzureBlobConfig{
			ConnectionString:   s.AzureConnectionString,
			AccountName:        s.AzureAccountName,
			AccountKey:         s.AzureAccountKey,
			SASToken:           s.AzureSASToken,
			UseManagedIdentity: s.AzureUseManagedIdentity,
			ContainerName:      s.AzureContainer,
			Prefix:             s.AzurePrefix,
			Endpoint:           s.AzureEndpoint,
		},
	}, logger.Get("storage"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s storage: %w", s.Backend, err)
	}
	coord.Register("storage", backend, shutdown.PriorityStorage)
	return backend, nil
}

func (a *app) databaseConfig() *database.Config {
	d := a.cfg.Database
	return &database.Config{
		Host:     d.Host,
		Port:     d.Port,
		Name:     d.Name,
		User:     d.User,
		Password: d.Password,
		SSLMode:  d.SSLMode,
		Table:    d.Table,
		Column:   d.Column,
	}
}
