package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Connor22/hydrus/config"
	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/logger"
	"github.com/Connor22/hydrus/serverrole"
	"github.com/Connor22/hydrus/store"
)

var rootCmd = &cobra.Command{
	Use:   "archivist-server",
	Short: "archivist-server - shared media repository server",
	Long: `archivist-server hosts the admin, file and tag repository services that
archivist-client instances synchronize against.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Boot the server kernel and block until shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		basePort := cfg.Server.Port
		if basePort == 0 {
			basePort = config.DefaultServerPort
		}
		services := []serverrole.ServiceConfig{
			{ServiceKey: "admin", Port: basePort},
			{ServiceKey: "file_repository", Port: basePort + 1},
			{ServiceKey: "tag_repository", Port: basePort + 2},
		}
		hooks := serverrole.NewHooks(services, cfg.Server.NetworkVersion)

		ctrl := kernel.NewController(kernel.ControllerConfig{
			DBDir:                 filepath.Dir(cfg.Database.Path),
			FastSchedulerInterval: time.Duration(cfg.Kernel.FastSchedulerIntervalMS) * time.Millisecond,
			SlowSchedulerInterval: time.Duration(cfg.Kernel.SlowSchedulerIntervalMS) * time.Millisecond,
			ShortTaskPoolCap:      cfg.Kernel.ShortTaskPoolCap,
			ThreadSlotCapacities:  cfg.Kernel.ThreadSlots,
			Idle: kernel.IdleConfig{
				NormalIdle:   time.Duration(cfg.Idle.NormalIdleSeconds) * time.Second,
				VeryIdle:     time.Duration(cfg.Idle.VeryIdleSeconds) * time.Second,
				WakeGrace:    time.Duration(cfg.Idle.WakeGraceSeconds) * time.Second,
				ClockJumpGap: time.Duration(cfg.Idle.ClockJumpThresholdSeconds) * time.Second,
			},
		}, hooks)

		if err := ctrl.Boot(dbFactory{dbPath: cfg.Database.Path}); err != nil {
			return fmt.Errorf("boot controller: %w", err)
		}

		logger.Logger.Infow("archivist-server running", "base_port", basePort)
		waitForShutdownSignal()

		return ctrl.Shutdown()
	},
}

// dbFactory satisfies kernel.DbFactory by opening the server's SQLite file
// and applying pending migrations before the kernel starts its schedulers.
type dbFactory struct {
	dbPath string
}

func (f dbFactory) Open(dbDir string) (*sql.DB, error) {
	path := f.dbPath
	if path == "" {
		path = filepath.Join(dbDir, "server.db")
	}
	return store.OpenWithMigrations(path, logger.Logger)
}

func waitForShutdownSignal() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
