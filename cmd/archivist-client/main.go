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

	"github.com/Connor22/hydrus/client"
	"github.com/Connor22/hydrus/config"
	"github.com/Connor22/hydrus/kernel"
	"github.com/Connor22/hydrus/logger"
	"github.com/Connor22/hydrus/store"
)

var rootCmd = &cobra.Command{
	Use:   "archivist-client",
	Short: "archivist-client - personal media archive client",
	Long: `archivist-client runs the single-user media archive client: it watches
import folders, talks to subscribed repositories, and serves the local
client API that a companion UI drives.`,
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
	Short: "Boot the client kernel and block until shutdown",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		port := cfg.Server.Port
		if port == 0 {
			port = config.DefaultClientAPIPort
		}
		hooks := client.NewHooks(port)

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

		logger.Logger.Infow("archivist-client running", "port", port)
		waitForShutdownSignal()

		return ctrl.Shutdown()
	},
}

// dbFactory satisfies kernel.DbFactory by opening the client's SQLite file
// and applying pending migrations before the kernel starts its schedulers.
type dbFactory struct {
	dbPath string
}

func (f dbFactory) Open(dbDir string) (*sql.DB, error) {
	path := f.dbPath
	if path == "" {
		path = filepath.Join(dbDir, "client.db")
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
