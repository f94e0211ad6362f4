package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	abciserver "github.com/cometbft/cometbft/abci/server"
	"github.com/penumbra-zone/cnidarium-core/pkg/config"
	"github.com/penumbra-zone/cnidarium-core/pkg/driver"
	"github.com/penumbra-zone/cnidarium-core/pkg/events"
	"github.com/penumbra-zone/cnidarium-core/pkg/log"
	"github.com/penumbra-zone/cnidarium-core/pkg/mempool"
	"github.com/penumbra-zone/cnidarium-core/pkg/metrics"
	"github.com/penumbra-zone/cnidarium-core/pkg/migration"
	"github.com/penumbra-zone/cnidarium-core/pkg/pipeline"
	"github.com/penumbra-zone/cnidarium-core/pkg/query"
	"github.com/penumbra-zone/cnidarium-core/pkg/store"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// binaryAppVersion is checked against the store's persisted app_version by
// the App-Version Gate (spec §4.7) on every startup.
const binaryAppVersion = 1

// migrationMenu is the seam a schema change adds a named Migration to.
var migrationMenu = migration.Menu{}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "appd",
	Short: "appd runs a cnidarium-core state machine node",
	Long: `appd drives a single node of a Byzantine-fault-tolerant state
machine: a versioned, merkleized storage engine, a CometBFT ABCI++
driver, a Mempool Service, and a Query RPC surface, all in one binary.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"appd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("home", "./appd-home", "node home directory")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	initCmd.Flags().String("chain-id", "cnidarium-devnet", "chain ID written to genesis.json")
	migrateCmd.Flags().Bool("dry-run", false, "show which migrations would apply without committing them")
	migrateCmd.Flags().String("chain-id", "cnidarium-devnet", "chain ID written to the upgrade genesis.json")
	migrateCmd.Flags().String("genesis-time", "", "genesis_time written to the upgrade genesis.json (RFC3339, default now)")
	migrateCmd.Flags().String("checkpoint", "", "optional app_state checkpoint JSON embedded in the upgrade genesis.json")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(migrateCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

func homeDir(cmd *cobra.Command) string {
	home, _ := cmd.Flags().GetString("home")
	return home
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a node's home directory",
	Long: `Writes config.yaml, genesis.json, and priv_validator_state.json
into the node's home directory so it's ready for "appd start".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home := homeDir(cmd)
		chainID, _ := cmd.Flags().GetString("chain-id")

		cfg := config.Default(home)
		cfg.AppVersion = binaryAppVersion
		if err := config.Save(cfg.ResolvePath("config.yaml"), cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		doc := migration.GenesisDoc{
			GenesisTime:   time.Now().UTC(),
			ChainID:       chainID,
			InitialHeight: 1,
			AppState:      json.RawMessage(`{}`),
		}
		if err := migration.WriteGenesis(cfg.ResolvePath(cfg.GenesisPath), doc); err != nil {
			return fmt.Errorf("write genesis: %w", err)
		}
		if err := migration.WritePrivValidatorState(cfg.ResolvePath("priv_validator_state.json")); err != nil {
			return fmt.Errorf("write priv_validator_state: %w", err)
		}

		fmt.Printf("initialized node home at %s\n", home)
		return nil
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the ABCI++ application, Query RPC server, and metrics endpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		home := homeDir(cmd)
		cfg, err := config.Load(filepathConfig(home))
		if err != nil {
			return fmt.Errorf("load config (run \"appd init\" first): %w", err)
		}

		engine, err := store.Open(home)
		if err != nil {
			return fmt.Errorf("open storage engine: %w", err)
		}
		defer engine.Close()

		registry, err := driver.NewRegistry()
		if err != nil {
			return fmt.Errorf("build component registry: %w", err)
		}

		app, err := driver.NewApp(engine, registry, decodeTx, binaryAppVersion)
		if err != nil {
			return fmt.Errorf("start app (version gate): %w", err)
		}

		mp := mempool.New(engine, decodeTx)
		defer mp.Stop()
		app.SetMempool(mp)

		broker := events.NewBroker()
		broker.Start()
		defer broker.Stop()
		app.SetBroker(broker)

		abciSrv, err := abciserver.NewServer(cfg.ABCIListenAddr, "socket", app)
		if err != nil {
			return fmt.Errorf("build ABCI server: %w", err)
		}
		if err := abciSrv.Start(); err != nil {
			return fmt.Errorf("start ABCI server: %w", err)
		}
		defer func() { _ = abciSrv.Stop() }()
		log.WithComponent("appd").Info().Str("addr", cfg.ABCIListenAddr).Msg("ABCI server listening")

		querySrv, err := query.Listen(cfg.QueryListenAddr, engine)
		if err != nil {
			return fmt.Errorf("start query RPC server: %w", err)
		}
		defer querySrv.GracefulStop()

		collector := metrics.NewCollector(engine, mp)
		collector.Start()
		defer collector.Stop()
		metrics.RegisterComponent("store", true, "open")
		metrics.RegisterComponent("query", true, "listening")
		metrics.SetVersion(Version)

		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		mux.Handle("/health", metrics.HealthHandler())
		mux.Handle("/ready", metrics.ReadyHandler())
		mux.Handle("/live", metrics.LivenessHandler())
		metricsSrv := &http.Server{Addr: cfg.MetricsListenAddr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.WithComponent("appd").Error().Err(err).Msg("metrics server stopped")
			}
		}()
		log.WithComponent("appd").Info().Str("addr", cfg.MetricsListenAddr).Msg("metrics endpoint listening")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.WithComponent("appd").Info().Msg("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(ctx)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations and write the upgraded chain's genesis",
	Long: `Applies every pending migration to the node's storage engine, then
synthesizes the genesis.json and priv_validator_state.json the upgraded
chain instance boots from (spec §4.6, §8 scenario 5): app_hash is the
post-migration root, initial_height is the pre-migration height+1.

--dry-run only reports which migrations would apply; it commits nothing
and writes no genesis files.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home := homeDir(cmd)
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		engine, err := store.Open(home)
		if err != nil {
			return fmt.Errorf("open storage engine: %w", err)
		}
		defer engine.Close()

		if dryRun {
			applied, err := migrationMenu.Apply(context.Background(), engine, true)
			if err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
			if len(applied) == 0 {
				fmt.Println("no pending migrations")
				return nil
			}
			for _, name := range applied {
				fmt.Printf("would apply migration: %s\n", name)
			}
			return nil
		}

		chainID, _ := cmd.Flags().GetString("chain-id")
		genesisTimeFlag, _ := cmd.Flags().GetString("genesis-time")
		checkpointFlag, _ := cmd.Flags().GetString("checkpoint")

		genesisTime := time.Now().UTC()
		if genesisTimeFlag != "" {
			genesisTime, err = time.Parse(time.RFC3339, genesisTimeFlag)
			if err != nil {
				return fmt.Errorf("parse --genesis-time: %w", err)
			}
		}
		var checkpoint json.RawMessage
		if checkpointFlag != "" {
			checkpoint = json.RawMessage(checkpointFlag)
		}

		cfg, err := config.Load(filepathConfig(home))
		if err != nil {
			return fmt.Errorf("load config (run \"appd init\" first): %w", err)
		}

		result, err := migrationMenu.ApplyUpgrade(context.Background(), engine, chainID, genesisTime, checkpoint,
			cfg.ResolvePath(cfg.GenesisPath), cfg.ResolvePath("priv_validator_state.json"))
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}

		if len(result.Applied) == 0 {
			fmt.Println("no pending migrations")
		}
		for _, name := range result.Applied {
			metrics.MigrationsAppliedTotal.Inc()
			fmt.Printf("applied migration: %s\n", name)
		}
		fmt.Printf("wrote upgrade genesis: app_hash=%x initial_height=%d\n",
			result.Genesis.AppHash, result.Genesis.InitialHeight)
		return nil
	},
}

func filepathConfig(home string) string {
	return config.Default(home).ResolvePath("config.yaml")
}

// decodeTx is a placeholder TxDecoder: the transaction body's wire format
// is out of scope (spec.md leaves encoding beyond the ABCI surface itself
// unspecified), so this treats the raw bytes as an opaque, self-identifying
// blob carrying no actions. A concrete encoding plugs in here.
func decodeTx(raw []byte) (*pipeline.Transaction, error) {
	return &pipeline.Transaction{
		ID:               fmt.Sprintf("%x", raw),
		BindingSignature: []byte{0x01},
	}, nil
}
