// Command gofastdb is the server process: it wires internal/config,
// internal/logutil, internal/database, internal/command, internal/engine,
// and the optional persistence/replication/swap subsystems together and
// runs until a shutdown signal arrives.
//
// Grounded on the original server's cmd.go (cobra rootCmd + viper flag binding),
// generalized from its fixed single-flag set to the full option
// surface, loaded through internal/config instead of ad hoc viper calls.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gofastdb/internal/aof"
	"gofastdb/internal/command"
	"gofastdb/internal/config"
	"gofastdb/internal/database"
	"gofastdb/internal/engine"
	"gofastdb/internal/logutil"
	"gofastdb/internal/replication"
	"gofastdb/internal/swap"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	v := viper.New()
	var configFile string

	cmd := &cobra.Command{
		Use:     "gofastdb",
		Short:   "gofastdb is an in-memory key-value store",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			if configFile != "" {
				v.SetConfigFile(configFile)
			} else {
				v.SetConfigName("gofastdb")
				v.SetConfigType("yaml")
				v.AddConfigPath(".")
				v.AddConfigPath("/etc/gofastdb/")
			}
			bindFlags(cmd, v)
			return runServer(v)
		},
	}

	cmd.Flags().StringVar(&configFile, "config", "", "path to a config file")
	cmd.Flags().Int("port", 0, "port to listen on (0 uses config/default)")
	cmd.Flags().String("bind", "", "address to bind to")
	cmd.Flags().String("dir", "", "working directory for persistence files")
	cmd.Flags().String("loglevel", "", "debug|verbose|notice|warning")
	cmd.Flags().String("logfile", "", "log file path, empty logs to stderr")
	cmd.Flags().String("requirepass", "", "require clients to AUTH with this password")
	cmd.Flags().String("slaveof", "", "\"host port\" of a master to replicate from")
	cmd.Flags().Bool("appendonly", false, "enable the append-only log")
	cmd.Flags().Bool("vm-enabled", false, "enable the page-swap subsystem")

	cmd.AddCommand(versionCmd())
	return cmd
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) {
	for _, name := range []string{"port", "bind", "dir", "loglevel", "logfile", "requirepass", "slaveof", "appendonly", "vm-enabled"} {
		v.BindPFlag(name, cmd.Flags().Lookup(name))
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the version and exit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("gofastdb", version)
		},
	}
}

func runServer(v *viper.Viper) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logutil.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("logutil: %w", err)
	}

	server := database.NewServer(cfg.Databases)
	server.RequirePass = cfg.RequirePass
	server.MaxMemory = cfg.MaxMemory
	server.SaveParams = toDBSaveParams(cfg.Save)
	server.HashMaxZipmapEntries = cfg.HashMaxZipmapEntries
	server.HashMaxZipmapValue = cfg.HashMaxZipmapValue

	table := command.NewTable()
	eng := engine.New(server, table, 100*time.Millisecond)
	eng.Log = logutil.Component(log, "engine")
	eng.RequirePass = cfg.RequirePass
	eng.HashEntryTh = cfg.HashMaxZipmapEntries
	eng.HashValueTh = cfg.HashMaxZipmapValue
	eng.RDBPath = filepath.Join(cfg.Dir, cfg.DBFilename)
	eng.RDBCompress = cfg.RDBCompression

	if err := eng.LoadRDB(eng.RDBPath); err != nil {
		log.Warn().Err(err).Msg("loading snapshot failed, starting empty")
	}

	aofPath := filepath.Join(cfg.Dir, "appendonly.aof")
	if cfg.AppendOnly {
		if err := eng.ReplayAOF(aofPath); err != nil {
			log.Warn().Err(err).Msg("replaying append-only log failed")
		}
		policy := aof.FsyncEverySec
		switch cfg.AppendFsync {
		case "always":
			policy = aof.FsyncAlways
		case "no":
			policy = aof.FsyncNever
		}
		af, err := aof.Open(aofPath, policy)
		if err != nil {
			return fmt.Errorf("aof: %w", err)
		}
		eng.AOF = af
		defer af.Close()
	}

	if cfg.VMEnabled {
		swapPath := filepath.Join(cfg.Dir, cfg.VMSwapFile)
		file, err := swap.OpenFile(swapPath, cfg.VMPages, cfg.VMPageSize)
		if err != nil {
			return fmt.Errorf("swap: %w", err)
		}
		alloc := swap.NewPageAllocator(cfg.VMPages, cfg.VMPageSize)
		eng.SwapFile = file
		eng.SwapAlloc = alloc
		eng.SwapPool = swap.NewPool(file, alloc, cfg.VMMaxThreads, 256)
		eng.SwapEnabled = true
		defer file.Close(swapPath)
	}

	if host, port, ok := cfg.SlaveOfHostPort(); ok {
		go runReplica(eng, host, port, cfg.MasterAuth, eng.RDBPath, logutil.Component(log, "replication"))
	}

	ln, err := engine.Listen(cfg.Bind, cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	log.Info().Str("bind", cfg.Bind).Int("port", cfg.Port).Msg("gofastdb listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	signal.Ignore(syscall.SIGHUP, syscall.SIGPIPE)

	go eng.Run()
	go func() {
		if err := eng.Serve(ln); err != nil {
			log.Error().Err(err).Msg("accept loop exited")
		}
	}()

	<-sig
	log.Info().Msg("shutting down")
	ln.Close()
	eng.Stop()
	return nil
}

func toDBSaveParams(in []config.SaveParam) []database.SaveParam {
	out := make([]database.SaveParam, len(in))
	for i, p := range in {
		out[i] = database.SaveParam{Seconds: p.Seconds, Changes: p.Changes}
	}
	return out
}

// runReplica dials a master and bootstraps against it, applying the
// inbound stream through the engine's own dispatch path (the
// replica side). Runs for the life of the process, reconnecting with a
// short backoff whenever the link drops.
func runReplica(eng *engine.Engine, host, port, masterAuth, snapshotPath string, log zerolog.Logger) {
	addr := net.JoinHostPort(host, port)
	for {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			log.Error().Err(err).Str("master", addr).Msg("replica dial failed")
			time.Sleep(time.Second)
			continue
		}
		log.Info().Str("master", addr).Msg("replica bootstrap starting")
		err = replication.Bootstrap(conn, masterAuth, snapshotPath, func(path string) error {
			return eng.LoadRDB(path)
		}, eng.ApplyReplicated)
		conn.Close()
		if err != nil {
			log.Error().Err(err).Msg("replica link lost, retrying")
		}
		time.Sleep(time.Second)
	}
}
