// Command zplc is the host-facing entry point for the zplc-core execution
// engine: it loads an artifact, wires configuration into a service.Session,
// and runs it either as a one-shot scheduler, an interactive debugger, or
// an HTTP/WebSocket control-surface server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zplc/zplc-core/api"
	"github.com/zplc/zplc-core/config"
	"github.com/zplc/zplc-core/debugger"
	"github.com/zplc/zplc-core/hal"
	"github.com/zplc/zplc-core/hal/osadapter"
	"github.com/zplc/zplc-core/memory"
	"github.com/zplc/zplc-core/scheduler"
	"github.com/zplc/zplc-core/service"
)

// Version information; can be overridden at build time with:
// go build -ldflags "-X main.Version=v1.2.3"
var (
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	var (
		showVersion  = flag.Bool("version", false, "Show version information")
		showHelp     = flag.Bool("help", false, "Show help information")
		configPath   = flag.String("config", "", "Path to config.toml (default: platform config dir)")
		allowRawLoad = flag.Bool("allow-raw-load", false, "Allow unvalidated raw bytecode loads over the load_raw API/flag")
		rawLoad      = flag.Bool("raw", false, "Treat the program argument as raw bytecode instead of a validated artifact")
		debugMode    = flag.Bool("debug", false, "Start in CLI debugger mode instead of free-running")
		tuiMode      = flag.Bool("tui", false, "Start in TUI debugger mode instead of free-running")
		apiServer    = flag.Bool("api-server", false, "Start the HTTP/WebSocket control-surface API server")
		apiAddr      = flag.String("api-addr", "", "API server listen address (default: from config, 127.0.0.1:8080)")
	)

	flag.Parse()

	if *showVersion {
		fmt.Printf("zplc %s (%s)\n", Version, Commit)
		os.Exit(0)
	}
	if *showHelp {
		printHelp()
		os.Exit(0)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	h := osadapter.New(cfg.Persistence.Dir, logger)

	ioMap, err := cfg.SchedulerIOMap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	sess, err := service.New(service.Config{
		HAL:    h,
		Memory: memory.Config{WorkSize: cfg.Memory.WorkSize, RetainSize: cfg.Memory.RetainSize},
		Scheduler: scheduler.Config{
			WatchdogMultiplier:         cfg.Scheduler.WatchdogMultiplier,
			InstructionsPerMicrosecond: cfg.Scheduler.InstructionsPerMicrosecond,
			MutexTimeout:               time.Duration(cfg.Scheduler.MutexTimeoutMs) * time.Millisecond,
			IOMap:                      ioMap,
		},
		AllowRawLoad:     *allowRawLoad || cfg.Loader.AllowUnsafeRaw,
		DebugHistorySize: cfg.Debug.HistorySize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error creating session: %v\n", err)
		os.Exit(1)
	}

	if res := sess.Init(); res != hal.OK {
		fmt.Fprintf(os.Stderr, "warning: retain restore: %v\n", res)
	}

	var shutdownOnce sync.Once
	shutdown := func() {
		shutdownOnce.Do(func() {
			if res := sess.Shutdown(); res != hal.OK {
				fmt.Fprintf(os.Stderr, "warning: shutdown: %v\n", res)
			}
		})
	}
	defer shutdown()

	if flag.NArg() > 0 {
		path := flag.Arg(0)
		buf, err := os.ReadFile(path) // #nosec G304 -- user-specified program path
		if err != nil {
			fmt.Fprintf(os.Stderr, "error reading %s: %v\n", path, err)
			os.Exit(1)
		}
		if *rawLoad {
			err = sess.LoadRaw(buf)
		} else {
			err = sess.Load(buf)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "error loading program: %v\n", err)
			os.Exit(1)
		}
	}

	if *apiServer {
		runAPIServer(sess, addrOrDefault(*apiAddr, cfg.API.ListenAddr), cfg.API.EnableCORS, shutdown)
		return
	}

	if *debugMode || *tuiMode {
		if flag.NArg() == 0 {
			fmt.Fprintln(os.Stderr, "debugger mode requires a program argument")
			os.Exit(1)
		}
		dbg := sess.Debugger()
		var runErr error
		if *tuiMode {
			runErr = debugger.RunTUI(dbg)
		} else {
			fmt.Println("zplc debugger - type 'help' for commands")
			runErr = debugger.RunCLI(dbg)
		}
		if runErr != nil {
			fmt.Fprintf(os.Stderr, "debugger error: %v\n", runErr)
			os.Exit(1)
		}
		return
	}

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if err := sess.StartScheduler(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error starting scheduler: %v\n", err)
		os.Exit(1)
	}
	<-ctx.Done()
	if err := sess.StopScheduler(); err != nil {
		fmt.Fprintf(os.Stderr, "error stopping scheduler: %v\n", err)
	}
}

func runAPIServer(sess *service.Session, addr string, enableCORS bool, shutdown func()) {
	server := api.NewServer(sess, addr, enableCORS)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nshutting down api server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "error during shutdown: %v\n", err)
		}
		shutdown()
		os.Exit(0)
	}()

	fmt.Printf("zplc api server listening on http://%s\n", addr)
	if err := server.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "api server error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFrom(path)
}

func addrOrDefault(flagVal, cfgVal string) string {
	if flagVal != "" {
		return flagVal
	}
	if cfgVal != "" {
		return cfgVal
	}
	return "127.0.0.1:8080"
}

func printHelp() {
	fmt.Printf(`zplc %s

Usage: zplc [options] <program-file>
       zplc -api-server [-api-addr host:port]

Options:
  -help               Show this help message
  -version            Show version information
  -config PATH        Config file path (default: platform config dir)
  -allow-raw-load     Allow unvalidated raw bytecode loads
  -raw                Treat <program-file> as raw bytecode (requires -allow-raw-load)
  -debug              Start in CLI debugger mode
  -tui                Start in TUI debugger mode
  -api-server         Start the HTTP/WebSocket control-surface API server
  -api-addr ADDR      API server listen address (default: 127.0.0.1:8080)

Examples:
  zplc program.zpb
  zplc -debug program.zpb
  zplc -tui program.zpb
  zplc -api-server -api-addr :8080
`, Version)
}
