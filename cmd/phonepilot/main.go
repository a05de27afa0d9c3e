// Package main is the entry point for the phonepilot CLI.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/openclaw/phonepilot/internal/action"
	"github.com/openclaw/phonepilot/internal/agent"
	"github.com/openclaw/phonepilot/internal/config"
	"github.com/openclaw/phonepilot/internal/credentials"
	"github.com/openclaw/phonepilot/internal/device"
	"github.com/openclaw/phonepilot/internal/logging"
	"github.com/openclaw/phonepilot/internal/session"
	"github.com/openclaw/phonepilot/internal/vlm"
)

const version = "0.1.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		runGoal(args)
	case "device":
		deviceStatus(args)
	case "apps":
		listApps(args)
	case "version":
		fmt.Printf("phonepilot version %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

// loadEnv pulls the model key from credentials.toml and .env without
// overriding anything already exported.
func loadEnv(cfg *config.Config) {
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		creds.Apply(cfg.Model.APIKeyEnv)
	}
	_ = godotenv.Load()
}

func loadConfig(path string) *config.Config {
	if path == "" {
		if cfg, err := config.LoadDefault(); err == nil {
			return cfg
		}
		return config.Default()
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func runGoal(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to phonepilot.toml")
	deviceID := fs.String("device", "", "adb device serial")
	maxSteps := fs.Int("max-steps", 0, "override the step budget")
	yes := fs.Bool("yes", false, "approve sensitive actions without asking")
	scriptPath := fs.String("script", "", "dry run: read model replies from a file instead of the endpoint")
	debug := fs.Bool("debug", false, "enable debug logging")
	jsonOut := fs.Bool("json", false, "print the run result as JSON")
	fs.Parse(args)

	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: phonepilot run [flags] \"<goal>\"")
		os.Exit(1)
	}
	goal := strings.Join(fs.Args(), " ")

	cfg := loadConfig(*configPath)
	loadEnv(cfg)
	if *deviceID != "" {
		cfg.Device.ID = *deviceID
	}
	if *maxSteps > 0 {
		cfg.Agent.MaxSteps = *maxSteps
	}

	log := logging.New()
	if *debug {
		log.SetLevel(logging.LevelDebug)
	}

	runner, err := device.NewADBRunner(cfg.Device.ADBPath, cfg.Device.ID, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	apps := device.DefaultCatalog()
	if cfg.Device.AppsPath != "" {
		if err := apps.LoadOverrides(cfg.Device.AppsPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}

	var provider vlm.Provider
	if *scriptPath != "" {
		provider, err = scriptedFromFile(*scriptPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	} else {
		provider = vlm.NewClient(cfg.Model, cfg.GetAPIKey(), log).WithApps(apps.Names())
	}

	executor := device.NewExecutor(runner, cfg.Device.Screen, cfg.Device.Retry, apps, log)

	store, closeStore, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeStore()

	opts := []agent.Option{
		agent.WithChecker(device.NewChecker(runner)),
		agent.WithSessions(session.NewManager(store)),
		agent.WithDeviceID(cfg.Device.ID),
	}
	if *yes {
		opts = append(opts, agent.WithConfirmer(func(ctx context.Context, cmd *action.Command) (bool, error) {
			return true, nil
		}))
	} else {
		opts = append(opts, agent.WithConfirmer(terminalConfirmer))
	}

	a, err := agent.New(cfg.Agent, provider, executor, log, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := a.Run(ctx, goal)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		json.NewEncoder(os.Stdout).Encode(result)
	} else {
		printResult(result)
	}
	if result.Status != session.StatusCompleted {
		os.Exit(2)
	}
}

// terminalConfirmer asks the operator on stdin before a sensitive action.
func terminalConfirmer(ctx context.Context, cmd *action.Command) (bool, error) {
	fmt.Printf("\nConfirm %s", cmd.Kind)
	if cmd.Text != "" {
		fmt.Printf(" (text: %q)", cmd.Text)
	}
	if cmd.App != "" {
		fmt.Printf(" (app: %s)", cmd.App)
	}
	fmt.Print("? [y/N] ")

	answer := make(chan string, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, _ := reader.ReadString('\n')
		answer <- strings.TrimSpace(strings.ToLower(line))
	}()

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line := <-answer:
		return line == "y" || line == "yes", nil
	}
}

func scriptedFromFile(path string) (vlm.Provider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script: %w", err)
	}
	var replies []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			replies = append(replies, line)
		}
	}
	if len(replies) == 0 {
		return nil, fmt.Errorf("script %s has no replies", path)
	}
	return vlm.NewScriptedProvider(replies...), nil
}

func openStore(cfg *config.Config) (session.Store, func(), error) {
	switch cfg.Session.Store {
	case "sqlite":
		path := cfg.Session.Path
		if path == "" {
			path = "phonepilot.db"
		}
		store, err := session.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { store.Close() }, nil
	default:
		dir := cfg.Session.Path
		if dir == "" {
			dir = "runs"
		}
		return session.NewFileStore(dir), func() {}, nil
	}
}

func printResult(result *agent.RunResult) {
	fmt.Printf("\nstatus:  %s\n", result.Status)
	if result.Summary != "" {
		fmt.Printf("summary: %s\n", result.Summary)
	}
	fmt.Printf("steps:   %d\n", len(result.Steps))
	fmt.Printf("elapsed: %s\n", result.Duration.Round(10e6))
	for _, issue := range result.Issues {
		fmt.Printf("issue:   %s\n", issue)
	}
	if result.RunID != "" {
		fmt.Printf("run id:  %s\n", result.RunID)
	}
}

func deviceStatus(args []string) {
	fs := flag.NewFlagSet("device", flag.ExitOnError)
	configPath := fs.String("config", "", "path to phonepilot.toml")
	deviceID := fs.String("device", "", "adb device serial")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	if *deviceID != "" {
		cfg.Device.ID = *deviceID
	}

	runner, err := device.NewADBRunner(cfg.Device.ADBPath, cfg.Device.ID, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	state := device.NewChecker(runner).Check(context.Background())
	fmt.Printf("connected:  %v\n", state.Connected)
	fmt.Printf("screen:     %s\n", state.Screen)
	fmt.Printf("lock:       %s\n", state.Lock)
	if state.BatteryLevel >= 0 {
		fmt.Printf("battery:    %d%%\n", state.BatteryLevel)
	}
	if state.ForegroundApp != "" {
		fmt.Printf("foreground: %s\n", state.ForegroundApp)
	}
	if issues := state.Issues(); len(issues) > 0 {
		fmt.Println("issues:")
		for _, issue := range issues {
			fmt.Printf("  - %s\n", issue)
		}
		os.Exit(2)
	}
	fmt.Println("ready for automation")
}

func listApps(args []string) {
	fs := flag.NewFlagSet("apps", flag.ExitOnError)
	configPath := fs.String("config", "", "path to phonepilot.toml")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	apps := device.DefaultCatalog()
	if cfg.Device.AppsPath != "" {
		if err := apps.LoadOverrides(cfg.Device.AppsPath); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
	}
	for _, name := range apps.Names() {
		pkg, _ := apps.Lookup(name)
		fmt.Printf("%-24s %s\n", name, pkg)
	}
}

func printUsage() {
	fmt.Println(`Usage: phonepilot <command> [options]

Commands:
  run [flags] "<goal>"   Drive the device toward a natural-language goal
  device                 Show device readiness diagnostics
  apps                   List launchable apps
  version                Print version
  help                   Show this help

Run flags:
  -config path      Config file (default: phonepilot.toml in cwd)
  -device serial    adb device serial
  -max-steps n      Override the step budget
  -yes              Approve sensitive actions without asking
  -script path      Dry run with replies from a file
  -json             Print the run result as JSON
  -debug            Enable debug logging`)
}
