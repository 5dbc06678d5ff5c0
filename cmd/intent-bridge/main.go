// ABOUTME: Entry point for the intent-bridge server
// ABOUTME: Bridges agent questions to humans over web UI and chat

package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/joho/godotenv"

	"github.com/2389/intent-bridge/internal/auth"
	"github.com/2389/intent-bridge/internal/broker"
	"github.com/2389/intent-bridge/internal/config"
	"github.com/2389/intent-bridge/internal/directory"
	mcpserver "github.com/2389/intent-bridge/internal/mcp"
	"github.com/2389/intent-bridge/internal/relay"
	"github.com/2389/intent-bridge/internal/store"
	"github.com/2389/intent-bridge/internal/web"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
 _       _             _        _          _     _
(_)_ __ | |_ ___ _ __ | |_     | |__  _ __(_) __| | __ _  ___
| | '_ \| __/ _ \ '_ \| __|____| '_ \| '__| |/ _' |/ _' |/ _ \
| | | | | ||  __/ | | | ||_____| |_) | |  | | (_| | (_| |  __/
|_|_| |_|\__\___|_| |_|\__|    |_.__/|_|  |_|\__,_|\__, |\___|
                                                   |___/
`

// getConfigPath returns the path to the bridge config file.
// Priority: INTENT_BRIDGE_CONFIG env var > XDG_CONFIG_HOME/intent-bridge/bridge.yaml > ~/.config/intent-bridge/bridge.yaml
func getConfigPath() string {
	if envPath := os.Getenv("INTENT_BRIDGE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "bridge.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "intent-bridge", "bridge.yaml")
}

// getDataPath returns the path to the intent-bridge data directory.
// Priority: XDG_DATA_HOME/intent-bridge > ~/.local/share/intent-bridge
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "intent-bridge")
}

func main() {
	// A local .env is convenient for relay tokens during development.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Println("Usage: intent-bridge <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                        Start the bridge server")
		fmt.Println("  mcp                          Serve the MCP tool over stdio")
		fmt.Println("  init                         Create a new config file interactively")
		fmt.Println("  bootstrap --password PASS    Create config and set the admin password")
		fmt.Println("  health                       Check bridge health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "mcp":
		err = runMCP(ctx)
	case "init":
		err = runInit()
	case "bootstrap":
		err = runBootstrap(ctx)
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:  %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:    %s\n", cfg.Server.HTTPAddr)
	if cfg.Relay.Enabled {
		green.Print("    ▶ ")
		fmt.Print("Relay:   ")
		cyan.Println(cfg.Relay.UserID)
	}
	fmt.Println()

	logger.Info("starting intent-bridge",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"relay_enabled", cfg.Relay.Enabled,
	)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	dir := directory.New(s)

	var pusher broker.Relay = relay.NoopRelay{}
	var matrixRelay *relay.MatrixRelay
	if cfg.Relay.Enabled {
		dispatcher := relay.NewDispatcher(s, s)
		matrixRelay, err = relay.NewMatrixRelay(relay.Config{
			Homeserver:  cfg.Relay.Homeserver,
			UserID:      cfg.Relay.UserID,
			AccessToken: cfg.Relay.AccessToken,
		}, dispatcher, s)
		if err != nil {
			return fmt.Errorf("creating matrix relay: %w", err)
		}
		pusher = matrixRelay
	}

	b := broker.New(s, dir, pusher, broker.Config{
		Timeout:      cfg.Broker.Timeout,
		PollInterval: cfg.Broker.PollInterval,
		HistoryDays:  cfg.Broker.HistoryDays,
	})

	var verifier *auth.JWTVerifier
	if cfg.Auth.JWTSecret != "" {
		verifier, err = auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("creating JWT verifier: %w", err)
		}
	} else {
		logger.Warn("auth.jwt_secret not set, admin API disabled")
	}

	mcpSrv := mcpserver.NewServer(b)
	handler := web.NewHandler(s, dir, s, verifier, mcpSrv.HTTPHandler())

	httpServer := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: handler.Router(),
		// No write timeout: tool calls over /mcp block for the full broker
		// wait ceiling.
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 2)

	if matrixRelay != nil {
		go func() {
			if err := matrixRelay.Run(ctx); err != nil {
				errCh <- fmt.Errorf("matrix relay: %w", err)
			}
		}()
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

// runMCP serves the collect_user_intent tool over stdio for agents that
// spawn the binary directly. The web UI must be running separately via
// serve; both share the same database.
func runMCP(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Logs go to stderr in stdio mode; stdout carries the protocol.
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	b := broker.New(s, directory.New(s), relay.NoopRelay{}, broker.Config{
		Timeout:      cfg.Broker.Timeout,
		PollInterval: cfg.Broker.PollInterval,
		HistoryDays:  cfg.Broker.HistoryDays,
	})

	if cfg.Agent.APIKey != "" && os.Getenv("INTENT_API_KEY") == "" {
		os.Setenv("INTENT_API_KEY", cfg.Agent.APIKey)
	}

	return mcpserver.NewServer(b).ServeStdio()
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

// runBootstrap performs first-time setup:
// 1. Creates a config file with a random JWT secret (if not exists)
// 2. Creates the database and stores the admin password hash
// 3. Optionally registers a first user and prints their API key
//
// One-command setup: intent-bridge bootstrap --password "secret" [--user "@you:example.org"]
func runBootstrap(ctx context.Context) error {
	var password, userID string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--password" || arg == "-p":
			if i+1 >= len(args) {
				return fmt.Errorf("--password requires a value")
			}
			password = args[i+1]
			i++
		case strings.HasPrefix(arg, "--password="):
			password = strings.TrimPrefix(arg, "--password=")
		case arg == "--user" || arg == "-u":
			if i+1 >= len(args) {
				return fmt.Errorf("--user requires a value")
			}
			userID = args[i+1]
			i++
		case strings.HasPrefix(arg, "--user="):
			userID = strings.TrimPrefix(arg, "--user=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if password == "" {
		return fmt.Errorf("--password flag is required")
	}

	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "bridge.db")

	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)
	yellow := color.New(color.FgYellow)

	var cfg *config.Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		secretBytes := make([]byte, 32)
		if _, err := rand.Read(secretBytes); err != nil {
			return fmt.Errorf("generating JWT secret: %w", err)
		}
		jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

		if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}
		if err := os.MkdirAll(dataPath, 0755); err != nil {
			return fmt.Errorf("creating data directory: %w", err)
		}

		configContent := fmt.Sprintf(`# intent-bridge configuration
# Generated by intent-bridge bootstrap

server:
  http_addr: "localhost:8080"

database:
  path: "%s"

auth:
  jwt_secret: "%s"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

		if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}

		green.Printf("  ✓ Created config: %s\n", configPath)

		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
	} else {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		cyan.Printf("  Using existing config: %s\n", configPath)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	green.Printf("  ✓ Database: %s\n", cfg.Database.Path)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.SetSetting(ctx, web.AdminPasswordKey, hash); err != nil {
		return fmt.Errorf("storing admin password: %w", err)
	}
	green.Println("  ✓ Admin password set")

	var apiKey string
	if userID != "" {
		user, err := directory.New(s).Register(ctx, userID, "")
		if err != nil {
			return fmt.Errorf("registering user: %w", err)
		}
		apiKey = user.APIKey
		green.Printf("  ✓ Registered user: %s\n", userID)
	}

	fmt.Println()
	green.Println("  Bootstrap complete!")
	fmt.Println()
	if apiKey != "" {
		cyan.Println("  First User")
		cyan.Println("  ----------")
		fmt.Printf("  ID:      %s\n", userID)
		fmt.Printf("  API key: %s\n", apiKey)
		fmt.Println()
	}

	yellow.Println("  Ready to go:")
	fmt.Println("    intent-bridge serve    # start the bridge")
	fmt.Println("    intent-bridge mcp      # expose the tool to a local agent")
	fmt.Println()

	return nil
}

func runInit() error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Println("intent-bridge configuration setup")
	fmt.Println("=================================")
	fmt.Println()

	defaultConfigPath := getConfigPath()
	defaultDataPath := getDataPath()
	defaultDbPath := filepath.Join(defaultDataPath, "bridge.db")

	outputFile := prompt(reader, "Config file path", defaultConfigPath)

	if _, err := os.Stat(outputFile); err == nil {
		overwrite := prompt(reader, "File exists. Overwrite?", "no")
		if strings.ToLower(overwrite) != "yes" && strings.ToLower(overwrite) != "y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	fmt.Println("\n--- Server Configuration ---")
	httpAddr := prompt(reader, "HTTP address", "localhost:8080")

	fmt.Println("\n--- Database Configuration ---")
	dbPath := prompt(reader, "SQLite database path", defaultDbPath)

	fmt.Println("\n--- Broker Configuration ---")
	timeout := prompt(reader, "Wait ceiling per question", "50m")
	pollInterval := prompt(reader, "Poll interval", "1s")
	historyDays := prompt(reader, "History retention days (0 disables cleanup)", "3")

	fmt.Println("\n--- Chat Relay Configuration ---")
	enableRelay := prompt(reader, "Enable Matrix relay?", "no")
	relayEnabled := strings.ToLower(enableRelay) == "yes" || strings.ToLower(enableRelay) == "y"

	var homeserver, relayUser string
	if relayEnabled {
		homeserver = prompt(reader, "Homeserver URL", "https://matrix.org")
		relayUser = prompt(reader, "Bot user ID", "@intent-bridge:matrix.org")
	}

	fmt.Println("\n--- Logging Configuration ---")
	logLevel := prompt(reader, "Log level (debug/info/warn/error)", "info")
	logFormat := prompt(reader, "Log format (text/json)", "text")

	var cfg strings.Builder
	cfg.WriteString("# intent-bridge configuration\n")
	cfg.WriteString("# Generated by intent-bridge init\n\n")

	cfg.WriteString("server:\n")
	cfg.WriteString(fmt.Sprintf("  http_addr: \"%s\"\n", httpAddr))
	cfg.WriteString("\n")

	cfg.WriteString("database:\n")
	cfg.WriteString(fmt.Sprintf("  path: \"%s\"\n", dbPath))
	cfg.WriteString("\n")

	cfg.WriteString("broker:\n")
	cfg.WriteString(fmt.Sprintf("  timeout: \"%s\"\n", timeout))
	cfg.WriteString(fmt.Sprintf("  poll_interval: \"%s\"\n", pollInterval))
	cfg.WriteString(fmt.Sprintf("  history_days: %s\n", historyDays))
	cfg.WriteString("\n")

	cfg.WriteString("relay:\n")
	cfg.WriteString(fmt.Sprintf("  enabled: %t\n", relayEnabled))
	if relayEnabled {
		cfg.WriteString(fmt.Sprintf("  homeserver: \"%s\"\n", homeserver))
		cfg.WriteString(fmt.Sprintf("  user_id: \"%s\"\n", relayUser))
		cfg.WriteString("  access_token: \"${MATRIX_ACCESS_TOKEN}\"\n")
	}
	cfg.WriteString("\n")

	cfg.WriteString("logging:\n")
	cfg.WriteString(fmt.Sprintf("  level: \"%s\"\n", logLevel))
	cfg.WriteString(fmt.Sprintf("  format: \"%s\"\n", logFormat))

	if err := os.MkdirAll(filepath.Dir(outputFile), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if err := os.WriteFile(outputFile, []byte(cfg.String()), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	dataDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	fmt.Printf("\nConfig written to %s\n", outputFile)
	fmt.Printf("Data directory: %s\n", dataDir)
	fmt.Println("\nTo start the server:")
	fmt.Printf("  intent-bridge serve\n")

	return nil
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		// On EOF or error, return default
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
