package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"
	"github.com/zombor/receipt-categorizer/internal/extraction"
	"github.com/zombor/receipt-categorizer/internal/metrics"
	"github.com/zombor/receipt-categorizer/internal/receipt"
	"github.com/zombor/receipt-categorizer/internal/registry"
	"github.com/zombor/receipt-categorizer/internal/scanning"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A missing .env file is fine; real environment variables still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("receipt-categorizer")
	var (
		port           = fs.IntLong("port", 8000, "HTTP server port")
		storagePath    = fs.StringLong("storage", "", "Directory for uploads while they are processed (default: system temp dir)")
		scannerType    = fs.StringLong("scanner", "tesseract", "OCR engine: 'tesseract', 'gemini' or 'ollama'")
		ocrLanguages   = fs.StringLong("ocr-languages", "kor,eng", "Comma separated Tesseract languages")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "qwen2-vl", "Ollama vision model name")
		browser        = fs.StringLong("browser", "chrome", "Registry page loader: 'chrome' (headless Chrome) or 'http'")
		sessions       = fs.IntLong("sessions", 2, "Number of registry sessions, i.e. concurrent enrichments")
		registryURL    = fs.StringLong("registry-url", registry.DefaultBaseURL, "Registry page prefix; the business number is appended")
		pageTimeout    = fs.DurationLong("page-timeout", 15*time.Second, "Timeout for loading one registry page")
		enrichTimeout  = fs.DurationLong("enrich-timeout", receipt.DefaultEnrichTimeout, "Timeout for all registry lookups of one request")
		requestGap     = fs.DurationLong("request-interval", 500*time.Millisecond, "Minimum gap between registry page loads (0 disables)")
		breakerFails   = fs.IntLong("breaker-failures", 5, "Consecutive failed page loads that pause registry lookups")
		breakerTimeout = fs.DurationLong("breaker-timeout", 30*time.Second, "How long registry lookups stay paused")
		shopNamePolicy = fs.StringLong("shop-name-policy", string(registry.ShopNamePlaceholder), "Missing shop name handling: 'placeholder' or 'require'")
		cachePath      = fs.StringLong("cache", "", "BoltDB file caching registry records (disabled when empty)")
		cacheTTL       = fs.DurationLong("cache-ttl", 7*24*time.Hour, "How long cached registry records stay fresh (0 keeps them forever)")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		_              = fs.StringLong("config", "", "Config file with one 'flag value' per line (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_CATEGORIZER"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	policy, err := registry.ParseShopNamePolicy(*shopNamePolicy)
	if err != nil {
		slog.Error("Invalid shop name policy", "error", err)
		os.Exit(1)
	}

	// Initialize scanner based on type
	var scanner scanning.Scanner
	switch *scannerType {
	case "tesseract":
		slog.Info("Initializing Tesseract scanner...", "languages", *ocrLanguages)
		scanner, err = scanning.NewTesseract(strings.Split(*ocrLanguages, ","))
		if err != nil {
			slog.Error("Failed to initialize Tesseract", "error", err)
			os.Exit(1)
		}
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini scanner...", "model", *geminiModel)
		scanner, err = scanning.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *ollamaURL, "model", *ollamaModel)
		scanner, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid scanner type", "type", *scannerType, "valid", "tesseract, gemini or ollama")
		os.Exit(1)
	}
	defer scanner.Close()

	// Initialize registry sessions
	var openSession func() (registry.Session, error)
	switch *browser {
	case "chrome":
		openSession = func() (registry.Session, error) {
			return registry.NewChromeSession(*pageTimeout)
		}
	case "http":
		openSession = func() (registry.Session, error) {
			return registry.NewHTTPSession(*pageTimeout), nil
		}
	default:
		slog.Error("Invalid browser type", "type", *browser, "valid", "chrome or http")
		os.Exit(1)
	}

	slog.Info("Opening registry sessions...", "browser", *browser, "sessions", *sessions)
	pool, err := registry.NewSessionPool(*sessions, openSession)
	if err != nil {
		slog.Error("Failed to open registry sessions", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	m := metrics.New()
	enricherOpts := []registry.Option{registry.WithObserver(m)}

	if *cachePath != "" {
		slog.Info("Initializing registry cache...", "path", *cachePath, "ttl", *cacheTTL)
		cache, err := registry.NewBoltCache(*cachePath, *cacheTTL)
		if err != nil {
			slog.Error("Failed to initialize registry cache", "error", err)
			os.Exit(1)
		}
		defer cache.Close()
		enricherOpts = append(enricherOpts, registry.WithCache(cache))
	}

	enricher := registry.NewEnricher(pool, registry.Config{
		BaseURL:            *registryURL,
		ShopNamePolicy:     policy,
		RequestInterval:    *requestGap,
		BreakerFailures:    uint32(max(*breakerFails, 1)),
		BreakerOpenTimeout: *breakerTimeout,
	}, enricherOpts...)

	// Initialize storage
	slog.Info("Initializing storage...")
	store, err := receipt.NewLocalStorage(*storagePath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Initialize service
	receiptService := receipt.NewServiceWithDeps(
		extraction.NewExtractor(scanner),
		enricher,
		store,
		receipt.NewUUIDGenerator(),
		m,
		*enrichTimeout,
	)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(receiptService, basicAuth, m.Handler())

	addr := fmt.Sprintf(":%d", *port)
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in goroutine
	go func() {
		slog.Info("Starting server", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), *enrichTimeout+5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Failed to shut down server", "error", err)
	}
}
