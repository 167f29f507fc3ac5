// Package main is the healthrag CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/healthrag/internal/cli"
	"github.com/hyperjump/healthrag/internal/config"
	"github.com/hyperjump/healthrag/internal/corpus"
	"github.com/hyperjump/healthrag/internal/embedding"
	"github.com/hyperjump/healthrag/internal/extract"
	"github.com/hyperjump/healthrag/internal/indexer"
	"github.com/hyperjump/healthrag/internal/keyword"
	"github.com/hyperjump/healthrag/internal/models"
	"github.com/hyperjump/healthrag/internal/server"
	"github.com/hyperjump/healthrag/internal/vector"
	"github.com/hyperjump/healthrag/internal/watcher"
	"github.com/hyperjump/healthrag/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/healthrag/config.yaml"
	defaultServerURL  = "http://localhost:8000"
)

// loadConfig loads .env and the config at path. When path is the default, a
// config.yaml in the current directory takes precedence; when neither exists
// the built-in defaults plus environment are used. Returns the config and the
// path actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, "", err
	}
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(local); err == nil {
				path = local
			}
		}
		if _, err := os.Stat(path); err != nil {
			path = ""
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func newLogger(cfg *config.Config, debug bool) (*zap.Logger, utils.LogPolicy) {
	policy := utils.LogPolicy{
		Level:         cfg.Log.Level,
		Debug:         cfg.Debug || debug,
		QuietBackends: cfg.Log.QuietBackends,
	}
	if debug {
		policy.Level = "debug"
	}
	logger, err := utils.NewLoggerWithPolicy(policy)
	if err != nil {
		fatalf("Failed to create logger: %v", err)
	}
	return logger, policy
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "serve", "server":
		runServe()
	case "build":
		runBuild()
	case "ask":
		runAsk()
	case "corpus":
		runCorpus()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("healthrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, policy := newLogger(cfg, *debug)
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", resolved))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, cfg, policy, logger)
	if err != nil {
		logger.Fatal("Refusing to start", zap.String("reason", describeStartupError(err)))
	}
	defer components.Close()

	srv := server.NewServer(components.Pipeline, components.Index, &cfg.Server, logger.Named("http"),
		server.WithGenerationStatus(components.Guard))
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", zap.Error(err))
		}
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(shutdownCtx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "rebuild whenever a corpus file changes")
	out := fs.String("out", "", "index directory (default: index.dir from config)")
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		fatalf("Failed to load config: %v", err)
	}
	logger, policy := newLogger(cfg, *debug)
	defer logger.Sync()

	files := fs.Args()
	if len(files) == 0 {
		files = cfg.Corpus.Files
	}
	if len(files) == 0 {
		fatalf("No corpus files: pass them as arguments or set corpus.files in the config")
	}
	if cfg.Index.Type == string(vector.IndexTypeFAISS) && !vector.IsFAISSAvailable() {
		fatalf("index.type is faiss but this binary was built without FAISS support (rebuild with -tags=faiss or use index.type: memory)")
	}
	dir := cfg.Index.Dir
	if *out != "" {
		dir = *out
	}

	embedder, err := embedding.New(cfg.Embedding, policy.Component(logger, "embedding"))
	if err != nil {
		logger.Fatal("Failed to load embedding model", zap.Error(err))
	}
	defer embedder.Close()
	chunker, err := indexer.NewChunker(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		logger.Fatal("Invalid chunking settings", zap.Error(err))
	}
	builder := indexer.NewBuilder(embedder, chunker,
		indexer.WithLogger(logger.Named("build")),
		indexer.WithIndexType(cfg.Index.Type),
		indexer.WithBatchSize(cfg.Index.BatchSize),
		indexer.WithEmbeddingModel(cfg.Embedding.Model),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	build := func() error {
		docs, err := corpus.LoadFiles(files...)
		if err != nil {
			return err
		}
		m, err := builder.Build(ctx, docs, dir)
		if err != nil {
			return err
		}
		fmt.Printf("Built index %s: %d documents, %d chunks -> %s\n", m.BuildID, m.DocumentCount, m.ChunkCount, dir)
		return nil
	}

	if err := build(); err != nil {
		if !*watch {
			logger.Fatal("Build failed", zap.Error(err))
		}
		logger.Error("Build failed", zap.Error(err))
	}
	if !*watch {
		return
	}

	w, err := watcher.NewWatcher(files, func() {
		logger.Info("corpus changed, rebuilding")
		if err := build(); err != nil {
			logger.Error("Rebuild failed", zap.Error(err))
		}
	}, watcher.WithLogger(logger.Named("watch")))
	if err != nil {
		logger.Fatal("Failed to create watcher", zap.Error(err))
	}
	if err := w.Start(ctx); err != nil {
		logger.Fatal("Failed to start watcher", zap.Error(err))
	}
	logger.Info("watching corpus files", zap.Strings("files", files))
	<-ctx.Done()
	w.Stop()
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "ask a running server at this URL instead of loading the model in-process")
	format := fs.String("format", "text", "output format: text or json")
	debug := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: healthrag ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(flagsFirst(os.Args[2:]))

	question := joinArgs(fs.Args())
	if question == "" {
		fs.Usage()
		os.Exit(1)
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fatalf("%v", err)
	}

	var res *models.QueryResult
	if *serverURL != "" {
		res, err = askViaHTTP(*serverURL, question)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	} else {
		cfg, _, err := loadConfig(*configPath)
		if err != nil {
			fatalf("Failed to load config: %v", err)
		}
		logger, policy := newLogger(cfg, *debug)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, policy, logger)
		if err != nil {
			fatalf("Failed to load: %s", describeStartupError(err))
		}
		defer components.Close()
		res, err = components.Pipeline.Answer(ctx, question)
		if err != nil {
			fatalf("Ask failed: %v", err)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, res, outFormat); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func askViaHTTP(serverURL, question string) (*models.QueryResult, error) {
	body, err := json.Marshal(models.QueryRequest{Question: question})
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var res models.QueryResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &res, nil
}

func httpError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
}

func runCorpus() {
	if len(os.Args) < 3 {
		printUsage()
		os.Exit(1)
	}
	args := os.Args[3:]
	switch os.Args[2] {
	case "import":
		runCorpusImport(args)
	case "merge":
		runCorpusMerge(args)
	case "search":
		runCorpusSearch(args)
	default:
		fmt.Printf("Unknown corpus command: %s\n", os.Args[2])
		printUsage()
		os.Exit(1)
	}
}

func runCorpusImport(args []string) {
	fs := flag.NewFlagSet("corpus import", flag.ExitOnError)
	source := fs.String("source", "", "source name stamped on every document (e.g. WHO)")
	category := fs.String("category", "", "category stamped on every document")
	out := fs.String("o", "", "output JSON file (default: stdout)")
	_ = fs.Parse(flagsFirst(args))
	if fs.NArg() == 0 {
		fatalf("Usage: healthrag corpus import [--source S] [--category C] [-o out.json] <file|dir>...")
	}

	logger, _ := newLogger(&config.Config{}, false)
	defer logger.Sync()
	imp := corpus.NewImporter(extract.NewExtractor(), *source, *category, corpus.WithImportLogger(logger))
	docs, err := imp.Import(fs.Args()...)
	if err != nil {
		fatalf("Import failed: %v", err)
	}
	if *out == "" {
		if err := corpus.Write(os.Stdout, docs); err != nil {
			fatalf("Write failed: %v", err)
		}
		return
	}
	if err := corpus.WriteFile(*out, docs); err != nil {
		fatalf("Write failed: %v", err)
	}
	fmt.Fprintf(os.Stderr, "Imported %d documents -> %s\n", len(docs), *out)
}

func runCorpusMerge(args []string) {
	fs := flag.NewFlagSet("corpus merge", flag.ExitOnError)
	out := fs.String("o", "", "output JSON file")
	_ = fs.Parse(flagsFirst(args))
	if *out == "" || fs.NArg() == 0 {
		fatalf("Usage: healthrag corpus merge -o out.json <in.json>...")
	}
	n, err := corpus.Merge(*out, fs.Args()...)
	if err != nil {
		fatalf("Merge failed: %v", err)
	}
	fmt.Printf("Merged %d documents -> %s\n", n, *out)
}

func runCorpusSearch(args []string) {
	fs := flag.NewFlagSet("corpus search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "search a running server at this URL instead of opening the index")
	limit := fs.Int("limit", 10, "number of results")
	category := fs.String("category", "", "only documents with this category")
	fuzzy := fs.Bool("fuzzy", false, "tolerate one typo per term")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(flagsFirst(args))

	query := joinArgs(fs.Args())
	if query == "" {
		fatalf("Usage: healthrag corpus search [flags] <query>")
	}
	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fatalf("%v", err)
	}
	opts := &keyword.SearchOptions{Category: *category, Fuzzy: *fuzzy}

	var docs []*models.ScoredDocument
	if *serverURL != "" {
		docs, err = searchViaHTTP(*serverURL, query, *limit, opts)
	} else {
		var ix *indexer.Index
		ix, err = openBrowseIndex(*configPath)
		if err == nil {
			defer ix.Close()
			docs, err = ix.SearchDocuments(context.Background(), query, *limit, opts)
		}
	}
	if err != nil {
		fatalf("Search failed: %v", err)
	}
	if err := cli.WriteDocuments(os.Stdout, query, docs, outFormat); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func searchViaHTTP(serverURL, query string, limit int, opts *keyword.SearchOptions) ([]*models.ScoredDocument, error) {
	v := url.Values{}
	v.Set("q", query)
	v.Set("limit", fmt.Sprint(limit))
	if opts.Category != "" {
		v.Set("category", opts.Category)
	}
	if opts.Fuzzy {
		v.Set("fuzzy", "true")
	}
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/documents/search?" + v.Encode())
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var body struct {
		Results []*models.ScoredDocument `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return body.Results, nil
}

// openBrowseIndex opens the configured index without an embedding model, for
// keyword browsing and stats.
func openBrowseIndex(configPath string) (*indexer.Index, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return indexer.Open(cfg.Index.Dir, nil)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", "", "query a running server at this URL instead of opening the index")
	format := fs.String("format", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	outFormat, err := cli.ParseOutputFormat(*format)
	if err != nil {
		fatalf("%v", err)
	}
	var stats *indexer.Stats
	if *serverURL != "" {
		stats, err = statusViaHTTP(*serverURL)
	} else {
		var ix *indexer.Index
		ix, err = openBrowseIndex(*configPath)
		if err == nil {
			defer ix.Close()
			stats, err = ix.Stats(context.Background())
		}
	}
	if err != nil {
		fatalf("Status failed: %v", err)
	}
	if err := cli.WriteStats(os.Stdout, stats, outFormat); err != nil {
		fatalf("Output failed: %v", err)
	}
}

func statusViaHTTP(serverURL string) (*indexer.Stats, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var stats indexer.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if stats.Manifest == nil {
		return nil, fmt.Errorf("server status has no index manifest")
	}
	return &stats, nil
}

// joinArgs joins all positional args with spaces so multi-word questions work
// the same with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// flagsFirst moves any flags (and their values) that appear after the
// positional arguments to the front so that flag.Parse sees them. Go's flag
// package stops at the first non-flag argument.
func flagsFirst(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage() {
	fmt.Println(`healthrag - Health question answering over a curated medical corpus

Usage:
  healthrag serve [flags]                     Start the HTTP API (POST /query)
  healthrag build [flags] [corpus.json...]    Build the index from corpus files
  healthrag ask [flags] <question>            Answer one question
  healthrag corpus import [flags] <path>...   Convert PDF/DOCX/XLSX/TXT/MD files to corpus JSON
  healthrag corpus merge -o out.json <in>...  Merge corpus JSON files
  healthrag corpus search [flags] <query>     Keyword search over corpus documents
  healthrag status [flags]                    Show index status
  healthrag version                           Show version
  healthrag help                              Show this help

Common Flags:
  --config string    Config file path (default: ./config.yaml, then /usr/local/etc/healthrag/config.yaml)
  --debug            Enable debug logging

Build Flags:
  --watch            Rebuild whenever a corpus file changes
  --out string       Index directory (default: index.dir)

Ask / Search / Status Flags:
  --server string    Use a running server (e.g. http://localhost:8000) instead of loading locally
  --format string    Output format: text or json (default: text)

Environment:
  HEALTHRAG_MODEL, HEALTHRAG_EMBEDDING_MODEL, HEALTHRAG_CHUNK_SIZE, HEALTHRAG_CHUNK_OVERLAP,
  HEALTHRAG_RETRIEVAL_K, HEALTHRAG_MAX_TOKENS, HEALTHRAG_TEMPERATURE, HEALTHRAG_CONTEXT_WINDOW,
  HEALTHRAG_STOP_SEQUENCES, HEALTHRAG_INDEX_DIR, HEALTHRAG_OLLAMA_URL, HEALTHRAG_REDIS_URL,
  HEALTHRAG_LOG_LEVEL (also read from .env)

Examples:
  healthrag corpus merge -o data/combined.json data/who.json data/mayo.json
  healthrag build data/combined.json
  healthrag serve
  healthrag ask What are the symptoms of diabetes?
  healthrag ask --server http://localhost:8000 --format json "How is malaria transmitted?"
  healthrag corpus search --category "Fact sheet" malaria`)
}
