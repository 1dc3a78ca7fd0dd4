package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/answergrader/internal/grader"
	"github.com/pavelanni/answergrader/internal/handler"
	appI18n "github.com/pavelanni/answergrader/internal/i18n"
	"github.com/pavelanni/answergrader/internal/llm"
	"github.com/pavelanni/answergrader/internal/model"
	"github.com/pavelanni/answergrader/internal/ocr"
	"github.com/pavelanni/answergrader/internal/ocr/tesseract"
	"github.com/pavelanni/answergrader/internal/store"
)

//go:generate templ generate -path ../../internal/handler/views

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "answergrader",
		Short: "Grade student answers against model answers",
	}

	serve := serveCmd()
	root.AddCommand(serve, gradeCmd(), historyCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `answergrader --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

// addGradingFlags registers the flags shared by every command that evaluates answers.
func addGradingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64("default-marks", model.DefaultMaxMarks, "Marks used when a question has no valid max marks")
	f.String("ocr-engine", "tesseract", "OCR engine for image answers (tesseract, vision, none)")
	f.String("ocr-failure-mode", string(model.OCRFailureWarn), "What to do when OCR fails (warn, inline)")
	f.String("tessdata-prefix", "", "Directory containing Tesseract language data")
	f.StringSlice("ocr-languages", []string{"eng"}, "OCR languages (Tesseract codes, repeatable)")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL for the vision engine")
	f.String("llm-key", "ollama", "API key for the vision engine")
	f.String("llm-model", "llama3.2-vision", "Vision model name")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP grading server",
		RunE:  runServe,
	}
	addGradingFlags(cmd)
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.StringP("lang", "l", "en", "UI language (en, ru)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /grader)")
	f.Int64("max-upload-mb", 32, "Maximum request body size in megabytes")
	f.Duration("request-timeout", 2*time.Minute, "Per-request evaluation timeout")
	f.StringSlice("cors-origins", nil, "Allowed CORS origins (empty disables CORS)")
	f.String("db", "", "SQLite database path for evaluation history (empty disables history)")
	f.Int("history-limit", 50, "Number of evaluations returned by /history")
	return cmd
}

func gradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grade FILE",
		Short: "Grade an exam described in a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runGrade,
	}
	addGradingFlags(cmd)
	f := cmd.Flags()
	f.String("db", "", "SQLite database path to record the evaluation (optional)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	return cmd
}

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Export stored evaluations as JSON",
		RunE:  runHistory,
	}
	f := cmd.Flags()
	f.String("db", "answergrader.db", "SQLite database path")
	f.Int("history-limit", 50, "Number of evaluations to export (0 = all)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("ANSWERGRADER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("answergrader")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/answergrader")
	v.AddConfigPath("/etc/answergrader")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// graderConfig reads the grading parameters shared by serve and grade.
func graderConfig(v *viper.Viper) model.GraderConfig {
	mode := strings.ToLower(strings.TrimSpace(v.GetString("ocr-failure-mode")))
	if !model.IsValidOCRFailureMode(mode) {
		slog.Warn("invalid ocr-failure-mode, using warn", "mode", mode)
		mode = string(model.OCRFailureWarn)
	}
	marks := v.GetFloat64("default-marks")
	if marks <= 0 {
		slog.Warn("invalid default-marks, using default", "value", marks)
		marks = model.DefaultMaxMarks
	}
	return model.GraderConfig{
		DefaultMarks:   marks,
		OCRFailureMode: model.OCRFailureMode(mode),
		OCREngine:      strings.ToLower(strings.TrimSpace(v.GetString("ocr-engine"))),
	}
}

// newOCREngine builds the configured recognition engine. A nil engine with a
// nil error means OCR is disabled.
func newOCREngine(ctx context.Context, v *viper.Viper, name string) (ocr.Engine, error) {
	switch name {
	case "tesseract":
		return tesseract.New(v.GetString("tessdata-prefix"), v.GetStringSlice("ocr-languages")), nil
	case "vision":
		c, err := llm.New(
			v.GetString("llm-url"),
			v.GetString("llm-key"),
			v.GetString("llm-model"),
			v.GetStringSlice("ocr-languages"),
		)
		if err != nil {
			return nil, fmt.Errorf("create vision client: %w", err)
		}
		if err := c.Ping(ctx); err != nil {
			return nil, fmt.Errorf("vision endpoint health check: %w", err)
		}
		slog.Info("vision endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		return c, nil
	case "none", "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown ocr-engine %q (want tesseract, vision or none)", name)
	}
}

// newEvaluator wires the OCR engine into a grader configured from v.
func newEvaluator(ctx context.Context, v *viper.Viper) (*grader.Evaluator, model.GraderConfig, error) {
	cfg := graderConfig(v)
	engine, err := newOCREngine(ctx, v, cfg.OCREngine)
	if err != nil {
		return nil, cfg, err
	}
	adapter := ocr.NewAdapter(engine)
	cfg.OCREngine = adapter.EngineName()
	return grader.New(adapter, cfg), cfg, nil
}

// openHistory opens the history store when a database path is configured.
func openHistory(v *viper.Viper) (*store.Store, error) {
	path := v.GetString("db")
	if path == "" {
		return nil, nil
	}
	s, err := store.New(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

// initI18n loads translations with lang as the default UI language, falling
// back to English when no locale exists for lang. It returns the language in use.
func initI18n(lang string) (string, error) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if err := appI18n.Init(lang); err == nil && appI18n.IsSupported(lang) {
		return lang, nil
	}
	slog.Warn("unsupported UI language, using en", "lang", lang)
	if err := appI18n.Init("en"); err != nil {
		return "", fmt.Errorf("init i18n: %w", err)
	}
	return "en", nil
}

// normalizeBasePath ensures a leading slash and no trailing slash.
func normalizeBasePath(p string) string {
	p = strings.TrimRight(strings.TrimSpace(p), "/")
	if p != "" && !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

type routerConfig struct {
	lang        string
	basePath    string
	timeout     time.Duration
	corsOrigins []string
}

func newRouter(h *handler.Handler, rc routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(rc.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: rc.corsOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Accept-Language", "Content-Type"},
			ExposedHeaders: []string{"X-Evaluation-ID"},
			MaxAge:         300,
		}))
	}
	if rc.timeout > 0 {
		r.Use(middleware.Timeout(rc.timeout))
	}
	r.Use(appI18n.Middleware(rc.lang))

	if rc.basePath != "" {
		r.Route(rc.basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(rc.basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, rc.basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}
	return r
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lang, err := initI18n(v.GetString("lang"))
	if err != nil {
		return err
	}

	g, cfg, err := newEvaluator(ctx, v)
	if err != nil {
		return err
	}
	basePath := normalizeBasePath(v.GetString("base-path"))
	cfg.Lang = lang
	cfg.BasePath = basePath
	cfg.MaxUploadBytes = v.GetInt64("max-upload-mb") << 20

	var opts []handler.Option
	history, err := openHistory(v)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		opts = append(opts, handler.WithHistory(history, v.GetInt("history-limit")))
	}

	h, err := handler.New(g, cfg, opts...)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	srv := &http.Server{
		Addr: v.GetString("addr"),
		Handler: newRouter(h, routerConfig{
			lang:        lang,
			basePath:    basePath,
			timeout:     v.GetDuration("request-timeout"),
			corsOrigins: v.GetStringSlice("cors-origins"),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("starting server",
		"addr", srv.Addr,
		"lang", lang,
		"ocr_engine", cfg.OCREngine,
		"ocr_failure_mode", cfg.OCRFailureMode,
		"default_marks", cfg.DefaultMarks,
		"history", history != nil,
		"base_path", basePath,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func runGrade(cmd *cobra.Command, args []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	questions, err := loadExamFile(args[0])
	if err != nil {
		return err
	}

	g, _, err := newEvaluator(ctx, v)
	if err != nil {
		return err
	}

	res, err := g.EvaluateAll(ctx, questions)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}

	history, err := openHistory(v)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		id, err := history.SaveEvaluation(res)
		if err != nil {
			slog.Error("failed to store evaluation", "error", err)
		} else {
			slog.Info("stored evaluation", "id", id)
		}
	}

	return writeOutput(v.GetString("output"), res)
}

func runHistory(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	entries, err := db.ListEvaluations(v.GetInt("history-limit"))
	if err != nil {
		return fmt.Errorf("list evaluations: %w", err)
	}
	return writeOutput(v.GetString("output"), entries)
}

// writeOutput writes v as indented JSON to outPath, or stdout for "" and "-".
func writeOutput(outPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
