// Package app は設定の読み込み、依存関係のワイヤリング、サブコマンドの実行を行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/donetracker/internal/auth"
	"github.com/hitoshi/donetracker/internal/config"
	"github.com/hitoshi/donetracker/internal/database"
	"github.com/hitoshi/donetracker/internal/handler"
	"github.com/hitoshi/donetracker/internal/logger"
	"github.com/hitoshi/donetracker/internal/metrics"
	"github.com/hitoshi/donetracker/internal/middleware"
	"github.com/hitoshi/donetracker/internal/project"
	"github.com/hitoshi/donetracker/internal/query"
	"github.com/hitoshi/donetracker/internal/repository"
	"github.com/hitoshi/donetracker/internal/security"
	"github.com/hitoshi/donetracker/internal/todo"
	"github.com/hitoshi/donetracker/internal/user"
)

// Init はアプリケーションの初期化を行う。
// .envファイルがあれば環境変数へ読み込み、Configを読み込んでJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. .envの読み込み。既に設定済みの環境変数は上書きしない
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. LOG_LEVELを反映する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		writeUsage(w)
		return err
	}

	switch cmd {
	case CommandHelp:
		writeUsage(w)
		return nil
	case CommandHealthcheck:
		// 軽量サブコマンドのため、フル初期化をスキップする
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "3000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("db_driver", cfg.DBDriver),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// Server はワイヤリング済みのHTTPハンドラーと、その依存のうち後始末や疎通確認が必要なものを保持する。
type Server struct {
	Handler  http.Handler
	Executor *query.Executor

	limiter *middleware.RateLimiter
}

// NewServer はConfigから全依存関係を組み立てる。
// メトリクスは指定されたレジストリに登録する。
func NewServer(cfg *config.Config, registry *prometheus.Registry) *Server {
	collector := metrics.NewCollector(registry)

	// 1. クエリ実行器（ステートメントごとに接続を開閉する）
	executor := query.NewExecutor(query.Config{
		Driver:         cfg.DBDriver,
		DSN:            cfg.DSN(),
		ConnectTimeout: cfg.ConnectTimeout,
		QueryTimeout:   cfg.QueryTimeout,
	}, collector)

	// 2. リポジトリの初期化
	userRepo := repository.NewSQLUserRepo(executor)
	projectRepo := repository.NewSQLProjectRepo(executor)
	todoRepo := repository.NewSQLTodoRepo(executor)
	priorityRepo := repository.NewSQLPriorityRepo(executor)

	// 3. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	tokens := auth.NewTokenManager(auth.TokenConfig{
		Secret: []byte(cfg.JWTSecret),
		Issuer: cfg.TokenIssuer,
		TTL:    cfg.TokenTTL,
	})
	authService := auth.NewService(userRepo, tokens)
	userService := user.NewService(userRepo)
	projectService := project.NewService(projectRepo, userService, sanitizer)
	todoService := todo.NewService(todoRepo, projectRepo, userService, sanitizer)

	// 4. ルーターの構築
	limiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth),
		collector,
	)

	router := handler.NewRouter(&handler.RouterDeps{
		TokenVerifier:     tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       limiter,
		Metrics:           collector,
		MetricsGatherer:   registry,

		HealthChecker: executor,

		AuthService:     authService,
		UserService:     userService,
		ProjectService:  projectService,
		TodoService:     todoService,
		PriorityService: priorityRepo,
	})

	return &Server{
		Handler:  router,
		Executor: executor,
		limiter:  limiter,
	}
}

// Close はバックグラウンドのクリーンアップを停止する。
func (s *Server) Close() {
	s.limiter.Stop()
}

// runServe はAPIサーバーモードで起動する。
// データベースへの疎通を確認し、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := NewServer(cfg, registry)
	defer srv.Close()

	// 1. DB疎通確認（接続は保持しない）
	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	err := srv.Executor.PingContext(pingCtx)
	cancelPing()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database reachable", slog.String("database", maskDatabaseURL(cfg.DSN())))

	// 2. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.QueryTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("driver", cfg.DBDriver),
		slog.String("database", maskDatabaseURL(cfg.MigrationURL())),
	)

	if err := database.RunMigrations(cfg.DBDriver, cfg.MigrationURL()); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "***"
	}
	return u.Redacted()
}
