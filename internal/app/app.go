package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hitoshi/studylog/internal/config"
	"github.com/hitoshi/studylog/internal/database"
	"github.com/hitoshi/studylog/internal/docstore"
	"github.com/hitoshi/studylog/internal/handler"
	"github.com/hitoshi/studylog/internal/identity"
	"github.com/hitoshi/studylog/internal/logger"
	"github.com/hitoshi/studylog/internal/mail"
	"github.com/hitoshi/studylog/internal/metrics"
	"github.com/hitoshi/studylog/internal/middleware"
	"github.com/hitoshi/studylog/internal/record"
	"github.com/hitoshi/studylog/internal/repository"
	"github.com/hitoshi/studylog/internal/security"
	"github.com/hitoshi/studylog/internal/tracker"
	"github.com/hitoshi/studylog/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, cfg.LogLevel)

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
		slog.String("base_url", cfg.BaseURL),
		slog.String("store_backend", cfg.StoreBackend),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolConfig())
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// openRecordStore はSTORE_BACKENDに応じた学習記録の保存先を開く。
// 戻り値のcloseは終了時に呼び出す。
func openRecordStore(ctx context.Context, cfg *config.Config, db *sql.DB) (docstore.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.StoreBackend {
	case config.StoreBackendFirestore:
		fs, err := docstore.NewFirestoreStore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return nil, nil, err
		}
		return fs, fs.Close, nil
	case config.StoreBackendMemory:
		slog.Warn("using in-memory record store; records are lost on restart")
		return docstore.NewMemoryStore(), noop, nil
	default:
		return docstore.NewPostgresStore(db), noop, nil
	}
}

// newMailSender はRESEND_API_KEYが設定されていればResend、なければログ出力のみの送信者を返す。
func newMailSender(cfg *config.Config) mail.Sender {
	if cfg.ResendAPIKey == "" {
		slog.Warn("RESEND_API_KEY is not set; password reset mails are only logged")
		return mail.NewNoopSender(slog.Default())
	}
	return mail.NewResendSender(cfg.ResendAPIKey, cfg.MailFrom, slog.Default())
}

// rateLimiterConfig はreq/min単位の設定をreq/secに変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rl.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rl.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitAuth > 0 {
		rl.AuthRate = rate.Limit(float64(cfg.RateLimitAuth) / 60.0)
		rl.AuthBurst = cfg.RateLimitAuth
	}
	return rl
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. 学習記録の保存先
	store, closeStore, err := openRecordStore(ctx, cfg, db)
	if err != nil {
		return fmt.Errorf("failed to open record store: %w", err)
	}
	defer closeStore()

	// 3. 認証サービス
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	tokenRepo := repository.NewPostgresResetTokenRepo(db)

	identityService := identity.NewService(userRepo, sessionRepo, tokenRepo, newMailSender(cfg), identity.ServiceConfig{
		SessionMaxAge: cfg.SessionMaxAge,
		ResetTokenTTL: cfg.ResetTokenTTL,
		BaseURL:       cfg.BaseURL,
	})

	// 4. メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// 5. ブラウザコンテキストごとのTracker
	trackers, err := tracker.NewRegistry(cfg.TrackerCacheSize, identityService, record.NewRepository(store), tracker.Options{
		Logger:   slog.Default(),
		Recorder: collector,
	})
	if err != nil {
		return err
	}
	defer trackers.Close()
	metrics.RegisterTrackerGauge(reg, trackers.Len)

	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()
	metrics.RegisterRateLimiterGauge(reg, rateLimiter.GeneralLimiterCount, rateLimiter.AuthLimiterCount)

	// 6. ルーターの構築
	deps := &handler.RouterDeps{
		Logger: slog.Default(),
		SessionStore: middleware.NewBrowserSessionStore(middleware.BrowserSessionConfig{
			Secret: cfg.SessionSecret,
			MaxAge: cfg.SessionMaxAge,
			Secure: cfg.CookieSecure,
			Domain: cfg.CookieDomain,
		}),
		Trackers:          trackers,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRF: middleware.CSRFConfig{
			Secret:       cfg.SessionSecret,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		HealthChecker:    db,
		Metrics:          collector,
		MetricsGatherer:  reg,
		Sanitizer:        security.NewTitleSanitizer(),
		PasswordResetter: identityService,
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 起動直後に1回クリーンアップを実行し、以降はCLEANUP_SCHEDULEに従って実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. クリーンアップジョブの初期化
	job := newCleanupJob(db)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting", slog.String("cleanup_schedule", cfg.CleanupSchedule))

	if err := job.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	// スケジューラをメインgoroutineで実行（ブロッキング）
	if err := job.Schedule(ctx, cfg.CleanupSchedule); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newCleanupJob は期限切れセッションと再設定トークンを削除するジョブを生成する。
func newCleanupJob(db *sql.DB) *cleanup.CleanupJob {
	collector := metrics.NewCollector(prometheus.NewRegistry())
	return cleanup.NewCleanupJob([]cleanup.Target{
		{Table: "sessions", Purger: repository.NewPostgresSessionRepo(db)},
		{Table: "password_reset_tokens", Purger: repository.NewPostgresResetTokenRepo(db)},
	}, slog.Default(), collector)
}

// runCleanup はクリーンアップを1回実行して終了する。
func runCleanup(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	return newCleanupJob(db).Run(ctx)
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	version, dirty, err := database.Version(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	slog.Info("database migrations completed successfully",
		slog.Uint64("version", uint64(version)),
		slog.Bool("dirty", dirty),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
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
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
