package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/azerweys/panel/backend/internal/config"
	"github.com/azerweys/panel/backend/internal/handler"
	chatHandler "github.com/azerweys/panel/backend/internal/handler/chat"
	"github.com/azerweys/panel/backend/internal/service/audit"
	"github.com/azerweys/panel/backend/internal/service/chat"
	"github.com/azerweys/panel/backend/internal/service/mail"
	"github.com/azerweys/panel/backend/internal/service/order"
	"github.com/azerweys/panel/backend/internal/service/permission"
	"github.com/azerweys/panel/backend/internal/service/session"
	"github.com/azerweys/panel/backend/internal/service/user"
	"github.com/azerweys/panel/backend/internal/storage"
	"github.com/azerweys/panel/backend/pkg/utils"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file to load before reading the environment")
	dataDir := pflag.String("data-dir", "", "badger directory (overrides DATA_DIR)")
	seedFile := pflag.String("seed", "", "YAML seed used when no user exists (overrides SEED_FILE)")
	addr := pflag.String("addr", "", "listen address (overrides PORT)")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(*envFile); err != nil {
		log.Warn().Err(err).Msg("failed to load .env file, continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	if *dataDir != "" {
		cfg.Storage.Dir = *dataDir
	}
	if *seedFile != "" {
		cfg.SeedFile = *seedFile
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	utils.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	db, err := storage.Open(storage.Options{Dir: cfg.Storage.Dir})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer db.Close()

	messages, err := storage.NewMessageLog(db)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open chat log")
	}
	defer messages.Close()

	notifier := audit.New(audit.Config{
		BotToken: cfg.Telegram.BotToken,
		ChatID:   cfg.Telegram.ChatID,
		BaseURL:  cfg.Telegram.BaseURL,
	})
	mailer := mail.NewSMTPSender(mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	})

	permissionSvc := permission.NewService(storage.NewPermissionStore(db))
	userSvc := user.NewService(storage.NewUserStore(db), permissionSvc, mailer, notifier)
	orderSvc := order.NewService(storage.NewOrderStore(db), permissionSvc, notifier)
	chatSvc := chat.NewService(messages, chat.NewRegistry(), chat.WithHistoryLimit(cfg.Chat.HistoryLimit))
	sessions := session.NewManager(storage.NewSessionStore(db), cfg.Server.SessionTTL, cfg.Server.SecureCookie)

	seed(ctx, userSvc, cfg.SeedFile)

	router := handler.NewRouter(handler.Dependencies{
		Sessions: sessions,
		Chat:     chatSvc,
		ChatOptions: chatHandler.Options{
			WriteTimeout:   cfg.Chat.WriteTimeout,
			PingInterval:   cfg.Chat.PingInterval,
			MaxMessageSize: cfg.Chat.MaxMessageSize,
			SendQueue:      cfg.Chat.SendQueue,
		},
		Users:       userSvc,
		Permissions: permissionSvc,
		Orders:      orderSvc,
		Audit:       notifier,
		StaticDir:   cfg.Server.StaticDir,
	})

	startServer(ctx, cfg.Server, router, chatSvc)
	flushAudit(notifier, 10*time.Second)
}

// flushAudit gives audit deliveries still in flight up to timeout to finish.
func flushAudit(notifier audit.Notifier, timeout time.Duration) {
	pending, ok := notifier.(interface{ Wait() })
	if !ok {
		return
	}
	done := make(chan struct{})
	go func() {
		pending.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		log.Warn().Dur("timeout", timeout).Msg("audit deliveries still pending at exit")
	}
}

func seed(ctx context.Context, users *user.Service, path string) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			log.Debug().Str("file", path).Msg("no seed file")
			return
		}
		log.Fatal().Err(err).Msg("failed to open seed file")
	}
	defer f.Close()

	if _, err := users.Seed(ctx, f); err != nil {
		log.Fatal().Err(err).Msg("failed to seed users")
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, chatSvc *chat.Service) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	// Hijacked WebSocket connections are not closed by Shutdown.
	srv.RegisterOnShutdown(chatSvc.Shutdown)

	log.Info().Str("addr", addr).Msg("backend listening")
	if err := runServer(ctx, srv); err != nil {
		log.Error().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
