package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ageniuscoder/mmchat/widget/internal/auth"
	"github.com/ageniuscoder/mmchat/widget/internal/bridge"
	"github.com/ageniuscoder/mmchat/widget/internal/chat"
	"github.com/ageniuscoder/mmchat/widget/internal/config"
	"github.com/ageniuscoder/mmchat/widget/internal/storage"
	"github.com/ageniuscoder/mmchat/widget/internal/storage/sqlite"
	"github.com/ageniuscoder/mmchat/widget/internal/widget"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	migrate := flag.Bool("migrate", false, "run migrations and exit")
	flag.Parse()

	//config part
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("Error Loading Env file: %v", err)
	}
	cfg := config.MustLoad()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Error building logger: %v", err)
	}
	defer logger.Sync()

	//device storage
	db, err := sqlite.New(cfg.SQLITEDsn)
	if err != nil {
		logger.Fatal("open device store", zap.Error(err))
	}
	defer db.Close()

	if *migrate {
		if err := db.Migrate(); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
		logger.Info("migration completed")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var hub *bridge.Hub
	w := widget.New(widget.Deps{
		Device: storage.NewDeviceStore(db),
		Prompter: chat.PrompterFunc(func() {
			hub.Broadcast(bridge.WireEvent{Type: bridge.EventEmailCapture})
		}),
		SubscribeTimeout: cfg.SubscribeTimeout,
		Logger:           logger,
	})
	defer w.Destroy()

	hub = bridge.NewHub(w, logger.Named("bridge"))
	go hub.Run(ctx)
	defer hub.Attach().Dispose()

	if err := w.Init(ctx, widget.InitOptions{
		AppToken:            cfg.AppToken,
		ServiceURL:          cfg.ServiceURL,
		UserID:              cfg.UserID,
		JWT:                 cfg.JWT,
		EmailCaptureEnabled: cfg.EmailCaptureEnabled,
	}); err != nil {
		logger.Fatal("widget init", zap.Error(err))
	}

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	v1 := r.Group("/v1", auth.JWTMiddleware(cfg.BridgeJWTSecret))
	bridge.Register(v1, w, bridge.NewLimiter(cfg.BridgeSendRPM), logger.Named("bridge"))
	bridge.RegisterWS(v1, hub)

	srv := &http.Server{Addr: cfg.Addr, Handler: r}
	go func() {
		logger.Info("bridge listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("bridge server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("bridge shutdown", zap.Error(err))
	}
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	return cfg.Build()
}
