package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lanzaweb/internal/config"
	"lanzaweb/internal/deploy"
	"lanzaweb/internal/events"
	internalhttp "lanzaweb/internal/http"
	"lanzaweb/internal/mailer"
	"lanzaweb/internal/panel"
	"lanzaweb/internal/services"
	"lanzaweb/internal/store"
	"lanzaweb/internal/webhook"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer zl.Sync()
	logger := zl.Sugar()

	ctx := context.Background()

	var st store.Store
	if cfg.DB.DSN != "" {
		pg, err := store.Connect(ctx, cfg.DB.DSN)
		if err != nil {
			logger.Fatalw("db connect failed", "err", err)
		}
		defer pg.Close()
		st = pg
	} else {
		mem, err := store.NewMemory(cfg.Orders.DataDir)
		if err != nil {
			logger.Fatalw("order store init failed", "err", err)
		}
		logger.Infow("running on in-memory order store", "data_dir", cfg.Orders.DataDir)
		st = mem
	}

	panelClient := panel.NewClient(panel.Config{
		BaseURL:  cfg.Panel.BaseURL,
		APIToken: cfg.Panel.APIToken,
		Username: cfg.Panel.Username,
		Password: cfg.Panel.Password,
	})

	mail := mailer.New(mailer.SMTPConfig{
		Host:            cfg.SMTP.Host,
		Port:            cfg.SMTP.Port,
		Username:        cfg.SMTP.Username,
		Password:        cfg.SMTP.Password,
		From:            cfg.SMTP.From,
		SandboxHost:     cfg.SMTP.Sandbox.Host,
		SandboxPort:     cfg.SMTP.Sandbox.Port,
		SandboxUsername: cfg.SMTP.Sandbox.Username,
		SandboxPassword: cfg.SMTP.Sandbox.Password,
	}, logger)

	hub := events.NewHub()

	processor := &webhook.Processor{
		Store:         st,
		Panel:         panelClient,
		Mailer:        mail,
		Events:        hub,
		Logger:        logger,
		PanelLoginURL: cfg.Panel.LoginURL,
		Processors:    cfg.Processors,
	}
	if cfg.Deploy.Enabled {
		processor.Deployer = deploy.NewClient(cfg.Deploy.Host, cfg.Deploy.Port,
			time.Duration(cfg.Deploy.TimeoutSeconds)*time.Second)
		processor.SiteDir = cfg.Deploy.SiteDir
	}

	orderSvc := &services.OrderService{
		Store:          st,
		Mailer:         mail,
		Logger:         logger,
		PaymentURLBase: cfg.Orders.PaymentURLBase,
		Currency:       cfg.Orders.Currency,
	}

	h := internalhttp.NewHandler(orderSvc, processor, st, hub, logger)
	srv := internalhttp.NewServer(h)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		logger.Infow("api listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalw("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
