package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/recbit/meetrec/internal/adapters/http"
	"github.com/recbit/meetrec/internal/adapters/meetapi"
	"github.com/recbit/meetrec/internal/adapters/rtc"
	"github.com/recbit/meetrec/internal/app"
	"github.com/recbit/meetrec/internal/app/orch"
	"github.com/recbit/meetrec/internal/app/rec"
	"github.com/recbit/meetrec/internal/config"
	"github.com/recbit/meetrec/internal/core"
	"github.com/recbit/meetrec/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	creds := domain.Credentials{Email: cfg.Email, RefreshToken: cfg.RefreshToken}
	tokens := meetapi.NewTokenSource(cfg.ClientID, cfg.ClientSecret, creds)
	client := meetapi.NewClient(cfg.APIBaseURL, tokens)

	hub := router.NewEventHub()

	timeouts := orch.DefaultTimeouts()
	timeouts.PollTimeout = cfg.PollTimeout
	timeouts.PollInterval = cfg.PollInterval
	timeouts.ConnectTimeout = cfg.ConnectTimeout
	timeouts.SettleDelay = cfg.SettleDelay
	timeouts.ChunkTick = cfg.ChunkTick
	timeouts.ParticipantTick = cfg.ParticipantTick

	recOpts := rec.DefaultOptions()
	recOpts.Grace = cfg.MediaGrace

	o := &orch.Orchestrator{
		Sessions:  app.NewSessionTable(),
		Directory: meetapi.NewDirectory(client),
		Signaling: meetapi.NewSignaling(client),
		NewConnection: func(label string) core.MediaSession {
			return rtc.NewConnection(label)
		},
		NewPipeline: func(source rec.TrackSource) *rec.Pipeline {
			return rec.NewPipeline(source, func() core.MediaEncoder {
				return rtc.NewChunkEncoder()
			}, recOpts)
		},
		Status:   hub,
		Timeouts: timeouts,
	}

	ctl := &router.Controller{
		Orch:     o,
		Uploader: meetapi.NewUploader(client),
		Creds:    creds,
		Project:  cfg.ProjectID,
	}

	r := router.SetupRouter(cfg, ctl, hub)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("meetrec server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	o.ForceStopAll(shutdownCtx)
	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
