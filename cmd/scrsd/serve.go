package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/sunO2/scrs/internal/config"
	"github.com/sunO2/scrs/internal/discovery"
	"github.com/sunO2/scrs/internal/logging"
	"github.com/sunO2/scrs/pkg/agentloop"
	"github.com/sunO2/scrs/pkg/device"
	"github.com/sunO2/scrs/pkg/devicepool"
	"github.com/sunO2/scrs/pkg/httpapi"
	"github.com/sunO2/scrs/pkg/model"
)

const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	var logLevel string
	var prettyLog bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the device control HTTP and agent event servers.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), logLevel, prettyLog)
		},
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error).")
	cmd.PersistentFlags().BoolVar(&prettyLog, "pretty-log", true, "Use console-friendly (non-JSON) log output.")

	return cmd
}

func serve(ctx context.Context, logLevel string, prettyLog bool) error {
	logging.Setup(logLevel, prettyLog)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Model.APIKey == "" && cfg.Model.OpenAIAPIKey == "" {
		log.Error().Msg("no model API key configured (AUTOGLM_API_KEY or OPENAI_API_KEY); agent requests will fail until one is set")
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt)
	defer cancel()

	apiKey := cfg.Model.APIKey
	if apiKey == "" {
		apiKey = cfg.Model.OpenAIAPIKey
	}

	poolCfg := devicepool.Config{
		MaxConnections:  cfg.Pool.MaxConnections,
		IdleThreshold:   cfg.Pool.IdleThreshold,
		HealthInterval:  cfg.Pool.HealthInterval,
		CleanupInterval: cfg.Pool.CleanupInterval,
		JarPath:         cfg.Pool.JarPath,
		StreamBasePort:  cfg.Pool.StreamBasePort,
		ModelConfig: model.Config{
			APIKey:         apiKey,
			BaseURL:        cfg.Model.BaseURL,
			PrimaryModel:   cfg.Model.PrimaryModel,
			AuxiliaryModel: cfg.Model.AuxiliaryModel,
			ThreeStage:     cfg.Model.ThreeStage,
			PlanModel:      cfg.Model.PlanModel,
			ExecuteModel:   cfg.Model.ExecuteModel,
		},
		AgentConfig: agentloop.Config{
			MaxSteps:          cfg.Agent.MaxSteps,
			MaxExecutionTime:  cfg.Agent.MaxExecutionTime,
			ActionDelay:       cfg.Agent.ActionDelay,
			MaxNoActionStreak: cfg.Agent.MaxNoActionStreak,
			AuditLogDir:       cfg.Agent.AuditLogDir,
		},
		ResolvePackage: device.ResolvePackage,
	}

	pool, err := devicepool.New(poolCfg, log.Logger)
	if err != nil {
		return fmt.Errorf("create device pool: %w", err)
	}
	defer func() {
		if err := pool.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("device pool shutdown error")
		}
	}()

	scanner := discovery.New(pool, log.Logger, cfg.Pool.CleanupInterval)
	go scanner.Run(ctx)

	httpServer := httpapi.NewServer(pool)
	agentNS := httpapi.NewAgentNamespace(pool, log.Logger)

	httpSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler: httpServer.Router(),
	}
	agentSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTP.AgentEventsPort),
		Handler: agentNS,
	}

	go func() {
		log.Info().Int("port", cfg.HTTP.Port).Msg("device control HTTP server listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("device control HTTP server exited")
		}
	}()

	go func() {
		log.Info().Int("port", cfg.HTTP.AgentEventsPort).Msg("agent event namespace listening")
		if err := agentSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("agent event namespace exited")
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer shutdownCancel()
	_ = httpSrv.Shutdown(shutdownCtx)
	_ = agentSrv.Shutdown(shutdownCtx)

	return nil
}
