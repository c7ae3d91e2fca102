package app

import (
	"context"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/JongoDB/arc4de/internal/api"
	"github.com/JongoDB/arc4de/internal/build"
	"github.com/JongoDB/arc4de/internal/config"
	"github.com/JongoDB/arc4de/internal/jwtauth"
	"github.com/JongoDB/arc4de/internal/logging"
	"github.com/JongoDB/arc4de/internal/plugins"
	"github.com/JongoDB/arc4de/internal/service"
	"github.com/JongoDB/arc4de/internal/tmuxctl"
	"github.com/JongoDB/arc4de/internal/tools"
	"github.com/JongoDB/arc4de/internal/tunnel"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Run(cmd *cobra.Command, configFile string) {
	dotEnvUsed := false
	if tools.FileExists(".env") {
		err := godotenv.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("error loading .env file")
		}
		dotEnvUsed = true
	}
	cfg, cfgMeta, err := config.GetConfig(cmd, configFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error getting config")
	}

	ctx, serviceCancel := context.WithCancel(context.Background())
	defer serviceCancel()

	logCloseFn := logging.Setup(cfg)
	if logCloseFn != nil {
		defer logCloseFn()
	}
	if cfgMeta.FileNotFound {
		log.Warn().Msg("config file not found, continue using environment and flag options")
	} else if configFile != "" {
		absConfPath, _ := filepath.Abs(configFile)
		log.Info().Str("path", absConfPath).Msg("using config file")
	}
	if dotEnvUsed {
		log.Info().Msg("environment variables have been loaded from .env file")
	}
	for _, key := range cfgMeta.UnknownKeys {
		log.Warn().Str("key", key).Msg("unknown key in configuration")
	}

	err = tools.WritePidFile(cfg.PidFile)
	if err != nil {
		log.Fatal().Err(err).Msg("error writing PID")
	}

	log.Info().
		Str("version", build.Version).
		Str("runtime", runtime.Version()).
		Int("pid", os.Getpid()).
		Msg("starting ARC4DE")

	if build.Version == "0.0.0" {
		log.Warn().Msg("running a development build of ARC4DE (version 0.0.0), ensure to use release build in production")
	}

	err = cfg.Validate()
	if err != nil {
		log.Fatal().Err(err).Msg("error validating config")
	}

	issuer, err := jwtauth.NewIssuer(jwtauth.Config{
		Secret:     cfg.Auth.TokenHMACSecretKey,
		AccessTTL:  cfg.Auth.AccessTokenTTL,
		RefreshTTL: cfg.Auth.RefreshTokenTTL,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("error creating token issuer")
	}

	sessions := tmuxctl.NewManager(tmuxctl.Config{
		SocketPath: cfg.Session.TmuxSocket,
		SessionTTL: cfg.Session.TTL,
		Width:      cfg.Session.Width,
		Height:     cfg.Session.Height,
	})

	// Registered services run alongside the HTTP server and stop after
	// its shutdown.
	serviceManager := service.NewManager()
	if cfg.Session.TTL > 0 {
		serviceManager.Register(&tmuxctl.CleanupService{
			Manager:  sessions,
			Interval: cfg.Session.CleanupInterval,
		})
		log.Info().Str("ttl", cfg.Session.TTL.String()).Msg("session cleanup enabled")
	}

	plugs := plugins.NewManager(plugins.Shell(), plugins.ClaudeCode())
	plugs.LogHealth()

	var tunnels *tunnel.Manager
	var apiTunnels api.TunnelManager
	if cfg.Tunnel.Enabled {
		tunnels = tunnel.NewManager()
		if !tunnels.Available() {
			log.Warn().Msg("cloudflared not found, tunneling disabled")
			tunnels = nil
		} else {
			apiTunnels = tunnels
		}
	}

	flags := HandlerTerminal | HandlerAPI
	if cfg.Prometheus.Enabled {
		flags |= HandlerPrometheus
	}
	if cfg.Health.Enabled {
		flags |= HandlerHealth
	}
	if cfg.Debug.Enabled {
		flags |= HandlerDebug
	}

	mux := Mux(cfg, issuer, sessions, apiTunnels, plugs, flags)
	addr := net.JoinHostPort(cfg.HTTP.Address, strconv.Itoa(cfg.HTTP.Port))
	server := &http.Server{
		Addr:     addr,
		Handler:  mux,
		ErrorLog: stdlog.New(&httpErrorLogWriter{log.Logger}, "", 0),
	}

	log.Info().Str("address", addr).Str("endpoints", flags.String()).Msg("serving")
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("error running HTTP server")
		}
	}()

	serviceManager.Run(ctx)

	if tunnels != nil {
		go func() {
			url, err := tunnels.StartSession(ctx, cfg.HTTP.Port)
			if err != nil {
				log.Error().Err(err).Msg("error starting session tunnel")
				return
			}
			log.Info().Str("url", url).Msg("server reachable via tunnel")
		}()
	}

	handleSignals(cmd, configFile, cfg, server, tunnels, serviceManager, serviceCancel)
}

func handleSignals(
	cmd *cobra.Command, configFile string, cfg config.Config, server *http.Server,
	tunnels *tunnel.Manager, serviceManager *service.Manager, serviceCancel context.CancelFunc,
) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, os.Interrupt, syscall.SIGTERM)
	for {
		sig := <-sigCh
		log.Info().Msgf("signal received: %v", sig)
		switch sig {
		case syscall.SIGHUP:
			// Best effort reload: only the log level can change at runtime,
			// other options require a restart.
			log.Info().Msg("reloading configuration")
			newCfg, _, err := config.GetConfig(cmd, configFile)
			if err != nil {
				log.Err(err).Msg("error reading config")
				continue
			}
			if err = newCfg.Validate(); err != nil {
				log.Error().Msgf("error validating config: %v", err)
				continue
			}
			logging.SetLevel(newCfg.Log.Level)
			log.Info().Msg("configuration successfully reloaded")
		case syscall.SIGINT, os.Interrupt, syscall.SIGTERM:
			log.Info().Msg("shutting down ...")
			pidFile := cfg.PidFile
			go time.AfterFunc(cfg.Shutdown.Timeout, func() {
				if pidFile != "" {
					_ = os.Remove(pidFile)
				}
				log.Fatal().Msg("shutdown timeout reached")
			})

			var wg sync.WaitGroup
			if tunnels != nil {
				wg.Add(1)
				go func() {
					defer wg.Done()
					tunnels.StopAll()
				}()
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = server.Shutdown(context.Background()) // We have a separate timeout goroutine.
			}()
			wg.Wait()

			serviceCancel()
			_ = serviceManager.Wait()

			if pidFile != "" {
				_ = os.Remove(pidFile)
			}
			os.Exit(0)
		}
	}
}
