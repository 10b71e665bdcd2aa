// relay: bidirectional audio bridge between phone calls and a
// streaming voice model. Accepts provider media streams over
// WebSocket, opens one model session per call, and serves the
// operations API and dashboard feed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pfeddy91/better-call-robots-sub000/internal/config"
	"github.com/pfeddy91/better-call-robots-sub000/internal/log"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/agent"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/audio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/hub"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/relay"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/tts"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/twilio"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/voice"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/web"
	"github.com/pfeddy91/better-call-robots-sub000/pkg/webcall"
)

var (
	version  = "1.0.0"
	port     = flag.String("port", config.DefaultPort, "HTTP listen port")
	host     = flag.String("public-host", "", "externally reachable host for webhooks (or set PUBLIC_HOST)")
	logLevel = flag.String("log-level", config.DefaultLogLevel, "log level: debug, info, warn or error")
	agentDir = flag.String("agent-dir", "", "directory of extra agent profile JSON files")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	cfg.Port = *port
	cfg.PublicHost = *host
	cfg.LogLevel = *logLevel
	cfg.AgentDir = *agentDir
	cfg.FromEnv()

	log.Init(cfg.LogLevel)
	logger := log.Component("main")

	fmt.Printf("relay v%s\n", version)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Model session manager, dialing either AI Studio or Vertex.
	vcfg := voice.DefaultConfig()
	vcfg.Model = cfg.Model
	vcfg.Voice = cfg.Voice
	if cfg.UseVertex {
		vcfg = vcfg.WithVertex(cfg.VertexProject, cfg.VertexLocation)
	} else {
		vcfg = vcfg.WithAPIKey(cfg.GoogleAPIKey)
	}
	if err := vcfg.Validate(); err != nil {
		logger.Error("invalid model configuration", "error", err)
		os.Exit(1)
	}
	manager := voice.NewManager(vcfg)

	// Answering personas: built-ins plus any operator-supplied dir.
	agents := agent.NewRegistry()
	if err := agents.LoadBuiltIn(); err != nil {
		logger.Error("failed to load built-in profiles", "error", err)
		os.Exit(1)
	}
	if cfg.AgentDir != "" {
		if err := agents.LoadCustomDir(cfg.AgentDir); err != nil {
			logger.Error("failed to load custom profiles", "dir", cfg.AgentDir, "error", err)
			os.Exit(1)
		}
	}

	// Provider REST client. Without credentials the relay still takes
	// inbound calls; outbound dialing and API hangups are off.
	var rest *twilio.RestClient
	if cfg.TelephonyConfigured() {
		var err error
		rest, err = twilio.NewRestClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken)
		if err != nil {
			logger.Error("failed to build REST client", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no telephony credentials, outbound calls and API hangup unavailable")
	}

	// Announcement synthesizer for the apology line. Optional: a
	// failed session just hangs up silently without it.
	var announcer tts.Provider
	if cfg.GoogleAPIKey != "" {
		var err error
		announcer, err = tts.NewGoogle(ctx, tts.WithAPIKey(cfg.GoogleAPIKey))
		if err != nil {
			logger.Warn("announcement synthesis unavailable", "error", err)
			announcer = nil
		} else {
			defer announcer.Close()
		}
	}

	adapter := twilio.NewAdapter()
	monitor := hub.New()

	orch, err := relay.New(relay.Config{
		PublicHost: cfg.PublicHost,
		CallerID:   cfg.TwilioFromNumber,
	}, relay.Deps{
		Adapter:   adapter,
		Rest:      rest,
		Voice:     manager,
		Converter: audio.NewConverter(),
		TTS:       announcer,
		Agents:    agents,
		Monitor:   monitor,
	})
	if err != nil {
		logger.Error("failed to build orchestrator", "error", err)
		os.Exit(1)
	}

	bridge, err := webcall.New(webcall.Deps{
		Voice:   manager,
		Agents:  agents,
		Monitor: monitor,
	})
	if err != nil {
		logger.Error("failed to build browser call bridge", "error", err)
		os.Exit(1)
	}

	srv, err := web.New(web.Deps{
		Config:   &cfg,
		Adapter:  adapter,
		Relay:    orch,
		Monitor:  monitor,
		WebCalls: bridge,
	})
	if err != nil {
		logger.Error("failed to build server", "error", err)
		os.Exit(1)
	}

	go monitor.Run()
	go manager.Run(ctx)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Error("http server failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("relay up",
		"version", version,
		"port", cfg.Port,
		"stream_url", cfg.StreamURL(),
		"model", cfg.Model,
		"vertex", cfg.UseVertex,
		"agents", agents.List(),
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	cancel()

	// Hang up cleanly before the listener goes away: the phone legs
	// need the REST API and open stream sockets for their goodbyes.
	orch.Shutdown()
	bridge.Shutdown()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	manager.CloseAll()

	logger.Info("goodbye")
}
