package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/neuroverse/icpay/logger"
	"github.com/neuroverse/icpay/metrics"
	"github.com/neuroverse/icpay/proxy"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("agentproxyd: %v", err)
	}
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "configs/agentproxy.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := proxy.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	logr := logger.NewZapLogger(cfg.LogLevel)

	llmClient, err := proxy.NewOpenAIClient(cfg.LLM)
	if err != nil {
		return err
	}

	tools := []proxy.Tool{proxy.NewMarketDataTool(cfg.MarketDataURL)}
	if cfg.SearchEndpoint != "" {
		tools = append(tools, proxy.NewWebSearchTool(cfg.SearchEndpoint, cfg.SearchAPIKey))
	}

	agent := proxy.NewAgent(llmClient, tools, logr)
	server := proxy.NewServer(cfg.ListenAddr, agent, logr, metrics.NewPrometheusRecorder())

	return server.Run(ctx)
}
