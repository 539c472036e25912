package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"futuresflow/config"
	"futuresflow/internal/calendar"
	"futuresflow/internal/catalog"
	"futuresflow/internal/channel"
	"futuresflow/internal/dashboard"
	"futuresflow/internal/pipeline"
	"futuresflow/logger"
	"futuresflow/reader/ctp"
	"futuresflow/writer"
)

const defaultConfigPath = "config/config.yml"

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	productsPath := flag.String("products", "", "Path to products file (overrides feed.products_file)")
	flag.Parse()

	env := config.AppEnvironment()
	cfg, err := config.LoadConfig(config.ResolveConfigPath(*configPath, defaultConfigPath))
	if err != nil {
		log.WithError(err).WithEnv("APP_ENV").Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Futuresflow.Name,
		"version": cfg.Futuresflow.Version,
		"env":     env,
	}).Info("starting futuresflow")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cw := cfg.Metrics.CloudWatch; cw.Enabled {
		logger.InitCloudWatch(ctx, cw.Region, cw.Namespace, cw.Dashboard)
	}
	if logger.ReportEnabled(cfg.Logging.Level) {
		logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)
	}

	cat := catalog.Default()
	cal := calendar.Default()

	var products []catalog.Product
	if path := firstNonEmpty(*productsPath, cfg.Feed.ProductsFile); path != "" {
		settings, err := config.LoadProducts(path)
		if err != nil {
			if config.IsProductionLike(env) {
				log.WithError(err).Error("failed to load products")
				os.Exit(1)
			}
			log.WithError(err).Warn("failed to load products, subscribing the rolling catalog window")
		} else {
			products = settings.All()
		}
	}

	instruments := cfg.Feed.Instruments
	if len(instruments) == 0 {
		instruments = cat.SubscriptionCodes(products, time.Now())
	}
	log.WithComponent("main").WithFields(logger.Fields{
		"instruments": len(instruments),
		"products":    len(products),
	}).Info("subscription list built")

	csvWriter := writer.NewCSVWriter(cfg.Storage.Root)
	if err := csvWriter.EnsureMarkets(cat.Markets()); err != nil {
		log.WithError(err).Error("failed to initialise data root")
		os.Exit(1)
	}

	var mirrors []writer.Mirror
	if cfg.Storage.S3.Enabled {
		s3Mirror, err := writer.NewS3Mirror(ctx, cfg.Storage.S3, cfg.Futuresflow.Version)
		if err != nil {
			log.WithError(err).Error("failed to create S3 mirror")
			os.Exit(1)
		}
		mirrors = append(mirrors, s3Mirror)
	} else {
		log.WithComponent("main").Info("S3 mirror disabled")
	}

	channels := channel.NewChannels(cfg.Channels.RawBuffer, cfg.Channels.TickBuffer)

	var publisher pipeline.Publisher
	if cfg.Storage.Kafka.Enabled {
		kp, err := writer.NewKafkaPublisher(cfg.Storage.Kafka, channels.Ticks)
		if err != nil {
			log.WithError(err).Error("failed to create kafka publisher")
			os.Exit(1)
		}
		publisher = kp
	}

	sessions := ctp.NewGatewayFactory(cfg.Feed.GatewayURL, cfg.Feed.PingInterval)
	feedOpts := ctp.OptionsFromConfig(cfg.Feed, instruments)

	p, err := pipeline.New(pipeline.Options{
		Calendar: cal,
		Catalog:  cat,
		Channels: channels,
		Store:    writer.NewChain(csvWriter, mirrors...),
		NewFeed: func(l ctp.Listener) pipeline.Feed {
			return ctp.NewConnection(feedOpts, sessions, l)
		},
		Publisher:          publisher,
		SchedulerInterval:  cfg.Scheduler.Interval,
		SupervisorInterval: cfg.Supervisor.Interval,
		ChannelStats:       cfg.Metrics.ChannelStats,
	})
	if err != nil {
		log.WithError(err).Error("failed to build pipeline")
		os.Exit(1)
	}

	if err := p.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start pipeline")
		os.Exit(1)
	}

	dash, err := dashboard.NewServer(cfg.Dashboard, p, cfg.Storage.Root, log)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard")
		os.Exit(1)
	}
	dashCtx, dashCancel := context.WithCancel(ctx)
	dashDone := make(chan struct{})
	go func() {
		defer close(dashDone)
		if err := dash.Run(dashCtx, cfg.Futuresflow.Name); err != nil {
			log.WithComponent("dashboard").WithError(err).Error("dashboard stopped")
		}
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := p.Stop(stopCtx); err != nil {
		log.WithError(err).Error("graceful shutdown finished with unsaved ticks")
	} else {
		log.Info("graceful shutdown completed")
	}
	dashCancel()
	<-dashDone
	cancel()

	log.Info("futuresflow stopped")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
