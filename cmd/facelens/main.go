package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/zsiec/facelens/internal/capture"
	"github.com/zsiec/facelens/internal/classifier"
	"github.com/zsiec/facelens/internal/config"
	"github.com/zsiec/facelens/internal/cropstore"
	"github.com/zsiec/facelens/internal/detection"
	"github.com/zsiec/facelens/internal/detector"
	"github.com/zsiec/facelens/internal/frame"
	"github.com/zsiec/facelens/internal/geometry"
	"github.com/zsiec/facelens/internal/health"
	"github.com/zsiec/facelens/internal/logger"
	"github.com/zsiec/facelens/internal/overlay"
	"github.com/zsiec/facelens/internal/pixfmt"
	"github.com/zsiec/facelens/internal/server"
	"github.com/zsiec/facelens/internal/sink"
	"github.com/zsiec/facelens/pkg/version"
)

func main() {
	var (
		configPath  string
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "configs/default.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Println(version.GetInfo().String())
		os.Exit(0)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithField("version", version.GetInfo().Short()).Info("Starting facelens")
	log.WithField("config_path", configPath).Debug("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
	}()

	if cfg.Metrics.Enabled {
		go startMetricsServer(cfg.Metrics, log)
	}

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Fatal("facelens exited with error")
	}
	log.Info("Shutdown complete")
}

// run wires the pipeline and blocks until ctx is done.
func run(ctx context.Context, cfg *config.Config, log *logrus.Logger) error {
	chroma, err := pixfmt.ParseChromaMode(cfg.Pipeline.ChromaMode)
	if err != nil {
		return err
	}
	dcfg, err := detectionConfig(cfg.Pipeline)
	if err != nil {
		return err
	}

	det, err := detector.NewPigo(cfg.Detector, logger.FromLogrus(log, "detector"))
	if err != nil {
		return fmt.Errorf("detector: %w", err)
	}

	surface := overlay.NewHeadlessSurface(cfg.Pipeline.DisplayWidth, cfg.Pipeline.DisplayHeight)
	renderer, err := overlay.NewRenderer(surface, dcfg.Metadata.Size(), overlay.DefaultStyle())
	if err != nil {
		return err
	}
	go surface.Run(ctx, renderer)

	// The renderer goes first so the overlay updates before slower sinks.
	publishers := []detection.Publisher{renderer}
	opts := []detection.Option{
		detection.WithLogger(logger.FromLogrus(log, "pipeline")),
		detection.WithContext(ctx),
	}

	if cfg.Classifier.Enabled {
		cls, err := classifier.NewRemote(cfg.Classifier, logger.FromLogrus(log, "classifier"))
		if err != nil {
			return fmt.Errorf("classifier: %w", err)
		}
		opts = append(opts, detection.WithClassifier(cls))
		log.WithFields(logrus.Fields{
			"endpoint": cfg.Classifier.Endpoint,
			"labels":   len(cls.Labels()),
		}).Info("Classifier enabled")
	}

	var crops *cropstore.Store
	if cfg.Crops.Enabled {
		crops, err = cropstore.New(cfg.Crops, logger.FromLogrus(log, "cropstore"))
		if err != nil {
			return fmt.Errorf("crop store: %w", err)
		}
		opts = append(opts, detection.WithCropSaver(crops))
	}

	var redisSink *sink.Redis
	if cfg.Sink.Enabled {
		client := sink.NewRedisClient(cfg.Redis)
		defer func() {
			if err := client.Close(); err != nil {
				log.WithError(err).Error("Failed to close Redis connection")
			}
		}()
		// The sink is best effort; an unreachable Redis only degrades health.
		if err := client.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("Redis is not reachable, detection sets will not be stored until it is")
		} else {
			log.Info("Connected to Redis successfully")
		}
		redisSink = sink.NewRedis(client, cfg.Sink, logger.FromLogrus(log, "sink"))
		go redisSink.Run(ctx)
		publishers = append(publishers, redisSink)
	}

	opts = append(opts, detection.WithPublishers(publishers...))
	orch, err := detection.New(det, dcfg, opts...)
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}
	defer orch.Stop()

	srv := server.New(&cfg.Server, log, orch, renderer, surface)
	srv.Health().SetCheckTimeout(health.DefaultCheckTimeout)
	srv.Health().Register(health.NewPipelineChecker(orch.Admission(), cfg.Pipeline.StallThreshold))
	srv.Health().Register(health.NewMemoryChecker(uint64(cfg.Server.MemoryLimitMB) << 20))
	srv.AddStats("log_sampling", func() interface{} { return orch.LogSampling() })
	if crops != nil {
		srv.Health().Register(health.NewDirChecker("crops", cfg.Crops.Dir))
		srv.AddStats("crops", func() interface{} { return map[string]int{"saved": crops.Count()} })
	}
	if redisSink != nil {
		srv.Health().Register(health.NewRedisChecker(redisSink.Client()))
		srv.AddStats("sink", func() interface{} { return redisSink.Stats() })
	}

	src, err := capture.New(cfg.Capture, chroma, logger.FromLogrus(log, "capture"))
	if err != nil {
		return fmt.Errorf("capture: %w", err)
	}
	go func() {
		err := src.Run(ctx, func(f *frame.Frame) { orch.HandleFrame(f) })
		if err != nil {
			log.WithError(err).Error("Capture stopped")
		}
	}()

	log.WithFields(logrus.Fields{
		"capture":  cfg.Capture.Source,
		"analysis": fmt.Sprintf("%dx%d", dcfg.Metadata.Width, dcfg.Metadata.Height),
		"display":  fmt.Sprintf("%dx%d", cfg.Pipeline.DisplayWidth, cfg.Pipeline.DisplayHeight),
		"chroma":   chroma.String(),
	}).Info("Pipeline started")

	return srv.Start(ctx)
}

// detectionConfig maps the pipeline section onto orchestrator settings.
func detectionConfig(p config.PipelineConfig) (detection.Config, error) {
	detRot, err := frame.ParseRotation(p.DetectorRotation)
	if err != nil {
		return detection.Config{}, fmt.Errorf("detector rotation: %w", err)
	}

	dcfg := detection.Config{
		Metadata: detection.Metadata{
			Width:    p.AnalysisWidth,
			Height:   p.AnalysisHeight,
			Format:   detection.PixelFormatNV21,
			Rotation: detRot,
		},
		CropRotation: detection.CropRotationMode(p.CropRotation),
		DefaultLabel: p.DefaultLabel,
	}
	dcfg.FixedRotation, err = frame.ParseRotation(p.FixedRotation)
	if err != nil {
		return detection.Config{}, fmt.Errorf("fixed rotation: %w", err)
	}
	if err := (geometry.Size{Width: p.DisplayWidth, Height: p.DisplayHeight}).Validate(); err != nil {
		return detection.Config{}, fmt.Errorf("display: %w", err)
	}
	return dcfg, nil
}

// startMetricsServer starts the Prometheus metrics server
func startMetricsServer(cfg config.MetricsConfig, log *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.WithField("addr", addr).Info("Starting metrics server")

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.WithError(err).Error("Metrics server error")
	}
}
