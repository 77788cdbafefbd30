package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/taoyao-code/lens-broker/internal/bridge"
	cfgpkg "github.com/taoyao-code/lens-broker/internal/config"
	"github.com/taoyao-code/lens-broker/internal/health"
	"github.com/taoyao-code/lens-broker/internal/httpserver"
	"github.com/taoyao-code/lens-broker/internal/lenssim"
	"github.com/taoyao-code/lens-broker/internal/logging"
	"github.com/taoyao-code/lens-broker/internal/metrics"
	"github.com/taoyao-code/lens-broker/internal/protocol/lens"
	"github.com/taoyao-code/lens-broker/internal/serialport"
	"github.com/taoyao-code/lens-broker/internal/syncpulse"
)

func main() {
	// 1) 加载配置
	cfg, err := cfgpkg.Load("")
	if err != nil {
		panic(err)
	}
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	// 2) 初始化日志
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)
	log := zap.L()

	rc := bridge.FromConfig(cfg.Bridge)
	log.Info("lens broker starting",
		zap.String("broker", cfg.Broker.Device),
		zap.String("lens", cfg.Lens.Device),
		zap.Bool("emulate_hardware", rc.EmulateHardware),
		zap.Bool("skip_firmware_touch", rc.SkipFirmwareTouch),
		zap.Bool("force_firmware_fix", rc.ForceFirmwareFix),
		zap.Bool("skip_flash_clean", rc.SkipFlashClean))

	// 3) 指标
	reg := metrics.NewRegistry()
	bm := metrics.NewBridgeMetrics(reg)

	// 4) 串口：打开失败直接退出
	brokerPort, err := serialport.OpenBroker(cfg.Broker)
	if err != nil {
		log.Fatal("open broker port", zap.String("device", cfg.Broker.Device), zap.Error(err))
	}

	var lensPort *serialport.LensPort
	if cfg.LensRequired() {
		lensPort, err = openLens(cfg.Lens, log)
		if err != nil {
			_ = brokerPort.Close()
			log.Fatal("open lens port", zap.String("device", cfg.Lens.Device), zap.Error(err))
		}
		if cfg.Lens.Wake {
			if err := lensPort.Wake(time.Sleep); err != nil {
				log.Warn("lens wake sequence failed", zap.Error(err))
			}
		}
	}

	gate := logging.NewFrameGate(log, rc.VerboseFirmwareLogging)
	flag := &syncpulse.Flag{}
	opts := bridge.Options{
		Runtime:         rc,
		Flag:            flag,
		ResponseTimeout: cfg.Lens.ResponseTimeout,
		ParamTimeout:    cfg.Lens.ParamTimeout,
		Logger:          log,
		Gate:            gate,
		Metrics:         bm,
	}
	pulser := &syncpulse.Pulser{
		Flag:     flag,
		Period:   cfg.SyncPulse.Period,
		Emulated: rc.EmulateHardware,
		Logger:   log,
		Metrics:  bm,
	}
	if lensPort != nil {
		opts.Link = lens.NewLink(lensPort, cfg.Lens.ByteTimeout, gate, bm)
		pulser.Line = lensPort
	}
	loop := bridge.New(brokerPort, opts)

	ready := health.New()
	ready.SetPortsOpen(true)
	agg := health.NewAggregator(ready, health.NewLinkChecker(loop, rc.EmulateHardware))

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup

	// 5) 桥接循环与同步脉冲
	wg.Add(2)
	go func() {
		defer wg.Done()
		ready.SetLoopRunning(true)
		defer ready.SetLoopRunning(false)
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("bridge loop stopped", zap.Error(err))
		}
	}()
	go func() {
		defer wg.Done()
		pulser.Run(ctx)
	}()

	// 6) HTTP 服务
	var httpSrv *httpserver.Server
	if cfg.HTTP.Enable {
		var mh http.Handler
		if cfg.Metrics.Enable {
			mh = metrics.Handler(reg)
		}
		httpSrv = httpserver.New(httpserver.Options{
			Config:      cfg.HTTP,
			MetricsPath: cfg.Metrics.Path,
			Metrics:     mh,
			Ready:       ready,
			Health:      agg,
			Logger:      log.Named("http"),
		})
		go func() {
			if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("http server error", zap.Error(err))
			}
		}()
	}

	// 信号处理，优雅关闭
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("shutting down")

	cancel()
	// 关闭串口以解除阻塞读
	_ = brokerPort.Close()
	if lensPort != nil {
		_ = lensPort.Close()
	}
	ready.SetPortsOpen(false)

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	wg.Wait()
}

// openLens 按驱动打开镜头链路；sim 时挂接软件镜头
func openLens(cfg cfgpkg.LensConfig, log *zap.Logger) (*serialport.LensPort, error) {
	if cfg.Driver == "sim" {
		mem := serialport.NewMemPort()
		lenssim.New(mem, log.Named("lenssim"))
		log.Info("using simulated lens")
		return serialport.NewLensPort(mem), nil
	}
	return serialport.OpenLens(cfg)
}
