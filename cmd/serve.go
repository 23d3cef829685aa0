package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/shopsim/shopsim/sim/observer"
)

var (
	serveAddr     string        // Listen address for spectators
	serveInterval time.Duration // Pause between ticks
	serveTicks    int64         // Stop after this many ticks; 0 runs until interrupted
	serveGrid     bool          // Include the rendered floor in every frame
)

// serveCmd runs the simulation and streams frames to websocket spectators
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the simulation and stream it to local websocket spectators",
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		cfg := mustLoadConfig(cmd)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		sess, err := newSession(ctx, cfg, !noLLM)
		if err != nil {
			return err
		}
		defer func() {
			if err := sess.Close(); err != nil {
				logrus.Errorf("closing trace sinks: %v", err)
			}
		}()

		hub := observer.NewHub()
		httpSrv := &http.Server{
			Addr:              serveAddr,
			Handler:           observer.NewServer(hub).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.Errorf("observer server: %v", err)
				stop()
			}
		}()
		logrus.Infof("Streaming on ws://%s/ws (state at http://%s/state)", serveAddr, serveAddr)

		var reloads chan Config
		if reloadConfig {
			reloads = make(chan Config, 1)
			err := watchConfig(ctx, configPath, func(c Config) {
				select {
				case reloads <- c:
				default:
					logrus.Warn("config reload still pending; skipping this change")
				}
			})
			if err != nil {
				return err
			}
		}

		publishLoop(ctx, sess, hub, observer.NewCapturer(serveGrid), reloads, serveTicks, serveInterval, verbose)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logrus.Warnf("observer shutdown: %v", err)
		}
		sess.report(context.Background())
		if d := hub.Dropped(); d > 0 {
			logrus.Warnf("dropped %d frames for slow spectators", d)
		}
		return nil
	},
}

// publishLoop ticks the simulation and publishes a frame after each tick.
// Configs arriving on reloads are applied between ticks. n <= 0 runs until
// ctx is done.
func publishLoop(ctx context.Context, sess *session, hub *observer.Hub, capt *observer.Capturer, reloads <-chan Config, n int64, pause time.Duration, verbose bool) {
	if pause <= 0 {
		pause = 250 * time.Millisecond
	}
	ticker := time.NewTicker(pause)
	defer ticker.Stop()
	for i := int64(0); n <= 0 || i < n; i++ {
		sess.Sim.Tick(false, verbose)
		if err := hub.Publish(capt.Capture(sess.Sim)); err != nil {
			logrus.Warnf("publishing frame: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case cfg := <-reloads:
			if err := sess.retune(cfg); err != nil {
				sess.Sim.AddLog(fmt.Sprintf("Config reload failed: %v", err))
			}
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8787", "Listen address for spectators (loopback clients only)")
	serveCmd.Flags().DurationVar(&serveInterval, "interval", 250*time.Millisecond, "Pause between ticks")
	serveCmd.Flags().Int64Var(&serveTicks, "ticks", 0, "Stop after this many ticks (0 runs until interrupted)")
	serveCmd.Flags().BoolVar(&serveGrid, "grid", true, "Include the rendered floor in every frame")
	serveCmd.Flags().BoolVar(&verbose, "verbose", false, "Log the source and topic of every line")
	serveCmd.Flags().BoolVar(&reloadConfig, "reload", false, "Apply simulation and dialogue changes when the config file is saved")
	rootCmd.AddCommand(serveCmd)
}
