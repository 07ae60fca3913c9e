package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (defaults are used if omitted)")
	pretty := flag.Bool("pretty", false, "use a human-readable console log writer instead of JSON")
	flag.Parse()

	log := newLogger(*pretty)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("scheduler exited with error")
	}
}

// run wires up and drives one full scheduler lifetime: startup, the
// worker/timer/fast-timer/socket/monitor thread set, the optional HTTP
// introspection surface, and shutdown on SIGINT/SIGTERM — the same
// ownership shape as skynet_start's start()/skynet_start() pair (spec.md
// §4.8).
func run(cfg Config, log zerolog.Logger) error {
	log = log.With().Str("component", "main").Logger()

	tele, err := NewTelemetry(cfg.TelemetryEnabled)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tele.Shutdown(ctx)
	}()

	reg := NewRegistry()
	tele.Attach(reg)

	reg.RegisterConstructor(cfg.LogService, newLoggerService(log))
	reg.RegisterConstructor("echo", newEchoService)

	loggerCtx, err := reg.New(cfg.LogService, cfg.Logger)
	if err != nil {
		return fmt.Errorf("create logger service: %w", err)
	}
	reg.NameHandle(loggerCtx.Handle, loggerName)

	m := NewMonitor(cfg.Thread, nil, cfg.RecordFile, log, reg, tele, nil)
	m.SetProfile(cfg.Profile)

	if cfg.RecordFile == "" {
		if err := runBootstrap(m, cfg.Bootstrap); err != nil {
			drainLogger(reg)
			return err
		}
	}

	var wg sync.WaitGroup
	startThread := func(fn func()) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn()
		}()
	}

	startThread(func() { runLiveness(m) })
	startThread(func() { runTimer(m) })
	startThread(func() { runSocket(m) })
	startThread(func() { runFastTimer(m) })

	for i := 0; i < m.Count(); i++ {
		id := i
		startThread(func() {
			runWorker(workerParm{m: m, id: id, weight: m.weights[id]})
		})
	}

	if cfg.RecordFile != "" {
		startThread(func() {
			if err := runReplay(m, cfg.RecordFile); err != nil {
				log.Error().Err(err).Msg("replay failed")
			}
			m.mu.Lock()
			m.quit = true
			m.mu.Unlock()
			m.cond.Broadcast()
		})
	}

	var srv *http.Server
	if cfg.StatusAddr != "" {
		srv = newStatusServer(cfg.StatusAddr, m)
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("status server")
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				m.RaiseSighup()
				continue
			}
			log.Info().Str("signal", sig.String()).Msg("shutting down")
			m.mu.Lock()
			m.quit = true
			m.mu.Unlock()
			m.cond.Broadcast()
			m.timemu.Lock()
			m.timecond.Broadcast()
			m.timemu.Unlock()
			m.socket.Exit()
			return
		}
	}()

	wg.Wait()

	if srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
	m.Close()
	return nil
}

// newStatusServer builds the teacher-style /status and /health
// introspection endpoints (SPEC_FULL.md §11), plus a /debug/fast-time
// endpoint for exercising the simulated-time compression path out of
// band, mirroring the teacher's own /debug/crash-worker.
func newStatusServer(addr string, m *Monitor) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		m.timemu.Lock()
		fastTime := m.fastTime
		m.timemu.Unlock()
		probes := make([]map[string]uint64, len(m.probes))
		for i, p := range m.probes {
			s := p.snapshot()
			probes[i] = map[string]uint64{"handle": uint64(s.handle), "version": s.version}
		}
		status := map[string]interface{}{
			"run_id":        m.RunID.String(),
			"worker_count":  m.Count(),
			"sleep_workers": m.SleepCount(),
			"quit":          m.Quit(),
			"services":      m.reg.Total(),
			"fast_time":     fastTime,
			"probes":        probes,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	})

	mux.HandleFunc("/debug/fast-time", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		targetMs, onceAddMs := parseFastTimeParams(r)
		if err := m.RequestFastTime(targetMs, onceAddMs); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	})

	return &http.Server{Addr: addr, Handler: mux}
}

func parseFastTimeParams(r *http.Request) (target, onceAdd uint64) {
	q := r.URL.Query()
	fmt.Sscanf(q.Get("target_ms"), "%d", &target)
	fmt.Sscanf(q.Get("once_add_ms"), "%d", &onceAdd)
	return
}
