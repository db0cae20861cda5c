package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dtran2108/collabo-speak/internal/audio"
	"github.com/dtran2108/collabo-speak/internal/config"
	"github.com/dtran2108/collabo-speak/internal/evaluation"
	"github.com/dtran2108/collabo-speak/internal/gdrive"
	"github.com/dtran2108/collabo-speak/internal/ingest"
	"github.com/dtran2108/collabo-speak/internal/llm"
	"github.com/dtran2108/collabo-speak/internal/persistence"
	"github.com/dtran2108/collabo-speak/internal/persona"
	"github.com/dtran2108/collabo-speak/internal/server"
	"github.com/dtran2108/collabo-speak/internal/session"
	"github.com/dtran2108/collabo-speak/internal/signaling"
	"github.com/dtran2108/collabo-speak/internal/storage"
	"github.com/dtran2108/collabo-speak/internal/transport"
)

const micFramesPerBuffer = 1024

// transportWriter feeds mic frames into the realtime connection. Frames
// captured while no session is active are dropped, not buffered.
type transportWriter struct {
	ws *transport.WebSocket
}

func (w transportWriter) Write(p []byte) (int, error) {
	if err := w.ws.Send(p); err != nil {
		if errors.Is(err, transport.ErrNotConnected) {
			return len(p), nil
		}
		return 0, err
	}
	return len(p), nil
}

func main() {
	log.Println("collabo-speak: starting")

	configPath := os.Getenv(config.EnvPrefix + "CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, warnings, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	store, err := storage.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	roster := persona.NewRoster(cfg.Personas)
	hub := server.NewHub(roster)

	gate := audio.NewGate()
	defer gate.Terminate()
	if err := gate.Request(cfg.MicSampleRate, micFramesPerBuffer); err != nil {
		log.Printf("warning: microphone unavailable, sessions cannot start: %v", err)
	}

	ws := transport.NewWebSocket()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mirrors := persistence.MultiMirror{storage.NewWriter(cfg.TranscriptsDir)}
	if cfg.GDriveFolderID != "" {
		drive, driveErr := gdrive.NewMirror(ctx, cfg.GoogleCredentialsFile, cfg.GDriveFolderID)
		if driveErr != nil {
			log.Printf("warning: drive mirror disabled: %v", driveErr)
		} else {
			mirrors = append(mirrors, drive)
		}
	}

	records := persistence.NewRecordClient(cfg.RecordsURL, cfg.APIToken)
	persister := persistence.NewPersister(
		persistence.NewBlobClient(cfg.BlobUploadURL, cfg.APIToken),
		records,
		mirrors,
	)

	controller := session.NewController(session.Deps{
		Gate:        gate,
		Credentials: signaling.NewClient(cfg.SignalingURL, cfg.APIToken),
		Transport:   ws,
		Ingestor:    ingest.New(roster),
		Persister:   persister,
		Records:     records,
		Evaluator:   buildEvaluator(cfg),
		Archive:     store,
		Hub:         hub,
		AgentID:     cfg.AgentID,
		UserID:      cfg.UserID,
		Mode:        signaling.Mode(cfg.Mode),
		WarnAfter:   cfg.ParsedWarnAfter(),
	})

	if gate.Granted() {
		mic, micErr := audio.NewMic(cfg.MicSampleRate, micFramesPerBuffer)
		if micErr != nil {
			log.Printf("warning: microphone open failed: %v", micErr)
		} else if err := mic.Start(); err != nil {
			log.Printf("warning: microphone start failed: %v", err)
		} else {
			log.Printf("microphone started at %d Hz", cfg.MicSampleRate)
			go streamMicWithRetry(ctx, mic, transportWriter{ws: ws}, time.Sleep, log.Printf)
			defer func() { _ = mic.Stop() }()
		}
	}

	controls := server.Controls{
		Start:            controller.Start,
		End:              controller.End,
		Cancel:           controller.Cancel,
		SubmitReflection: controller.SubmitReflection,
		Reset:            controller.Reset,
		Snapshot:         controller.Snapshot,
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Serve(ctx, cfg.ListenAddr, hub, store, controls)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sig:
		log.Println("collabo-speak: shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		if err := controller.End(shutdownCtx); err != nil {
			log.Printf("warning: end session on shutdown failed: %v", err)
		}

		cancel()
		if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http shutdown error: %v", err)
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
		}
	}
}

// buildEvaluator prefers a directly configured model; otherwise the
// backend evaluation endpoint handles the call.
func buildEvaluator(cfg config.Config) session.Evaluator {
	if cfg.EvalModel != "" {
		provider, model := cfg.SplitEvalModel()
		key := map[string]string{
			"openai":    cfg.OpenAIAPIKey,
			"anthropic": cfg.AnthropicAPIKey,
			"gemini":    cfg.GeminiAPIKey,
		}[provider]

		client, err := llm.NewClient(provider, key, model)
		if err != nil {
			log.Printf("warning: eval model unavailable, using the evaluation endpoint: %v", err)
		} else {
			return evaluation.NewModel(client)
		}
	}
	return evaluation.NewEndpoint(cfg.EvaluationURL, cfg.APIToken)
}

type micStreamer interface {
	Stream(ctx context.Context, w io.Writer) error
}

func streamMicWithRetry(
	ctx context.Context,
	streamer micStreamer,
	writer io.Writer,
	wait func(time.Duration),
	logf func(string, ...any),
) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := streamer.Stream(ctx, writer)
		if err == nil || ctx.Err() != nil {
			return
		}

		if strings.Contains(strings.ToLower(err.Error()), "overflow") {
			logf("warning: mic input overflow, restarting stream")
			wait(250 * time.Millisecond)
			continue
		}

		logf("mic stream error: %v", err)
		return
	}
}
