package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/GoldenFealla/AVOutputGo/internal/audiooutput"
)

// AudioSource is what the audio collectors sample on every scrape
type AudioSource interface {
	QueuedBytes() uint64
	Stats() audiooutput.Stats
}

// RegisterAudio registers the audio output collectors with reg
func RegisterAudio(reg prometheus.Registerer, src AudioSource) error {
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "audio_output_queued_bytes",
			Help: "Bytes buffered in the audio output and not yet read by the sink",
		}, func() float64 {
			return float64(src.QueuedBytes())
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audio_output_submitted_chunks_total",
			Help: "Total number of chunks submitted to the audio output",
		}, func() float64 {
			return float64(src.Stats().SubmittedChunks)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audio_output_submitted_bytes_total",
			Help: "Total number of bytes submitted to the audio output",
		}, func() float64 {
			return float64(src.Stats().SubmittedBytes)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audio_output_delivered_bytes_total",
			Help: "Total number of buffered bytes delivered to the sink",
		}, func() float64 {
			return float64(src.Stats().DeliveredBytes)
		}),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "audio_output_silence_bytes_total",
			Help: "Total number of silence bytes padded into sink reads",
		}, func() float64 {
			return float64(src.Stats().SilenceBytes)
		}),
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("metrics: registering collector failed: %w", err)
		}
	}
	return nil
}

// Serve exposes g on addr until ctx is done
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("serving metrics", zap.String("address", addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics: serving failed: %w", err)
	}
	return nil
}
