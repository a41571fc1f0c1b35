package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"github.com/example/field-dispatch/internal/auditlog"
	"github.com/example/field-dispatch/internal/ingest"
)

// The auditor tails the acceptance-event topic and mirrors every entry
// into the redis audit log, keeping a queryable copy near the reporting
// path even when the primary store lives in postgres.

var (
	eventsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auditor_events_consumed_total",
		Help: "Total acceptance events consumed",
	})
	eventsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auditor_events_invalid_total",
		Help: "Total invalid events received",
	})
	mirrorWrites = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auditor_mirror_writes_total",
		Help: "Total successful mirror appends",
	})
	mirrorErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auditor_mirror_errors_total",
		Help: "Total mirror append errors",
	})
)

func init() {
	prometheus.MustRegister(eventsConsumed, eventsInvalid, mirrorWrites, mirrorErrors)
}

func main() {
	// allow some flags for local runs
	var metricsAddr string
	flag.StringVar(&metricsAddr, "metrics-addr", ":2112", "address to serve prometheus metrics on")
	flag.Parse()

	brokersEnv := os.Getenv("KAFKA_BROKERS")
	if brokersEnv == "" {
		brokersEnv = os.Getenv("KAFKA_BROKER")
	}
	brokers := []string{}
	if brokersEnv != "" {
		for _, b := range strings.Split(brokersEnv, ",") {
			if s := strings.TrimSpace(b); s != "" {
				brokers = append(brokers, s)
			}
		}
	} else {
		brokers = []string{"localhost:9092"}
	}

	topic := os.Getenv("KAFKA_TOPIC")
	if topic == "" {
		topic = "acceptance-events"
	}
	group := os.Getenv("KAFKA_GROUP")
	if group == "" {
		group = "field-dispatch-auditor"
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rc := redis.NewClient(&redis.Options{Addr: redisAddr})
	mirror := auditlog.NewRedisLogFromClient(rc, os.Getenv("REDIS_AUDIT_KEY"))

	// start metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); w.Write([]byte("ok")) })
		mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
			// readiness: check redis connectivity
			if err := rc.Ping(r.Context()).Err(); err != nil {
				http.Error(w, "redis not ready", 503)
				return
			}
			w.WriteHeader(200)
			w.Write([]byte("ready"))
		})
		log.Printf("metrics/health listening on %s", metricsAddr)
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Printf("metrics server stopped: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	r := kafka.NewReader(kafka.ReaderConfig{Brokers: brokers, Topic: topic, GroupID: group, MinBytes: 10e3, MaxBytes: 10e6})
	defer func() {
		_ = r.Close()
		_ = rc.Close()
	}()

	log.Printf("auditor listening topic=%s brokers=%v group=%s", topic, brokers, group)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Println("shutting down auditor")
				return
			}
			log.Printf("kafka read error: %v; backing off %s", err, backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		// reset backoff on success
		backoff = time.Second

		eventsConsumed.Inc()

		var ev ingest.AcceptanceEvent
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			eventsInvalid.Inc()
			log.Printf("invalid event: %v", err)
			continue
		}
		if ev.JobID == "" || ev.Entry.ID == "" {
			eventsInvalid.Inc()
			log.Printf("event missing job or entry id: %s", string(m.Value))
			continue
		}

		if err := mirrorWithRetry(ctx, mirror, ev, 3, 200*time.Millisecond); err != nil {
			mirrorErrors.Inc()
			log.Printf("mirror append failed for job=%s entry=%s: %v", ev.JobID, ev.Entry.ID, err)
			continue
		}
		mirrorWrites.Inc()
	}
}

// mirrorWithRetry appends the entry via the auditlog interface with retry/backoff.
func mirrorWithRetry(ctx context.Context, mirror auditlog.Log, ev ingest.AcceptanceEvent, attempts int, delay time.Duration) error {
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := mirror.Append(ctx, ev.JobID, ev.Entry); err != nil {
			lastErr = err
			if i == attempts-1 {
				return lastErr
			}
			time.Sleep(delay)
			delay *= 2
			continue
		}
		return nil
	}
	return lastErr
}
