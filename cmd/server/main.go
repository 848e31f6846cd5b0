package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"slabpool/domain/event"
	"slabpool/infra/kafka"
	"slabpool/infra/metrics"
	"slabpool/infra/overflow"
	"slabpool/infra/ring"
	"slabpool/infra/sequence"
	"slabpool/jobs/drainer"
	"slabpool/pool"
	"slabpool/service"
)

func main() {
	brokers := []string{"localhost:9092"}

	// ---------------- Overflow journal ----------------

	journal, err := overflow.Open("./overflow")
	if err != nil {
		log.Fatalf("overflow journal init failed: %v", err)
	}
	defer journal.Close()

	// ---------------- Sequencer ----------------

	seqGen := sequence.New(0)

	last, err := journal.MaxSeq()
	if err != nil {
		log.Fatalf("journal seq recovery failed: %v", err)
	}
	seqGen.Reset(last)

	// ---------------- Memory ----------------

	slots, err := pool.New[event.Event](1<<16, func(e *event.Event) {
		e.Reset()
	})
	if err != nil {
		log.Fatalf("pool init failed: %v", err)
	}
	defer slots.Close()

	handoff := ring.New[*pool.Handle[event.Event]](1 << 12)

	// ---------------- Metrics ----------------

	reg := prometheus.NewRegistry()
	mx := metrics.NewCollector(reg, slots.Stats, handoff.Len)

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		if err := http.ListenAndServe(":9100", nil); err != nil {
			log.Fatalf("metrics server exited: %v", err)
		}
	}()

	// ---------------- Pipeline ----------------

	producer := kafka.NewProducer(kafka.WriterConfig{
		Brokers: brokers,
		Topic:   "events.out",
	})
	defer producer.Close()

	pipe := service.NewPipeline(slots, handoff, journal, producer, seqGen, mx)

	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pipe.Start(ctx)

	// ---------------- Background jobs ----------------

	dr, err := drainer.New(journal, slots, brokers, "events.out",
		250*time.Millisecond, mx)
	if err != nil {
		log.Fatalf("drainer init failed: %v", err)
	}
	defer dr.Close()
	dr.Start(ctx)

	// ---------------- Ingress ----------------

	consumer := kafka.NewConsumer(brokers, "events.in", "slabpool")
	defer consumer.Close()

	log.Println("[server] ingesting events.in -> events.out, metrics on :9100")

	if err := consumer.Run(ctx, func(key, value []byte) error {
		_, err := pipe.Submit(key, value)
		return err
	}); err != nil {
		log.Fatalf("consumer exited: %v", err)
	}

	cancel()
	<-pipe.Done()
}
