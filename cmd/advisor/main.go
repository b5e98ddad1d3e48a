// README: Entry point; loads config, wires services, runs the Slack listener and status server.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"traveladvisor/internal/ai"
	"traveladvisor/internal/chat"
	"traveladvisor/internal/config"
	httptransport "traveladvisor/internal/http"
	"traveladvisor/internal/maps"
	"traveladvisor/internal/messages"
	"traveladvisor/internal/modules/advisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	catalog, err := messages.NewCatalog(cfg.Messages.File)
	if err != nil {
		log.Fatalf("messages: %v", err)
	}

	geocode, err := maps.NewGeocodeService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("geocode init: %v", err)
	}
	var resolver advisor.LocationResolver = geocode
	if cfg.Redis.Addr != "" {
		resolver = maps.NewCachingResolver(geocode, maps.NewRedis(cfg.Redis.Addr))
	}

	distance, err := maps.NewDistanceService(cfg.Maps.APIKey)
	if err != nil {
		log.Fatalf("distance matrix init: %v", err)
	}

	var classifier advisor.IntentClassifier
	if cfg.AI.GeminiKey != "" {
		gemini, err := ai.NewGeminiClassifier(ctx, cfg.AI.GeminiKey)
		if err != nil {
			log.Fatalf("gemini init: %v", err)
		}
		defer gemini.Close()
		classifier = gemini
	} else {
		log.Print("GEMINI_API_KEY not set; running without intent classification")
	}

	transport, err := chat.NewSlackAdapter(chat.SlackOpts{
		BotToken: cfg.Slack.BotToken,
		AppToken: cfg.Slack.AppToken,
	})
	if err != nil {
		log.Fatalf("slack init: %v", err)
	}
	if err := transport.Connect(ctx); err != nil {
		log.Fatalf("slack connect: %v", err)
	}
	defer transport.Close()

	store := advisor.NewStore()
	scheduler := advisor.NewScheduler(store, distance, transport, catalog, cfg.Recheck)
	engine := advisor.NewService(advisor.Deps{
		Store:      store,
		Resolver:   resolver,
		Metrics:    distance,
		Notifier:   transport,
		Identity:   transport,
		Classifier: classifier,
		Scheduler:  scheduler,
		Catalog:    catalog,
	})

	inbound, err := transport.Listen(ctx)
	if err != nil {
		log.Fatalf("slack listen: %v", err)
	}

	handler := httptransport.NewServer(httptransport.ServerDeps{
		Store:     store,
		StartedAt: time.Now(),
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler.Routes()}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("travel-advisor running (recheck every %s, budget %d checks)",
		cfg.Recheck.Delay, cfg.Recheck.MaxChecks())
	engine.Run(ctx, inbound)
}
