package main

import (
	"context"
	"flag"
	"net/http"
	"waterbills-backend/lib/configutil"
	"waterbills-backend/lib/serviceutil"
	"waterbills-backend/lib/sqliteutil"
	"waterbills-backend/lib/telemetry"
	"waterbills-backend/services/waterbilling"
	waterbillingdb "waterbills-backend/services/waterbilling/db"
)

type Config struct {
	Port      int                        `json:"port"`
	Database  string                     `json:"database"`
	Documents string                     `json:"documents"`
	Scrapers  waterbilling.ScraperConfig `json:"scrapers"`
}

func main() {
	verbose := flag.Bool("v", false, "enable debug logging")
	once := flag.Bool("once", false, "run a single scrape and print the result instead of serving")
	provider := flag.String("provider", "siapa", "provider for -once")
	user := flag.String("user", "", "username for -once")
	pass := flag.String("pass", "", "password for -once")
	flag.Parse()

	telemetry.InitSlog(*verbose)

	ctx := serviceutil.SignalContext()

	config, err := configutil.ReadConfig[Config]("config.json5")
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}

	database, err := sqliteutil.OpenDB(waterbillingdb.Schema, config.Database)
	if err != nil {
		serviceutil.Fatal("failed to open database", err)
	}

	docs, err := waterbilling.NewDocumentStore(config.Documents)
	if err != nil {
		serviceutil.Fatal("failed to open document store", err)
	}

	service := waterbilling.NewService(database, docs, config.Scrapers)

	if *once {
		runOnce(ctx, service, *provider, *user, *pass)
		return
	}

	t, err := telemetry.SetupFromEnv(ctx, "waterbill-server")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer t.Shutdown(context.Background())
	telemetry.InstrumentPerfStats(ctx)

	mux := http.NewServeMux()
	api := Api{service: service}
	mux.HandleFunc("POST /v1/billing/water/siapa", api.HandleSiapa)
	mux.HandleFunc("POST /v1/billing/water/sadm", api.HandleSadm)
	go serviceutil.StartHttpServer(config.Port, mux)

	<-ctx.Done()
}
