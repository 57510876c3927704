package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crewplan.org/internal/audit"
	"crewplan.org/internal/httpapi"
	"crewplan.org/internal/obs"
	"crewplan.org/internal/rbac"
	"crewplan.org/internal/store/pg"
	"crewplan.org/internal/workflow"
)

var (
	version = "0.3.1"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Persistence: PostgreSQL when a DSN is configured, otherwise the
	// in-memory store with a log-backed audit sink (local development).
	var (
		db        *sql.DB
		wfStore   workflow.Store
		sink      audit.Sink
		auditLog  audit.Querier
		principal rbac.PrincipalStore
	)
	if dsn := os.Getenv("CREWPLAN_PG_DSN"); dsn != "" {
		store, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db = store.DB()
		wfStore = store
		sink = store
		auditLog = store
		principal = store
	} else {
		wfStore = workflow.NewMemoryStore()
		sink = audit.LogSink{}
	}

	trail := audit.NewWriter(sink)

	resolver, err := rbac.NewResolver(rbac.DefaultCatalogue(), trail)
	if err != nil {
		log.Fatalf("rbac resolver: %v", err)
	}

	engine, err := workflow.NewEngine(workflow.DefaultRegistry(), wfStore, resolver,
		workflow.WithRecorder(trail))
	if err != nil {
		log.Fatalf("workflow engine: %v", err)
	}

	deps := httpapi.Deps{
		Engine:   engine,
		Resolver: resolver,
		Trail:    trail,
		AuditLog: auditLog,
	}
	if principal != nil {
		directory, err := rbac.NewDirectory(principal)
		if err != nil {
			log.Fatalf("principal directory: %v", err)
		}
		deps.Directory = directory
	}

	api := httpapi.New(httpapi.ReadyProbe{DB: db}, version, deps)

	handler := httpapi.Logging(
		httpapi.SecurityHeaders(
			httpapi.CORS(
				httpapi.MaxBodyBytes(
					httpapi.RateLimit(api.Handler(), 50, 25),
					1<<20))))

	srv := &http.Server{
		Addr:              ":8080",
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting crewplan-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()
	obs.SetReady(true)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")
	obs.SetReady(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
