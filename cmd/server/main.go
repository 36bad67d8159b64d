package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/praxishq/praxis/migrations"
	"github.com/praxishq/praxis/modules/core/handlers"
	"github.com/praxishq/praxis/modules/core/infrastructure/persistence"
	"github.com/praxishq/praxis/pkg/application"
	"github.com/praxishq/praxis/pkg/composables"
	"github.com/praxishq/praxis/pkg/configuration"
	"github.com/praxishq/praxis/pkg/eventbus"
	"github.com/praxishq/praxis/pkg/metrics"
	"github.com/praxishq/praxis/pkg/server"
)

func main() {
	conf := configuration.Use()
	log := conf.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, conf.Database.ConnectionString())
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	if err := migrations.Run(ctx, pool); err != nil {
		log.WithError(err).Fatal("failed to apply migrations")
	}

	bus := eventbus.New(eventbus.Config{Enabled: conf.Events.Enabled, Logger: log})

	app, err := application.New(application.Options{
		Pool:   pool,
		Bus:    bus,
		Logger: log,
		Events: conf.Events,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}

	tenants := persistence.NewTenantRepository()
	subscriptions := persistence.NewSubscriptionRepository()

	handlers.NewAuditHandler(log).Register(bus)
	handlers.NewBillingHandler(subscriptions, conf.TrialDuration, log).Register(bus)
	handlers.NewVerificationHandler(tenants, log).Register(bus)

	app.RegisterControllers(metrics.NewPrometheusController(""))

	// Listeners and repositories resolve the pool from the context when
	// no transaction is bound.
	runCtx := composables.WithPool(ctx, pool)

	g, runCtx := errgroup.WithContext(runCtx)
	g.Go(func() error { return app.RunPipeline(runCtx) })
	g.Go(func() error { return server.NewOpsServer(app).Start(runCtx, conf.OpsSocketAddress) })

	log.WithField("ops", conf.OpsSocketAddress).Info("core started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Error("core stopped with error")
		os.Exit(1)
	}
	log.Info("core stopped")
}
