package application

import (
	"context"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/praxishq/praxis/pkg/configuration"
	"github.com/praxishq/praxis/pkg/eventbus"
	"github.com/praxishq/praxis/pkg/events"
)

// Controller registers an operational HTTP surface on the ops router.
type Controller interface {
	Key() string
	Register(r *mux.Router)
}

type Options struct {
	Pool   *pgxpool.Pool
	Bus    eventbus.EventBus
	Logger *logrus.Logger
	Events configuration.EventsOptions
}

// Application bundles the durable event pipeline around one database
// pool and one bus. Modules wire their listeners onto Bus() and their
// ops surfaces through RegisterControllers.
type Application struct {
	pool        *pgxpool.Pool
	bus         eventbus.EventBus
	logger      *logrus.Logger
	store       *events.PgStore
	publisher   *events.Publisher
	sweeper     *events.Sweeper
	cleaner     *events.Cleaner
	inspector   *events.Inspector
	controllers []Controller
}

func New(opts Options) (*Application, error) {
	store, err := events.NewPgStore(opts.Pool)
	if err != nil {
		return nil, err
	}
	publisher, err := events.NewPublisher(opts.Bus, store, opts.Events.MaxRetries)
	if err != nil {
		return nil, err
	}
	sweeper, err := events.NewSweeper(store, opts.Bus, events.SweeperOptions{
		Interval:          opts.Events.SweepInterval,
		BatchSize:         opts.Events.SweepBatch,
		DefaultMaxRetries: opts.Events.MaxRetries,
		SingleActive:      opts.Events.SingleActive,
		LockTTL:           opts.Events.LockTTL,
		LastErrorMaxLen:   opts.Events.LastErrorMaxBytes,
		Logger:            logrus.NewEntry(opts.Logger),
	})
	if err != nil {
		return nil, err
	}
	cleaner, err := events.NewCleaner(store, events.CleanerOptions{
		Enabled:   opts.Events.CleanerEnabled,
		Interval:  opts.Events.CleanerInterval,
		Retention: opts.Events.Retention,
		Logger:    logrus.NewEntry(opts.Logger),
	})
	if err != nil {
		return nil, err
	}
	inspector, err := events.NewInspector(store, opts.Bus)
	if err != nil {
		return nil, err
	}

	return &Application{
		pool:      opts.Pool,
		bus:       opts.Bus,
		logger:    opts.Logger,
		store:     store,
		publisher: publisher,
		sweeper:   sweeper,
		cleaner:   cleaner,
		inspector: inspector,
	}, nil
}

func (a *Application) Pool() *pgxpool.Pool          { return a.pool }
func (a *Application) Bus() eventbus.EventBus       { return a.bus }
func (a *Application) Logger() *logrus.Logger       { return a.logger }
func (a *Application) Store() events.Store          { return a.store }
func (a *Application) Publisher() *events.Publisher { return a.publisher }
func (a *Application) Inspector() *events.Inspector { return a.inspector }

func (a *Application) RegisterControllers(controllers ...Controller) {
	a.controllers = append(a.controllers, controllers...)
}

func (a *Application) Controllers() []Controller {
	return a.controllers
}

// RunPipeline runs the sweeper and cleaner until the context is
// cancelled. Returns the first non-cancellation error.
func (a *Application) RunPipeline(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.sweeper.Run(ctx) })
	g.Go(func() error { return a.cleaner.Run(ctx) })
	return g.Wait()
}
