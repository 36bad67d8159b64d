package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/praxishq/praxis/pkg/application"
)

// OpsServer serves the operational surface: health and whatever
// controllers modules registered (metrics, pipeline inspection). It is
// not a business API.
type OpsServer struct {
	Controllers []application.Controller
}

func NewOpsServer(app *application.Application) *OpsServer {
	return &OpsServer{Controllers: app.Controllers()}
}

func (s *OpsServer) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	for _, controller := range s.Controllers {
		controller.Register(r)
	}
	return r
}

// Start serves until the context is cancelled, then shuts down
// gracefully.
func (s *OpsServer) Start(ctx context.Context, socketAddress string) error {
	srv := &http.Server{
		Addr:              socketAddress,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
