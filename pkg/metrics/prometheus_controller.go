package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/praxishq/praxis/pkg/application"
)

// DefaultPath is where the scrape endpoint lives when no path is
// configured. It sits under /debug so the ops router groups it with
// the other introspection surfaces.
const DefaultPath = "/debug/prometheus"

// PrometheusController exposes the process's prometheus registry on
// the ops router. The event pipeline gauges and counters registered in
// pkg/events surface here.
type PrometheusController struct {
	path string
}

func NewPrometheusController(path string) application.Controller {
	if path == "" {
		path = DefaultPath
	}
	return &PrometheusController{path: path}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, promhttp.Handler()).Methods(http.MethodGet)
}
