package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"native-thumbnail/internal/logging"
)

type promLogger struct{}

func (promLogger) Println(v ...interface{}) {
	logging.Error("metrics: %v", v)
}

// Handler serves the default registry for the metrics port. A collector that
// fails is logged and skipped instead of failing the whole scrape.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:          promLogger{},
		ErrorHandling:     promhttp.ContinueOnError,
		EnableOpenMetrics: true,
	})
}
