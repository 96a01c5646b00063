package stream

import (
	"net/http"

	"github.com/foxseedlab/livescribe/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (http.Handler, error) {
		manager := do.MustInvoke[*session.Manager](i)
		return NewRouter(manager, prometheus.DefaultGatherer), nil
	})
}
