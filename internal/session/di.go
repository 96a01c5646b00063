package session

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/events"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/speaker"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/foxseedlab/livescribe/internal/webhook"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		factory := do.MustInvoke[transcriber.Factory](i)
		diarizer := do.MustInvoke[diarization.Diarizer](i)
		extractor := do.MustInvoke[speaker.Extractor](i)
		repo := do.MustInvoke[repository.Repository](i)
		wh := do.MustInvoke[webhook.Sender](i)
		publisher := do.MustInvoke[events.Publisher](i)
		m := do.MustInvoke[*metrics.Metrics](i)
		return NewManager(cfg, factory, diarization.NewFallback(diarizer), extractor, repo, wh, publisher, m), nil
	})
}
