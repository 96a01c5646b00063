package transcriber

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (transcriber.Factory, error) {
		c := do.MustInvoke[*config.Config](i)
		d := do.MustInvoke[diarization.Diarizer](i)
		return NewFactory(c, d), nil
	})
}
