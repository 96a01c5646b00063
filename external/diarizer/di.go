package diarizer

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (diarization.Diarizer, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewPyannoteDiarizer(c.PyannoteURL, c.ProviderTimeout), nil
	})
}
