package embedding

import (
	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/speaker"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (speaker.Extractor, error) {
		c := do.MustInvoke[*config.Config](i)
		return NewHTTPExtractor(c.EmbeddingURL, c.ProviderTimeout), nil
	})
}
