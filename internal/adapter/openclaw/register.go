package openclaw

import (
	"errors"

	"github.com/Strob0t/IntentMarket/internal/port/intentsource"
)

func init() {
	intentsource.Register(sourceName, func(cfg intentsource.Config) (intentsource.Source, error) {
		if cfg.URL == "" {
			return nil, errors.New("openclaw: url is required")
		}
		return NewSource(cfg), nil
	})
}
