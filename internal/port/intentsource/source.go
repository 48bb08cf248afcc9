// Package intentsource defines the port for external producers of
// intent-shaped records (crawlers, third-party sync).
package intentsource

import (
	"context"

	"github.com/Strob0t/IntentMarket/internal/domain/intent"
)

// Source fetches candidate intents from an external platform. Every
// returned request carries SourcePlatform and a non-empty SourceURL.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]intent.CreateRequest, error)
}
