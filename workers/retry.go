package workers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"tcg-companion/logging"
	"tcg-companion/scraper"
	"tcg-companion/tcgplayer"
)

// RetryPolicy retries a page fetch with exponential backoff. Attempts counts the first try;
// 1 or less disables retrying.
type RetryPolicy struct {
	Attempts        int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Attempts: 3, InitialInterval: time.Second, MaxInterval: 10 * time.Second}
}

// Retry runs op under p. Errors that cannot succeed on a second try (bad credentials, 4xx
// other than 429, cancellation) are returned immediately.
func Retry[T any](ctx context.Context, p RetryPolicy, what string, op func() (T, error)) (T, error) {
	if p.Attempts <= 1 {
		return op()
	}

	b := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		b.InitialInterval = p.InitialInterval
	}
	if p.MaxInterval > 0 {
		b.MaxInterval = p.MaxInterval
	}
	b.MaxElapsedTime = 0

	var out T
	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		v, err := op()
		if err != nil {
			if permanent(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		out = v
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.Attempts-1)), ctx), func(err error, next time.Duration) {
		log := logging.For("retry")
		log.Warn().Err(err).Str("op", what).Int("attempt", attempt).Dur("next", next).Msg("🔁 [RETRY] transient failure, retrying")
	})
	return out, err
}

func permanent(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var missing *tcgplayer.MissingCredentialError
	if errors.As(err, &missing) {
		return true
	}
	var apiErr *tcgplayer.APIError
	if errors.As(err, &apiErr) {
		return clientError(apiErr.StatusCode)
	}
	var httpErr *scraper.HTTPError
	if errors.As(err, &httpErr) {
		return clientError(httpErr.StatusCode)
	}
	return false
}

func clientError(status int) bool {
	return status >= 400 && status < 500 && status != http.StatusTooManyRequests
}
