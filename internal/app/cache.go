package app

import (
	"context"
	"strconv"

	"github.com/rs/zerolog/log"

	"hotel_booking/internal/domain"
)

// The full hotel listing (hotels, rooms, reservations) is cached under a key
// that embeds the listing generation. Writes bump the generation, so a
// reader that loaded before a commit can only fill a key nobody reads any
// more.
const listingGenKey = "hotels:gen"

func listingKey(gen int64) string { return "hotels:all:" + strconv.FormatInt(gen, 10) }

// listingGen reports the current generation; ok is false when the cache
// cannot be trusted for this read.
func listingGen(ctx context.Context, c domain.Cache) (gen int64, ok bool) {
	if _, err := c.Get(ctx, listingGenKey, &gen); err != nil {
		log.Warn().Err(err).Str("key", listingGenKey).Msg("cache generation read failed")
		return 0, false
	}
	return gen, true
}

// invalidateListing retires the cached listing after any write. Cache failures
// are logged, never returned: the write already committed.
func invalidateListing(ctx context.Context, c domain.Cache) {
	if c == nil {
		return
	}
	gen, err := c.Incr(ctx, listingGenKey)
	if err != nil {
		log.Warn().Err(err).Str("key", listingGenKey).Msg("cache invalidation failed")
		return
	}
	if err := c.Del(ctx, listingKey(gen-1)); err != nil {
		log.Debug().Err(err).Int64("gen", gen-1).Msg("dropping retired listing failed")
	}
}
