// Package candidates produces the batches of hypothetical videos the board
// scores on each request.
package candidates

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/HatiCode/viewcast/pkg/features"
)

// Source produces candidate videos.
type Source interface {
	// Next returns n candidates. It must be safe for concurrent use.
	Next(ctx context.Context, n int) ([]features.Video, error)
}

// Reference sampling domain.
var (
	Types     = []string{"short", "long"}
	Platforms = []string{"YouTube", "TikTok"}
)

const (
	MinDuration = 20
	MaxDuration = 600
)

// Random samples candidates uniformly: an integer duration in
// [MinDuration, MaxDuration] and a type, platform and weekday each picked
// with equal probability.
type Random struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRandom returns a Random source. A zero seed uses the current time.
func NewRandom(seed uint64) *Random {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Random{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Next implements Source.
func (r *Random) Next(ctx context.Context, n int) ([]features.Video, error) {
	if n < 0 {
		return nil, errors.New("batch size must be >= 0")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]features.Video, n)
	for i := range out {
		out[i] = features.Video{
			DurationSeconds: float64(MinDuration + r.rng.IntN(MaxDuration-MinDuration+1)),
			Type:            Types[r.rng.IntN(len(Types))],
			Platform:        Platforms[r.rng.IntN(len(Platforms))],
			Day:             features.Weekdays[r.rng.IntN(len(features.Weekdays))],
		}
	}
	return out, nil
}

// Fixed cycles through a fixed list of videos. Batches continue where the
// previous one stopped.
type Fixed struct {
	mu     sync.Mutex
	videos []features.Video
	pos    int
}

// NewFixed returns a Fixed source over videos.
func NewFixed(videos ...features.Video) *Fixed {
	return &Fixed{videos: append([]features.Video(nil), videos...)}
}

// Next implements Source.
func (f *Fixed) Next(ctx context.Context, n int) ([]features.Video, error) {
	if n < 0 {
		return nil, errors.New("batch size must be >= 0")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(f.videos) == 0 {
		if n == 0 {
			return []features.Video{}, nil
		}
		return nil, errors.New("fixed source has no videos")
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]features.Video, n)
	for i := range out {
		out[i] = f.videos[f.pos]
		f.pos = (f.pos + 1) % len(f.videos)
	}
	return out, nil
}
