package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/bondoracle/internal/domain"
)

// DefaultSequencerGracePeriod is how long feeds stay untrusted after the L2
// sequencer comes back up.
const DefaultSequencerGracePeriod = time.Hour

type sequencerGate struct {
	feed  domain.SequencerFeed
	grace time.Duration
}

// NewL2FeedEngine creates a feed engine that refuses to price while the L2
// sequencer is down or within gracePeriod of its last restart.
func NewL2FeedEngine(chain domain.ChainReader, sequencer domain.SequencerFeed, gracePeriod time.Duration, opts ...FeedOption) *FeedEngine {
	if gracePeriod <= 0 {
		gracePeriod = DefaultSequencerGracePeriod
	}
	e := NewFeedEngine(chain, opts...)
	e.sequencer = &sequencerGate{feed: sequencer, grace: gracePeriod}
	return e
}

func (g *sequencerGate) check(ctx context.Context, now Clock) error {
	round, err := g.feed.LatestRoundData(ctx)
	if err != nil {
		return fmt.Errorf("oracle: read sequencer feed: %w", err)
	}
	if round.Answer == nil || round.Answer.Sign() != 0 {
		return fmt.Errorf("oracle: sequencer down: %w", domain.ErrInvalidParams)
	}
	if round.StartedAt == 0 {
		return fmt.Errorf("oracle: sequencer round not started: %w", domain.ErrInvalidParams)
	}
	ts := unixNow(now)
	if ts < round.StartedAt || time.Duration(ts-round.StartedAt)*time.Second < g.grace {
		return fmt.Errorf("oracle: sequencer grace period not over: %w", domain.ErrInvalidParams)
	}
	return nil
}
