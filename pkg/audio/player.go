// Package audio plays short alert chimes on the default output device.
package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

const (
	// SampleRate of every tone this package generates.
	SampleRate   = 44100
	channelCount = 1
)

// A process may only own one oto context, so it is shared by every Player.
var (
	otoCtx     *oto.Context
	otoCtxErr  error
	otoCtxOnce sync.Once
)

func audioContext() (*oto.Context, error) {
	otoCtxOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   SampleRate,
			ChannelCount: channelCount,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			otoCtxErr = fmt.Errorf("init audio context: %w", err)
			return
		}
		// Wait for the hardware audio devices to be ready
		<-ready
		otoCtx = ctx
	})
	return otoCtx, otoCtxErr
}

// Player plays mono 16-bit PCM at SampleRate, one sound at a time.
type Player struct {
	mu sync.Mutex
}

// NewPlayer creates a Player. The audio device is opened on first use.
func NewPlayer() *Player {
	return &Player{}
}

// Play plays pcm and returns when it finished or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte) error {
	if len(pcm) == 0 {
		return errors.New("empty sound")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	audioCtx, err := audioContext()
	if err != nil {
		return err
	}

	player := audioCtx.NewPlayer(bytes.NewReader(pcm))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return player.Err()
}
