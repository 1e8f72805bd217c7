package oto

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/xaionaro-go/earmonitor/pkg/audio/types"
)

// `oto` does not allow to initialize a context multiple times, so the
// parameters are fixed and everything else is resampled to them.
const (
	SampleRate = types.SampleRate(48000)
	Channels   = types.Channel(2)
	Format     = types.PCMFormatFloat32LE
	BufferSize = 100 * time.Millisecond
)

var (
	otoContextLocker sync.Mutex
	otoContext       *oto.Context
	otoContextErr    error
)

func getOtoContext() (*oto.Context, error) {
	otoContextLocker.Lock()
	defer otoContextLocker.Unlock()
	if otoContext != nil || otoContextErr != nil {
		return otoContext, otoContextErr
	}

	otoCtx, readyCh, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(SampleRate),
		ChannelCount: int(Channels),
		Format:       oto.FormatFloat32LE,
		BufferSize:   BufferSize,
	})
	if err != nil {
		otoContextErr = fmt.Errorf("unable to initialize an oto context: %w", err)
		return nil, otoContextErr
	}
	<-readyCh
	otoContext = otoCtx
	return otoContext, nil
}
