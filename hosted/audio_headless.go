//go:build headless

package hosted

import "wavescope/core"

// AudioSink is unavailable in headless builds
type AudioSink struct {
	*audioTap
}

func NewAudioSink(channel core.ChannelID, outMax core.Sample, sampleRate int) (*AudioSink, error) {
	return nil, ErrAudioUnavailable
}

func (a *AudioSink) Start() {}

func (a *AudioSink) Close() error { return nil }
