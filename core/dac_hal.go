package core

// OutputSink accepts one clamped output code per synthesis channel per tick.
// The effect is physical and not observable by the engine.
type OutputSink interface {
	WriteSample(ch ChannelID, v Sample) error
}

// SinkFunc adapts a function to OutputSink
type SinkFunc func(ch ChannelID, v Sample) error

func (f SinkFunc) WriteSample(ch ChannelID, v Sample) error { return f(ch, v) }
