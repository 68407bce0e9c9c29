package core

// ConversionSource returns finished conversion results to the acquisition
// handler. Results are raw codes; the handler masks them to the configured
// resolution.
type ConversionSource interface {
	ReadResult(ch ChannelID) (uint16, error)
}

// ConversionTrigger starts a conversion. It carries no data: the result
// arrives later through the conversion-complete handler.
type ConversionTrigger interface {
	StartConversion()
}

// TriggerFunc adapts a function to ConversionTrigger
type TriggerFunc func()

func (f TriggerFunc) StartConversion() { f() }
