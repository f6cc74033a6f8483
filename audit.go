package twofactor

import (
	"io"

	internalaudit "github.com/MrEthical07/twofactor/internal/audit"
	"go.uber.org/zap"
)

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink writes audit events into a buffered channel.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// ZapSink logs audit events through a zap logger.
type ZapSink = internalaudit.ZapSink

// MultiSink fans events out to several sinks.
type MultiSink = internalaudit.MultiSink

// NewChannelSink returns a sink that forwards events to a buffered channel.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink returns a sink that writes one JSON object per line to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewZapSink returns a sink that logs successful events at Info and failures
// at Warn.
func NewZapSink(log *zap.Logger) *ZapSink {
	return internalaudit.NewZapSink(log)
}
