// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package commands

import "time"

// pacerConfig sets the frame and event polling cadence of the
// event loop.
type pacerConfig struct {
	// FramesPerSecond of zero means uncapped.
	FramesPerSecond int

	// EventPollDelay is the input polling period in milliseconds.
	EventPollDelay int
}

// newPacer builds the tickers the event loop runs on.
func newPacer(cfg pacerConfig) *pacer {
	frameInterval := time.Nanosecond
	if cfg.FramesPerSecond > 0 {
		frameInterval = time.Second / time.Duration(cfg.FramesPerSecond)
	}
	pollInterval := time.Duration(cfg.EventPollDelay) * time.Millisecond
	if pollInterval <= 0 {
		pollInterval = 10 * time.Millisecond
	}

	return &pacer{
		fps:         cfg.FramesPerSecond,
		frameTicker: time.NewTicker(frameInterval),
		eventTicker: time.NewTicker(pollInterval),
	}
}

// pacer owns the event loop tickers.
type pacer struct {
	fps         int
	frameTicker *time.Ticker
	eventTicker *time.Ticker
}

// Frames ticks once per frame.
func (p *pacer) Frames() <-chan time.Time {
	return p.frameTicker.C
}

// Events ticks once per input poll.
func (p *pacer) Events() <-chan time.Time {
	return p.eventTicker.C
}

// Stop releases both tickers.
func (p *pacer) Stop() {
	p.frameTicker.Stop()
	p.eventTicker.Stop()
}
