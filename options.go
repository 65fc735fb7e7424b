// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package fdwatch

import (
	"time"

	"github.com/joeycumines/logiface"
)

// watcherOptions holds configuration options for Watcher creation.
type watcherOptions struct {
	logger    *logiface.Logger[logiface.Event]
	onTimeout TimeoutCallback
	timeout   time.Duration
}

// Option configures a Watcher instance.
type Option interface {
	applyWatcher(*watcherOptions) error
}

// optionImpl implements Option.
type optionImpl struct {
	applyWatcherFunc func(*watcherOptions) error
}

func (o *optionImpl) applyWatcher(opts *watcherOptions) error {
	return o.applyWatcherFunc(opts)
}

// WithLogger attaches a structured logger to the watcher.
// A nil logger (the default) disables logging.
//
// Wait failures are logged via [logiface.Builder.Limit], so a logger
// configured with category rate limits will throttle them.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return &optionImpl{func(opts *watcherOptions) error {
		opts.logger = logger
		return nil
	}}
}

// WithTimeout sets the initial timeout configuration, as if
// [Watcher.ConfigureTimeout] had been called before the first start.
func WithTimeout(d time.Duration, onTimeout TimeoutCallback) Option {
	return &optionImpl{func(opts *watcherOptions) error {
		opts.timeout = d
		opts.onTimeout = onTimeout
		return nil
	}}
}

// resolveWatcherOptions applies Option instances to watcherOptions.
func resolveWatcherOptions(opts []Option) (*watcherOptions, error) {
	cfg := &watcherOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyWatcher(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
