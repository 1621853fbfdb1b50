package main

import (
	"github.com/Champ-Deep/LakeB2B-SlideSmith/internal/config"
	"github.com/spf13/pflag"
)

// RunOptions override configuration values loaded from the environment.
type RunOptions struct {
	Address   string
	QueueMode string
	Workers   int
}

func (o *RunOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.Address, "address", "", "Address the API listens on, overrides SLIDESMITH_ADDRESS")
	fs.StringVar(&o.QueueMode, "queue-mode", "", "Row queue, either local or river")
	fs.IntVar(&o.Workers, "workers", 0, "Number of rows processed concurrently")
}

func (o *RunOptions) Apply(cfg *config.Config) {
	if o.Address != "" {
		cfg.Service.Address = o.Address
	}
	if o.QueueMode != "" {
		cfg.Service.QueueMode = o.QueueMode
	}
	if o.Workers > 0 {
		cfg.Service.Workers = o.Workers
	}
}
