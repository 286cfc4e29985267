package orpheus

import (
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

// Options are the environment-tunable knobs of the library, read from
// ORPHEUS_* variables.
type Options struct {
	Service     string `envconfig:"SERVICE"`
	Capacity    int    `envconfig:"PUBLISHER_CAPACITY" default:"1024"`
	TraceHeader string `envconfig:"TRACE_HEADER" default:"Jet-Dr-Orpheus"`
	TraceField  string `envconfig:"TRACE_FIELD" default:"~trace"`
}

// OptionsFromEnv loads Options from the environment.
func OptionsFromEnv() (Options, error) {
	var o Options
	if err := envconfig.Process("orpheus", &o); err != nil {
		return Options{}, errors.Wrap(err, "loading options")
	}
	return o, nil
}
