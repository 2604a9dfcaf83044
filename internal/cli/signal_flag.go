package cli

import (
	"os"

	"github.com/spf13/pflag"

	"github.com/AbdelazizMoustafa10m/partest/internal/procgroup"
)

// signalValue is a pflag.Value accepting signal names or numbers
// ("TERM", "SIGINT", "9").
type signalValue struct {
	sig os.Signal
}

var _ pflag.Value = (*signalValue)(nil)

func newSignalValue(def os.Signal) *signalValue {
	return &signalValue{sig: def}
}

func (v *signalValue) String() string {
	if v == nil || v.sig == nil {
		return ""
	}
	return procgroup.SignalName(v.sig)
}

func (v *signalValue) Set(s string) error {
	sig, err := procgroup.ParseSignal(s)
	if err != nil {
		return err
	}
	v.sig = sig
	return nil
}

func (v *signalValue) Type() string {
	return "signal"
}

// Signal returns the parsed signal.
func (v *signalValue) Signal() os.Signal {
	return v.sig
}
