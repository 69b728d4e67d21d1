// Package globals holds CLI flags shared by every subcommand.
package globals

type Globals struct {
	Verbose bool `help:"Enable verbose (debug) logging" short:"v" env:"GATEWAY_VERBOSE"`
}
