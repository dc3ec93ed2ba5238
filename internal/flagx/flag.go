// Package flagx lets several flag sets share one command line: each loader
// keeps only the arguments that belong to its own flag set.
package flagx

import (
	"strings"

	"github.com/spf13/pflag"
)

// FilterArgs returns the subset of args understood by fs.
//
// Supported forms:
//
//	-c conf.json      --config conf.json
//	-c=conf.json      --config=conf.json
//	--secure-cookies  (boolean flags never consume the next argument)
//
// Anything else, including positional arguments, is dropped.
func FilterArgs(args []string, fs *pflag.FlagSet) []string {
	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		f := lookup(fs, arg)
		if f == nil {
			continue
		}
		filtered = append(filtered, arg)

		if strings.Contains(arg, "=") || f.NoOptDefVal != "" {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}

	return filtered
}

// Positional is the complement of FilterArgs: it returns the arguments that
// are neither flags of fs nor values consumed by them. Unknown flags are
// dropped and everything after "--" is kept verbatim.
func Positional(args []string, fs *pflag.FlagSet) []string {
	out := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if arg == "--" {
			return append(out, args[i+1:]...)
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			out = append(out, arg)
			continue
		}

		f := lookup(fs, arg)
		if f == nil || strings.Contains(arg, "=") || f.NoOptDefVal != "" {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
		}
	}

	return out
}

func lookup(fs *pflag.FlagSet, arg string) *pflag.Flag {
	name, _, _ := strings.Cut(arg, "=")
	switch {
	case strings.HasPrefix(name, "--"):
		return fs.Lookup(name[2:])
	case strings.HasPrefix(name, "-") && len(name) == 2:
		return fs.ShorthandLookup(name[1:])
	default:
		return nil
	}
}

// ConfigFile extracts the path given with -c/--config, or "" when absent.
func ConfigFile(args []string) string {
	var config string

	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	fs.StringVarP(&config, "config", "c", "", "path to JSON config file")
	_ = fs.Parse(FilterArgs(args, fs))

	return config
}
