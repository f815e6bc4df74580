package group

import (
	"sort"

	"github.com/dogmatiq/actd/activation"
)

// CommandLine returns the command line used to start the process for a group
// described by desc.
//
// base is the daemon's group command. base[0] is used as the executable unless
// desc overrides it, and base[1:] follows the group's own arguments.
func CommandLine(base []string, desc activation.GroupDescriptor) []string {
	var argv []string

	if c := desc.Command; c != nil && c.Path != "" {
		argv = append(argv, c.Path)
	} else if len(base) > 0 {
		argv = append(argv, base[0])
	}

	if c := desc.Command; c != nil {
		argv = append(argv, c.Options...)
	}

	keys := make([]string, 0, len(desc.Properties))
	for k := range desc.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		argv = append(argv, "-D"+k+"="+desc.Properties[k])
	}

	if len(base) > 1 {
		argv = append(argv, base[1:]...)
	}

	return argv
}
