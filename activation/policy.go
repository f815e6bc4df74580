package activation

import (
	"fmt"
	"strings"
)

// ExecPolicy decides whether the daemon may run a group process.
type ExecPolicy interface {
	// CheckExecCommand returns a non-nil error if the group described by desc
	// must not be started with the given command line.
	CheckExecCommand(desc GroupDescriptor, argv []string) error
}

// ExecPolicyFunc is an adaptor that allows a function to be used as an
// ExecPolicy.
type ExecPolicyFunc func(desc GroupDescriptor, argv []string) error

// CheckExecCommand returns fn(desc, argv).
func (fn ExecPolicyFunc) CheckExecCommand(desc GroupDescriptor, argv []string) error {
	return fn(desc, argv)
}

// AllowAll is an ExecPolicy that allows any command.
var AllowAll ExecPolicy = ExecPolicyFunc(
	func(GroupDescriptor, []string) error {
		return nil
	},
)

// PermissionPolicy is an ExecPolicy that allows only explicitly permitted
// command paths and options.
//
// Patterns match exactly, or by prefix if they end in "*". The pattern "*"
// matches anything.
type PermissionPolicy struct {
	// Commands are the patterns of the command paths that a group descriptor
	// may specify.
	Commands []string

	// Options are the patterns of the command options and -D properties that
	// a group descriptor may specify.
	Options []string
}

// CheckExecCommand returns an ExecDeniedError if desc specifies a custom group
// implementation, or a command path or option that is not permitted.
func (p *PermissionPolicy) CheckExecCommand(desc GroupDescriptor, argv []string) error {
	deny := func(f string, v ...any) error {
		return ExecDeniedError{
			Argv:   argv,
			Reason: fmt.Sprintf(f, v...),
		}
	}

	if desc.IsCustom() {
		return deny("custom group implementation %q is not permitted", desc.ClassName)
	}

	for k, v := range desc.Properties {
		opt := "-D" + k + "=" + v
		if permitted(p.Options, opt) {
			continue
		}

		if v == "" && permitted(p.Options, "-D"+k) {
			continue
		}

		return deny("option %q is not permitted", opt)
	}

	if c := desc.Command; c != nil {
		if c.Path != "" && !permitted(p.Commands, c.Path) {
			return deny("command %q is not permitted", c.Path)
		}

		for _, opt := range c.Options {
			if !permitted(p.Options, opt) {
				return deny("option %q is not permitted", opt)
			}
		}
	}

	return nil
}

// permitted returns true if s matches any of the given patterns.
func permitted(patterns []string, s string) bool {
	for _, p := range patterns {
		if prefix, ok := strings.CutSuffix(p, "*"); ok {
			if strings.HasPrefix(s, prefix) {
				return true
			}
		} else if p == s {
			return true
		}
	}

	return false
}
