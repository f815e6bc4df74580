package main

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/dogmatiq/actd/activation"
)

// groupFile is the TOML representation of a group descriptor.
type groupFile struct {
	ClassName  string            `toml:"class_name"`
	Location   string            `toml:"location"`
	Data       string            `toml:"data"`
	Properties map[string]string `toml:"properties"`
	Command    *commandFile      `toml:"command"`
}

type commandFile struct {
	Path    string            `toml:"path"`
	Options []string          `toml:"options"`
	Env     map[string]string `toml:"env"`
}

// objectFile is the TOML representation of an activation descriptor.
type objectFile struct {
	Group     string `toml:"group"`
	ClassName string `toml:"class_name"`
	Location  string `toml:"location"`
	Data      string `toml:"data"`
	Restart   bool   `toml:"restart"`
}

// loadGroupDescriptor reads a group descriptor from a TOML file.
func loadGroupDescriptor(path string) (activation.GroupDescriptor, error) {
	var f groupFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return activation.GroupDescriptor{}, fmt.Errorf("load group descriptor: %w", err)
	}

	if keys := meta.Undecoded(); len(keys) != 0 {
		return activation.GroupDescriptor{}, fmt.Errorf("load group descriptor: unrecognized key %q", keys[0].String())
	}

	desc := activation.GroupDescriptor{
		ClassName:  f.ClassName,
		Location:   f.Location,
		Properties: f.Properties,
	}

	if f.Data != "" {
		desc.Data = []byte(f.Data)
	}

	if c := f.Command; c != nil {
		desc.Command = &activation.CommandEnvironment{
			Path:    c.Path,
			Options: c.Options,
			Env:     c.Env,
		}
	}

	return desc, nil
}

// loadDescriptor reads an activation descriptor from a TOML file.
func loadDescriptor(path string) (activation.Descriptor, error) {
	var f objectFile
	meta, err := toml.DecodeFile(path, &f)
	if err != nil {
		return activation.Descriptor{}, fmt.Errorf("load object descriptor: %w", err)
	}

	if keys := meta.Undecoded(); len(keys) != 0 {
		return activation.Descriptor{}, fmt.Errorf("load object descriptor: unrecognized key %q", keys[0].String())
	}

	if !meta.IsDefined("group") {
		return activation.Descriptor{}, fmt.Errorf("load object descriptor: group is required")
	}

	id, err := activation.ParseGroupID(f.Group)
	if err != nil {
		return activation.Descriptor{}, fmt.Errorf("load object descriptor: %w", err)
	}

	desc := activation.Descriptor{
		GroupID:   id,
		ClassName: f.ClassName,
		Location:  f.Location,
		Restart:   f.Restart,
	}

	if f.Data != "" {
		desc.Data = []byte(f.Data)
	}

	return desc, nil
}
