package groupkit

import "strings"

// ParseProperties extracts the "-D<key>=<value>" property definitions from a
// group process's command-line arguments.
//
// It returns the properties and the remaining arguments, in their original
// order. A definition without a value, such as "-D<key>", defines the property
// with an empty value.
func ParseProperties(args []string) (map[string]string, []string) {
	props := map[string]string{}
	var rest []string

	for _, arg := range args {
		def, ok := strings.CutPrefix(arg, "-D")
		if !ok || def == "" {
			rest = append(rest, arg)
			continue
		}

		k, v, _ := strings.Cut(def, "=")
		props[k] = v
	}

	return props, rest
}
