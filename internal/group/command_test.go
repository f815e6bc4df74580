package group_test

import (
	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/group"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func CommandLine()", func() {
	base := []string{"/bin/group", "--a", "--b"}

	It("uses the base command when the descriptor has no command", func() {
		argv := group.CommandLine(base, activation.GroupDescriptor{})
		Expect(argv).To(Equal(base))
	})

	It("adds properties as sorted -D options before the base arguments", func() {
		argv := group.CommandLine(base, activation.GroupDescriptor{
			Properties: map[string]string{
				"b": "2",
				"a": "1",
			},
		})
		Expect(argv).To(Equal([]string{"/bin/group", "-Da=1", "-Db=2", "--a", "--b"}))
	})

	It("uses the descriptor's command path and options", func() {
		argv := group.CommandLine(base, activation.GroupDescriptor{
			Properties: map[string]string{"k": "v"},
			Command: &activation.CommandEnvironment{
				Path:    "/usr/bin/custom",
				Options: []string{"-x"},
			},
		})
		Expect(argv).To(Equal([]string{"/usr/bin/custom", "-x", "-Dk=v", "--a", "--b"}))
	})

	It("returns an empty command line if there is no executable", func() {
		Expect(group.CommandLine(nil, activation.GroupDescriptor{})).To(BeEmpty())
	})
})
