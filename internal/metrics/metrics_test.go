package metrics_test

import (
	"errors"
	"fmt"
	"strings"

	. "github.com/dogmatiq/actd/internal/metrics"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

var _ = Describe("type Metrics", func() {
	var (
		reg *prometheus.Registry
		m   *Metrics
	)

	BeforeEach(func() {
		reg = prometheus.NewRegistry()
		m = New(reg)
	})

	It("counts activations by outcome", func() {
		m.Activation(true, nil)
		m.Activation(false, nil)
		m.Activation(false, errors.New("<error>"))

		count, err := testutil.GatherAndCount(reg, "actd_activations_total")
		Expect(err).ShouldNot(HaveOccurred())
		Expect(count).To(Equal(3))
	})

	It("tracks spawns in flight", func() {
		done := m.SpawnStarted()
		Expect(inFlight(reg, 1)).To(Succeed())

		done(nil)
		Expect(inFlight(reg, 0)).To(Succeed())
	})

	It("does nothing when nil", func() {
		var m *Metrics

		Expect(func() {
			m.SpawnStarted()(nil)
			m.GroupExited(true)
			m.Activation(false, nil)
			m.Restart(nil)
			m.LogAppend(nil)
			m.Snapshot(nil)
		}).NotTo(Panic())
	})
})

func inFlight(reg *prometheus.Registry, n int) error {
	return testutil.GatherAndCompare(
		reg,
		strings.NewReader(fmt.Sprintf(`
# HELP actd_group_spawns_in_flight Number of group processes that have been started but not yet attached
# TYPE actd_group_spawns_in_flight gauge
actd_group_spawns_in_flight %d
`, n)),
		"actd_group_spawns_in_flight",
	)
}
