package loggingx_test

import (
	"io"

	. "github.com/dogmatiq/actd/internal/x/loggingx"
	"github.com/dogmatiq/dodeca/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type LineWriter", func() {
	It("logs each complete line with the prefix", func() {
		logger := &logging.BufferedLogger{}
		w := &LineWriter{
			Target: WithPrefix(logger, "Group-%d:out: ", 1),
		}

		io.WriteString(w, "first\nsec")
		io.WriteString(w, "ond\r\nthird")

		Expect(logger.Messages()).To(Equal([]logging.BufferedLogMessage{
			{Message: "Group-1:out: first"},
			{Message: "Group-1:out: second"},
		}))

		w.Flush()

		Expect(logger.Messages()).To(ContainElement(
			logging.BufferedLogMessage{Message: "Group-1:out: third"},
		))
	})

	It("does not interpret percent signs in the prefix or the output", func() {
		logger := &logging.BufferedLogger{}
		w := &LineWriter{
			Target: WithPrefix(logger, "100%% "),
		}

		io.WriteString(w, "%s\n")

		Expect(logger.Messages()).To(Equal([]logging.BufferedLogMessage{
			{Message: "100% %s"},
		}))
	})
})
