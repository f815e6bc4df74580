package groupkit

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var _ = Describe("func WithServerOptions()", func() {
	It("appends to the server options", func() {
		opts := resolveOptions(
			WithServerOptions(grpc.MaxRecvMsgSize(1024)),
			WithServerOptions(
				grpc.MaxSendMsgSize(1024),
				grpc.ConnectionTimeout(time.Second),
			),
		)

		Expect(opts.ServerOptions).To(HaveLen(3))
	})
})

var _ = Describe("func WithDialOptions()", func() {
	It("appends to the dial options", func() {
		opts := resolveOptions(
			WithDialOptions(grpc.WithTransportCredentials(insecure.NewCredentials())),
			WithDialOptions(grpc.WithUserAgent("<agent>")),
		)

		Expect(opts.DialOptions).To(HaveLen(2))
	})
})

var _ = Describe("func WithArgs()", func() {
	It("sets the arguments", func() {
		opts := resolveOptions(
			WithArgs([]string{"-D<key>=<value>"}),
		)

		Expect(opts.Args).To(Equal([]string{"-D<key>=<value>"}))
	})

	It("does not fall back to the process arguments if the arguments are empty", func() {
		opts := resolveOptions(
			WithArgs(nil),
		)

		Expect(opts.Args).To(BeEmpty())
	})
})

var _ = Describe("func WithAttachAttempts()", func() {
	It("sets the number of attempts", func() {
		opts := resolveOptions(
			WithAttachAttempts(2),
		)

		Expect(opts.AttachAttempts).To(Equal(2))
	})

	It("uses the default if the number is not positive", func() {
		opts := resolveOptions(
			WithAttachAttempts(0),
		)

		Expect(opts.AttachAttempts).To(Equal(DefaultAttachAttempts))
	})
})

var _ = Describe("func WithReportTimeout()", func() {
	It("sets the timeout", func() {
		opts := resolveOptions(
			WithReportTimeout(10 * time.Millisecond),
		)

		Expect(opts.ReportTimeout).To(Equal(10 * time.Millisecond))
	})

	It("uses the default if the duration is zero", func() {
		opts := resolveOptions(
			WithReportTimeout(0),
		)

		Expect(opts.ReportTimeout).To(Equal(DefaultReportTimeout))
	})

	It("panics if the duration is less than zero", func() {
		Expect(func() {
			WithReportTimeout(-1)
		}).To(PanicWith("duration must not be negative"))
	})
})

var _ = Describe("func WithFactory()", func() {
	It("panics if the factory is nil", func() {
		Expect(func() {
			WithFactory("<class>", nil)
		}).To(PanicWith("factory must not be nil"))
	})
})

var _ = Describe("func resolveOptions()", func() {
	It("uses the default listen address", func() {
		opts := resolveOptions()
		Expect(opts.ListenAddress).To(Equal(DefaultListenAddress))
	})
})
