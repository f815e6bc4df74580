package actd

import (
	"net"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"google.golang.org/grpc"
)

var _ = Describe("func WithNetworking()", func() {
	It("sets the network options", func() {
		opts := resolveDaemonOptions(
			WithNetworking(),
		)

		Expect(opts.Network).ToNot(BeNil())
	})

	It("does not construct a default if the option is omitted", func() {
		opts := resolveDaemonOptions()

		Expect(opts.Network).To(BeNil())
	})
})

var _ = Describe("func WithListenAddress()", func() {
	It("sets the listener address", func() {
		opts := resolveNetworkOptions(
			WithListenAddress("localhost:1234"),
		)

		Expect(opts.ListenAddress).To(Equal("localhost:1234"))
	})

	It("uses the default if the address is empty", func() {
		opts := resolveNetworkOptions(
			WithListenAddress(""),
		)

		Expect(opts.ListenAddress).To(Equal(DefaultListenAddress))
	})

	It("panics if the address is invalid", func() {
		Expect(func() {
			WithListenAddress("missing-port")
		}).To(PanicWith(HavePrefix("invalid listen address: ")))
	})

	It("panics if the port is an unknown service name", func() {
		Expect(func() {
			WithListenAddress("host:xxx")
		}).To(Panic())
	})
})

var _ = Describe("func WithListener()", func() {
	It("sets the listener", func() {
		lis, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ShouldNot(HaveOccurred())
		defer lis.Close()

		opts := resolveNetworkOptions(
			WithListener(lis),
		)

		Expect(opts.Listener).To(BeIdenticalTo(lis))
	})
})

var _ = Describe("func WithServerOptions()", func() {
	It("appends to the options", func() {
		opts := resolveNetworkOptions(
			WithServerOptions(grpc.ConnectionTimeout(0)),
			WithServerOptions(grpc.ConnectionTimeout(0)),
		)

		Expect(opts.ServerOptions).To(HaveLen(2))
	})
})

var _ = Describe("func WithDialOptions()", func() {
	It("appends to the options", func() {
		opts := resolveNetworkOptions(
			WithDialOptions(grpc.WithUserAgent("<agent>")),
			WithDialOptions(grpc.WithUserAgent("<agent>")),
		)

		Expect(opts.DialOptions).To(HaveLen(2))
	})
})

var _ = Describe("func WithCallTimeout()", func() {
	It("sets the call timeout", func() {
		opts := resolveNetworkOptions(
			WithCallTimeout(10 * time.Second),
		)

		Expect(opts.CallTimeout).To(Equal(10 * time.Second))
	})

	It("uses the default if the duration is zero", func() {
		opts := resolveNetworkOptions(
			WithCallTimeout(0),
		)

		Expect(opts.CallTimeout).To(Equal(DefaultCallTimeout))
	})

	It("panics if the duration is negative", func() {
		Expect(func() {
			WithCallTimeout(-1)
		}).To(PanicWith("duration must not be negative"))
	})
})
