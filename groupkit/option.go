package groupkit

import (
	"io"
	"os"
	"time"

	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/linger"
	"github.com/dogmatiq/linger/backoff"
	"google.golang.org/grpc"
)

var (
	// DefaultListenAddress is the default TCP address on which the group's
	// instantiator is served.
	//
	// It is overridden by the WithListenAddress() option.
	DefaultListenAddress = "127.0.0.1:0"

	// DefaultAttachAttempts is the default number of attempts made to attach
	// the group's instantiator to the daemon.
	//
	// It is overridden by the WithAttachAttempts() option.
	DefaultAttachAttempts = 5

	// DefaultAttachBackoff is the default backoff strategy used between
	// attempts to attach to the daemon.
	//
	// It is overridden by the WithAttachBackoff() option.
	DefaultAttachBackoff backoff.Strategy = backoff.WithTransforms(
		backoff.Exponential(100*time.Millisecond),
		linger.FullJitter,
		linger.Limiter(0, 5*time.Second),
	)

	// DefaultReportTimeout is the default timeout applied to the calls that
	// report to the daemon that the group or one of its objects has become
	// inactive.
	//
	// It is overridden by the WithReportTimeout() option.
	DefaultReportTimeout = 10 * time.Second

	// DefaultLogger is the default target for log messages produced by the
	// group.
	//
	// It is overridden by the WithLogger() option.
	DefaultLogger = logging.DefaultLogger
)

// Option configures the behavior of a group process.
type Option func(*options)

// WithFactory returns an option that registers the factory used to construct
// objects of the given class.
func WithFactory(className string, f Factory) Option {
	if f == nil {
		panic("factory must not be nil")
	}

	return func(opts *options) {
		opts.Factories[className] = f
	}
}

// WithArgs returns an option that sets the command-line arguments from which
// the group's properties are parsed.
//
// If this option is omitted, os.Args[1:] is used.
func WithArgs(args []string) Option {
	return func(opts *options) {
		opts.Args = args
		opts.HasArgs = true
	}
}

// WithStdin returns an option that sets the reader from which the bootstrap
// message is read.
//
// If this option is omitted or r is nil, os.Stdin is used.
func WithStdin(r io.Reader) Option {
	return func(opts *options) {
		opts.Stdin = r
	}
}

// WithListenAddress returns an option that sets the TCP address on which the
// group's instantiator is served.
//
// If this option is omitted or addr is empty, DefaultListenAddress is used.
func WithListenAddress(addr string) Option {
	return func(opts *options) {
		opts.ListenAddress = addr
	}
}

// WithServerOptions returns an option that adds gRPC server options used to
// serve the group's instantiator.
func WithServerOptions(so ...grpc.ServerOption) Option {
	return func(opts *options) {
		opts.ServerOptions = append(opts.ServerOptions, so...)
	}
}

// WithDialOptions returns an option that adds gRPC dial options used to
// connect to the daemon.
func WithDialOptions(do ...grpc.DialOption) Option {
	return func(opts *options) {
		opts.DialOptions = append(opts.DialOptions, do...)
	}
}

// WithAttachAttempts returns an option that sets the number of attempts made
// to attach the group's instantiator to the daemon.
//
// If this option is omitted or n is non-positive, DefaultAttachAttempts is
// used.
func WithAttachAttempts(n int) Option {
	return func(opts *options) {
		opts.AttachAttempts = n
	}
}

// WithAttachBackoff returns an option that sets the backoff strategy used
// between attempts to attach to the daemon.
//
// If this option is omitted or s is nil, DefaultAttachBackoff is used.
func WithAttachBackoff(s backoff.Strategy) Option {
	return func(opts *options) {
		opts.AttachBackoff = s
	}
}

// WithReportTimeout returns an option that sets the timeout applied to calls
// that report inactive objects and groups to the daemon.
//
// If this option is omitted or d is zero, DefaultReportTimeout is used.
func WithReportTimeout(d time.Duration) Option {
	if d < 0 {
		panic("duration must not be negative")
	}

	return func(opts *options) {
		opts.ReportTimeout = d
	}
}

// WithLogger returns an option that sets the target for log messages produced
// by the group.
//
// If this option is omitted or l is nil, DefaultLogger is used.
func WithLogger(l logging.Logger) Option {
	return func(opts *options) {
		opts.Logger = l
	}
}

// options is a container for a fully-resolved set of group options.
type options struct {
	Factories      map[string]Factory
	Args           []string
	HasArgs        bool
	Stdin          io.Reader
	ListenAddress  string
	ServerOptions  []grpc.ServerOption
	DialOptions    []grpc.DialOption
	AttachAttempts int
	AttachBackoff  backoff.Strategy
	ReportTimeout  time.Duration
	Logger         logging.Logger
}

// resolveOptions returns a fully-populated set of group options built from
// the given set of option functions.
func resolveOptions(opts ...Option) *options {
	o := &options{
		Factories: map[string]Factory{},
	}

	for _, fn := range opts {
		fn(o)
	}

	if !o.HasArgs && len(os.Args) > 1 {
		o.Args = os.Args[1:]
	}

	if o.Stdin == nil {
		o.Stdin = os.Stdin
	}

	if o.ListenAddress == "" {
		o.ListenAddress = DefaultListenAddress
	}

	if o.AttachAttempts <= 0 {
		o.AttachAttempts = DefaultAttachAttempts
	}

	if o.AttachBackoff == nil {
		o.AttachBackoff = DefaultAttachBackoff
	}

	if o.ReportTimeout == 0 {
		o.ReportTimeout = DefaultReportTimeout
	}

	if o.Logger == nil {
		o.Logger = DefaultLogger
	}

	return o
}
