package appserver

import (
	"github.com/viant/scy/cred/secret"
	"io"
	"log/slog"
	"os"
	"time"
)

type options struct {
	handler      Handler
	interceptors []Interceptor
	logger       *slog.Logger
	stderr       io.Writer
	timeout      time.Duration
	grace        time.Duration
	factory      RunnerFactory
	command      string
	args         []string
	env          map[string]string
	host         string
	secret       secret.Resource
}

// Option configures the session manager.
type Option func(o *options)

func newOptions(opts ...Option) *options {
	o := &options{
		handler: &noopHandler{},
		logger:  slog.Default(),
		stderr:  os.Stderr,
		timeout: 20 * time.Second,
		grace:   2500 * time.Millisecond,
		command: "codex",
		args:    []string{"app-server"},
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.factory == nil {
		o.factory = o.newRunner
	}
	return o
}

func (o *options) newRunner() Runner {
	if o.host != "" {
		return NewRemoteRunner(o.host, o.secret, o.command, o.args, o.env)
	}
	return NewLocalRunner(o.command, o.args, o.env)
}

// WithHandler sets the recipient of server-initiated traffic.
func WithHandler(handler Handler) Option {
	return func(o *options) {
		o.handler = handler
	}
}

// WithInterceptor appends a post-call interceptor.
func WithInterceptor(interceptor Interceptor) Option {
	return func(o *options) {
		o.interceptors = append(o.interceptors, interceptor)
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithStderr sets the sink for prefixed child stderr lines.
func WithStderr(w io.Writer) Option {
	return func(o *options) {
		o.stderr = w
	}
}

// WithCallTimeout sets how long a call waits for the child's response.
func WithCallTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithChildGrace sets how long Stop waits between interrupt and kill.
func WithChildGrace(grace time.Duration) Option {
	return func(o *options) {
		o.grace = grace
	}
}

// WithRunnerFactory overrides how child processes are launched.
func WithRunnerFactory(factory RunnerFactory) Option {
	return func(o *options) {
		o.factory = factory
	}
}

// WithCommand sets the app-server command line.
func WithCommand(command string, args ...string) Option {
	return func(o *options) {
		o.command = command
		o.args = args
	}
}

// WithEnvironment is used to set the environment for the child
func WithEnvironment(key, value string) Option {
	return func(o *options) {
		if o.env == nil {
			o.env = make(map[string]string)
		}
		o.env[key] = value
	}
}

// WithRemote launches children on the given host over SSH, resolving
// credentials from the secret resource.
func WithRemote(host string, resource secret.Resource) Option {
	return func(o *options) {
		o.host = host
		o.secret = resource
	}
}
