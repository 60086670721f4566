package appserver

import (
	"context"
	"fmt"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
	"github.com/viant/gosh/runner/ssh"
	"github.com/viant/scy/cred/secret"
	cssh "golang.org/x/crypto/ssh"
	"io"
	"strings"
)

// RemoteRunner launches the app-server through a gosh pipeline, over SSH when
// a host is configured and locally otherwise. Remote children have no
// separate stderr; diagnostics arrive merged on the stdout listener and
// non-JSON lines are dropped by the session.
type RemoteRunner struct {
	host      string
	secret    secret.Resource
	sshConfig *cssh.ClientConfig
	command   string
	args      []string
	env       map[string]string

	service runner.Runner
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
}

// NewRemoteRunner creates a runner that starts the child on host, resolving
// SSH credentials from the secret resource.
func NewRemoteRunner(host string, resource secret.Resource, command string, args []string, env map[string]string) *RemoteRunner {
	return &RemoteRunner{
		host:    host,
		secret:  resource,
		command: command,
		args:    args,
		env:     env,
		done:    make(chan struct{}),
	}
}

// Start resolves credentials, opens the pipeline and launches the command.
// The process lifetime is detached from ctx; Interrupt and Kill stop it.
func (r *RemoteRunner) Start(ctx context.Context, listener Listener, _ io.Writer) error {
	if err := r.ensureSSHConfig(ctx); err != nil {
		return err
	}
	var options = []runner.Option{
		runner.AsPipeline(),
	}
	if r.sshConfig != nil {
		r.service = ssh.New(r.host, r.sshConfig, options...)
	} else {
		r.service = local.New(options...)
	}
	cmd := r.command
	if len(r.args) > 0 {
		cmd = fmt.Sprintf("%s %s", r.command, strings.Join(r.args, " "))
	}
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.cancel = cancel
	go r.run(runCtx, cmd, listener)
	return nil
}

func (r *RemoteRunner) run(ctx context.Context, cmd string, listener Listener) {
	output, code, err := r.service.Run(ctx, cmd,
		runner.WithEnvironment(r.env),
		runner.WithListener(func(stdout string, hasMore bool) {
			listener([]byte(stdout))
		}))
	if err != nil {
		r.err = err
	} else if code != 0 {
		r.err = fmt.Errorf("command exited with code: %d %v", code, output)
	}
	close(r.done)
}

// Send writes one frame to the pipeline's stdin.
func (r *RemoteRunner) Send(data []byte) error {
	if r.service == nil {
		return fmt.Errorf("pipeline is not initialized")
	}
	_, err := r.service.Send(context.Background(), data)
	return err
}

// Interrupt closes the pipeline, which ends the remote command.
func (r *RemoteRunner) Interrupt() error {
	if r.service != nil {
		return r.service.Close()
	}
	return nil
}

// Kill cancels the run context.
func (r *RemoteRunner) Kill() error {
	if r.cancel != nil {
		r.cancel()
	}
	return nil
}

// Done is closed once the command finished.
func (r *RemoteRunner) Done() <-chan struct{} {
	return r.done
}

// Err reports the exit cause after Done is closed.
func (r *RemoteRunner) Err() error {
	return r.err
}

func (r *RemoteRunner) ensureSSHConfig(ctx context.Context) error {
	if r.sshConfig != nil || r.host == "" {
		return nil
	}
	if r.secret != "" {
		secrets := secret.New()
		cred, err := secrets.GetCredentials(ctx, string(r.secret))
		if err != nil {
			return err
		}
		r.sshConfig, err = cred.SSH.Config(ctx)
		return err
	}
	return fmt.Errorf("sshConfig is required but not provided for host: %s", r.host)
}
