package interceptor

import (
	"context"
	"net"
	"os/exec"
	"time"

	"github.com/go-logr/logr"
	pkgerrors "github.com/pkg/errors"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/telekom/pod-identity-operator/pkg/aadclient"
	"github.com/telekom/pod-identity-operator/pkg/backoff"
)

const (
	// Chain is the custom nat chain holding the metadata redirect rule. A
	// dedicated chain keeps rule replacement simple: flush and refill, the
	// PREROUTING hook only carries the jump.
	Chain = "PODID-METADATA"

	// ruleComment marks the rules this redirector owns.
	ruleComment = "pod-identity metadata redirect"

	// ensureInterval is how often the rules are re-checked. CNI agents and
	// kube-proxy restarts occasionally flush foreign chains.
	ensureInterval = 30 * time.Second

	execTimeout = 10 * time.Second
)

// runProgFunc executes iptables with the given arguments. Swapped out in
// tests for a recorder.
type runProgFunc func(args []string, quiet bool) error

// Redirector installs and maintains the nat rules that steer pod traffic for
// the instance metadata address into the node-local interceptor. It runs as
// a non-leader runnable next to the interceptor server and removes its rules
// on shutdown.
type Redirector struct {
	// destination is the host:port the interceptor listens on.
	destination string

	log     logr.Logger
	runProg runProgFunc
}

// NewRedirector creates a redirector pointing metadata traffic at the
// interceptor listening on destination (host:port on the node).
func NewRedirector(destination string, log logr.Logger) *Redirector {
	r := &Redirector{
		destination: destination,
		log:         log,
	}
	r.runProg = r.execIptables
	return r
}

// NeedLeaderElection implements LeaderElectionRunnable. Every node needs its
// own rules.
func (r *Redirector) NeedLeaderElection() bool {
	return false
}

// Start installs the redirect rules and keeps them present until the context
// is done, then tears them down. The initial install retries with backoff so
// a held xtables lock does not fail agent startup.
func (r *Redirector) Start(ctx context.Context) error {
	installBackoff := backoff.NewForeverWatchBackoff()
	for {
		err := r.ensure()
		if err == nil {
			break
		}
		r.log.Error(err, "unable to install metadata redirect rules, retrying")

		select {
		case <-ctx.Done():
			return pkgerrors.Wrap(err, "failed to install metadata redirect rules before shutdown")
		case <-time.After(installBackoff.Step()):
		}
	}
	r.log.Info("metadata redirect rules installed", "chain", Chain, "destination", r.destination)

	// Re-ensure on a flat interval, see ensureInterval.
	_ = backoff.ExponentialBackoffWithContext(ctx, wait.Backoff{Duration: ensureInterval}, func(context.Context) {
		if err := r.ensure(); err != nil {
			r.log.Error(err, "unable to restore metadata redirect rules")
		}
	})

	r.teardown()
	r.log.Info("metadata redirect rules removed", "chain", Chain)
	return nil
}

// ensure converges the chain and its rules. Rules are checked before they
// are added, a second ensure run is a no-op.
func (r *Redirector) ensure() error {
	// Chain creation fails when the chain already exists, the common case.
	_ = r.runProg([]string{"-t", "nat", "-N", Chain}, true)

	dnat := dnatRule(r.destination)
	if err := r.runProg(check(Chain, dnat), true); err != nil {
		if err := r.runProg(append([]string{"-t", "nat", "-A", Chain}, dnat...), false); err != nil {
			return pkgerrors.Wrap(err, "unable to add DNAT rule")
		}
	}

	jump := jumpRule()
	if err := r.runProg(check("PREROUTING", jump), true); err != nil {
		if err := r.runProg(append([]string{"-t", "nat", "-I", "PREROUTING"}, jump...), false); err != nil {
			return pkgerrors.Wrap(err, "unable to install PREROUTING jump")
		}
	}
	return nil
}

// teardown removes the jump, flushes and deletes the chain. Failures are
// logged and ignored: partial state is converged away on the next start.
func (r *Redirector) teardown() {
	_ = r.runProg(append([]string{"-t", "nat", "-D", "PREROUTING"}, jumpRule()...), true)
	_ = r.runProg([]string{"-t", "nat", "-F", Chain}, true)
	_ = r.runProg([]string{"-t", "nat", "-X", Chain}, true)
}

// jumpRule matches pod traffic for the metadata address and feeds it into
// the chain. Only plain HTTP is redirected; IMDS serves port 80.
func jumpRule() []string {
	return []string{
		"-d", aadclient.DefaultMetadataHost,
		"-p", "tcp", "--dport", "80",
		"-m", "comment", "--comment", ruleComment,
		"-j", Chain,
	}
}

// dnatRule rewrites the destination to the interceptor.
func dnatRule(destination string) []string {
	return []string{
		"-d", aadclient.DefaultMetadataHost,
		"-p", "tcp", "--dport", "80",
		"-m", "comment", "--comment", ruleComment,
		"-j", "DNAT", "--to-destination", destination,
	}
}

// check builds the -C form of an append/insert rule.
func check(chain string, rule []string) []string {
	return append([]string{"-t", "nat", "-C", chain}, rule...)
}

func (r *Redirector) execIptables(args []string, quiet bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), execTimeout)
	defer cancel()

	// --wait takes the xtables lock instead of failing on contention.
	cmd := exec.CommandContext(ctx, "iptables", append([]string{"--wait"}, args...)...)
	output, err := cmd.CombinedOutput()
	if err != nil && !quiet {
		r.log.Info("iptables failed", "args", args, "output", string(output))
	}
	return err
}

// Destination reports the DNAT target, for logs and tests.
func (r *Redirector) Destination() string {
	return r.destination
}

// ListenAddr builds the interceptor bind address on the node IP. The
// redirector DNATs to this address, so the interceptor must not bind the
// loopback interface only.
func ListenAddr(nodeIP string, port string) string {
	return net.JoinHostPort(nodeIP, port)
}
