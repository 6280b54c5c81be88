package supervisor

import (
	"bufio"
	"database/sql"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/loykin/chainforge/internal/event"
	"github.com/loykin/chainforge/internal/history"
	"github.com/loykin/chainforge/internal/metrics"
	"github.com/loykin/chainforge/internal/registry"
)

// Supervisor owns the lifecycle of the managed services: the full node,
// the CPU miner, the wallet service and the in-process gateway. All state
// lives in the registry; the supervisor itself only holds immutable wiring.
//
// Methods are safe for concurrent use. The registry lock is never held
// across a spawn, signal or network call.
type Supervisor struct {
	opts Options
	reg  *registry.Registry
	bus  *event.Bus
	log  *slog.Logger

	wg sync.WaitGroup
}

func New(opts Options, bus *event.Bus, log *slog.Logger) *Supervisor {
	if bus == nil {
		bus = event.NewBus()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Supervisor{
		opts: opts.withDefaults(),
		reg:  registry.New(),
		bus:  bus,
		log:  log,
	}
}

// Registry exposes the shared state registry, mainly for status endpoints.
func (s *Supervisor) Registry() *registry.Registry { return s.reg }

// Bus exposes the event bus the supervisor publishes to.
func (s *Supervisor) Bus() *event.Bus { return s.bus }

// spawn starts cmd with piped output and wires the relay and monitor
// goroutines. It must be called only after a successful BeginStart; the
// caller commits or aborts the registry claim based on the returned error.
func (s *Supervisor) spawn(svc registry.Service, cmd *exec.Cmd, stdoutEvent, stderrEvent string) (int, error) {
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdin = nil

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, &SpawnError{Service: svc, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return 0, &SpawnError{Service: svc, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return 0, &SpawnError{Service: svc, Err: err}
	}
	pid := cmd.Process.Pid

	outFile, errFile := s.opts.Log.Writers(string(svc))
	s.wg.Add(3)
	go s.relay(svc, stdout, stdoutEvent, outFile)
	go s.relay(svc, stderr, stderrEvent, errFile)
	go s.monitor(svc, cmd, pid)

	return pid, nil
}

// relay reads the stream line by line, publishing each line as an event
// and mirroring it to the capture file. Lines that are not valid UTF-8
// are dropped rather than garbling subscribers.
func (s *Supervisor) relay(svc registry.Service, r io.Reader, name string, w io.WriteCloser) {
	defer s.wg.Done()
	if w != nil {
		defer func() { _ = w.Close() }()
	}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if !utf8.ValidString(line) {
			continue
		}
		s.bus.Publish(event.Event{Name: name, Service: string(svc), Payload: line})
		if w != nil {
			_, _ = io.WriteString(w, line+"\n")
		}
	}
}

// monitor waits for the child to exit, then clears the registry record and
// notifies subscribers. The PID guard in ClearExited keeps a monitor from a
// previous run from clobbering a newer run's record.
func (s *Supervisor) monitor(svc registry.Service, cmd *exec.Cmd, pid int) {
	defer s.wg.Done()
	err := cmd.Wait()

	var code any
	exit := sql.NullInt64{}
	if ps := cmd.ProcessState; ps != nil && ps.ExitCode() >= 0 {
		code = ps.ExitCode()
		exit = sql.NullInt64{Int64: int64(ps.ExitCode()), Valid: true}
	}

	// Exactly one monitor runs per spawn, so the stop is counted here
	// regardless of whether the record was already cleared by an explicit
	// stop; gating on ClearExited would lose those stops entirely.
	metrics.IncStop(string(svc))
	if s.reg.ClearExited(svc, pid) {
		s.log.Warn("service exited", "service", svc, "pid", pid, "exit_code", code, "err", err)
	} else {
		s.log.Debug("service exited after explicit stop", "service", svc, "pid", pid)
	}

	s.bus.Publish(event.Event{Name: terminatedEvent(svc), Service: string(svc), Payload: code})
	s.bus.Record(history.Event{
		Type:     history.EventStopped,
		Service:  string(svc),
		PID:      pid,
		ExitCode: exit,
	})
}

func terminatedEvent(svc registry.Service) string {
	switch svc {
	case registry.ServiceNode:
		return event.NodeTerminated
	case registry.ServiceMiner:
		return event.MinerTerminated
	case registry.ServiceWallet:
		return event.WalletTerminated
	default:
		return event.GatewayTerminated
	}
}

func (s *Supervisor) recordStart(svc registry.Service, pid int, detail string) {
	metrics.IncStart(string(svc))
	s.bus.Record(history.Event{
		Type:    history.EventStarted,
		Service: string(svc),
		PID:     pid,
		Detail:  detail,
	})
}

// settle pauses after a port reclaim so the OS releases the sockets.
func (s *Supervisor) settle(d time.Duration) {
	if d <= 0 {
		d = s.opts.PortSettle
	}
	time.Sleep(d)
}
