package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/planloop/internal/engine"
	"github.com/ChamsBouzaiene/planloop/internal/protocol"
)

func engineCmd(flags *globalFlags) *cobra.Command {
	var stdioMode bool
	cmd := &cobra.Command{
		Use:   "engine",
		Short: "Serve the agent to another process",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !stdioMode {
				return errors.New("no transport selected (use --stdio)")
			}
			env, err := prepareRuntimeEnv(cmd.Context(), flags, envNeeds{brain: true, tools: true, journal: !flags.noJournal})
			if err != nil {
				return err
			}
			defer env.Close()
			return runStdIOEngine(cmd.Context(), env)
		},
	}
	cmd.Flags().BoolVar(&stdioMode, "stdio", false, "serve the engine over the NDJSON stdio protocol")
	return cmd
}

func runStdIOEngine(ctx context.Context, env *runtimeEnv) error {
	env.Logger.Info("starting engine stdio bridge")
	runner := newStdIORunner(os.Stdin, os.Stdout, env.Tools, env.NewAgent, env.Logger)
	runner.emitEvent(protocol.NewStatusEvent("", "engine_ready", "stdio protocol ready"))
	return runner.Run(ctx)
}

// agentFactory builds an agent for one request. All agents of a runner share mem.
type agentFactory func(ctx context.Context, maxSteps int, mem *engine.Memory) (*engine.Agent, error)

type activeRun struct {
	requestID string
	cancel    context.CancelFunc
}

type stdioRunner struct {
	scanner  *bufio.Scanner
	writer   *bufio.Writer
	events   chan protocol.Event
	tools    *engine.Registry
	newAgent agentFactory
	memory   *engine.Memory
	logger   *slog.Logger

	mu     sync.Mutex
	active *activeRun
	wg     sync.WaitGroup
}

func newStdIORunner(in io.Reader, out io.Writer, tools *engine.Registry, newAgent agentFactory, logger *slog.Logger) *stdioRunner {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	if logger == nil {
		logger = slog.Default()
	}

	return &stdioRunner{
		scanner:  scanner,
		writer:   bufio.NewWriter(out),
		events:   make(chan protocol.Event, 256),
		tools:    tools,
		newAgent: newAgent,
		memory:   engine.NewMemory(),
		logger:   logger,
	}
}

// Run reads commands until stdin closes, then waits for the in-flight run
// and flushes its remaining events.
func (r *stdioRunner) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 1)
	go r.flushEvents(errCh)

	for r.scanner.Scan() {
		line := strings.TrimSpace(r.scanner.Text())
		if line == "" {
			continue
		}
		if err := r.handleLine(ctx, line); err != nil {
			r.logger.Warn("stdio command error", "error", err)
		}
	}

	if err := r.scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
		r.emitEvent(protocol.NewErrorEvent("", fmt.Sprintf("stdin error: %v", err)))
		// The client is gone; stop the run rather than finish it.
		r.cancelActive("")
	}

	r.wg.Wait()
	close(r.events)
	return <-errCh
}

// flushEvents drains the event channel until it is closed. It keeps draining
// after a write error so emitters never block.
func (r *stdioRunner) flushEvents(errCh chan<- error) {
	var writeErr error
	for ev := range r.events {
		if writeErr != nil {
			continue
		}
		writeErr = r.writeEvent(ev)
	}
	if writeErr == nil {
		writeErr = r.writer.Flush()
	}
	errCh <- writeErr
}

func (r *stdioRunner) writeEvent(ev protocol.Event) error {
	payload, err := protocol.MarshalEvent(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if _, err := r.writer.Write(append(payload, '\n')); err != nil {
		return fmt.Errorf("write event: %w", err)
	}

	return r.writer.Flush()
}

func (r *stdioRunner) emitEvent(ev protocol.Event) {
	r.events <- ev
}

func (r *stdioRunner) handleLine(ctx context.Context, line string) error {
	cmd, err := protocol.DecodeCommand([]byte(line))
	if err != nil {
		r.emitEvent(protocol.NewErrorEvent("", err.Error()))
		return err
	}

	switch c := cmd.(type) {
	case protocol.UserMessageCommand:
		return r.startRun(ctx, c)
	case protocol.CancelRequestCommand:
		if !r.cancelActive(c.RequestID) {
			err := fmt.Errorf("no run in progress for request %q", c.RequestID)
			r.emitEvent(protocol.NewErrorEvent(c.RequestID, err.Error()))
			return err
		}
		r.emitEvent(protocol.NewCancelledEvent(c.RequestID, "cancelled by client"))
		return nil
	case protocol.ListToolsCommand:
		r.emitEvent(protocol.NewToolsEvent(r.tools.Describe()))
		return nil
	default:
		err := fmt.Errorf("unhandled command type: %s", cmd.GetType())
		r.emitEvent(protocol.NewErrorEvent("", err.Error()))
		return err
	}
}

// startRun launches one run in the background. Only one run may be in flight.
func (r *stdioRunner) startRun(ctx context.Context, c protocol.UserMessageCommand) error {
	r.mu.Lock()
	if r.active != nil {
		busy := r.active.requestID
		r.mu.Unlock()
		err := fmt.Errorf("request %s is still running", busy)
		r.emitEvent(protocol.NewErrorEvent(c.RequestID, err.Error()))
		return err
	}

	agent, err := r.newAgent(ctx, c.MaxSteps, r.memory)
	if err != nil {
		r.mu.Unlock()
		r.emitEvent(protocol.NewErrorEvent(c.RequestID, err.Error()))
		return err
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.active = &activeRun{requestID: c.RequestID, cancel: cancel}
	r.wg.Add(1)
	r.mu.Unlock()

	r.emitEvent(protocol.NewStatusEvent(c.RequestID, "running", ""))
	go func() {
		defer r.wg.Done()
		defer cancel()

		n := 0
		var final engine.StepResult
		for step := range agent.Run(runCtx, c.Message) {
			if step.IsFinal {
				final = step
				continue
			}
			n++
			r.emitEvent(protocol.NewStepEvent(c.RequestID, n, step))
		}

		runID, steps := "", n
		if rs := agent.LastRun(); rs != nil {
			runID, steps = rs.ID, rs.Step
		}

		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()

		r.emitEvent(protocol.NewDoneEvent(c.RequestID, runID, steps, final))
	}()
	return nil
}

// cancelActive cancels the in-flight run. An empty requestID matches any run.
func (r *stdioRunner) cancelActive(requestID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil || (requestID != "" && r.active.requestID != requestID) {
		return false
	}
	r.active.cancel()
	return true
}
