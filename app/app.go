// Package app assembles the system: HAL, address space, task manager,
// syscall dispatcher, console and accounting journal.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"ember/apps"
	"ember/hal"
	"ember/internal/acct"
	"ember/internal/buildinfo"
	"ember/internal/config"
	"ember/internal/console"
	"ember/kernel"
	"ember/kernel/loader"
	"ember/kernel/mm"
	"ember/kernel/sys"
)

// ErrKernelPanic is returned by Step once the kernel has panicked.
var ErrKernelPanic = errors.New("kernel panic")

// tableRefreshTicks is how often, in HAL ticks, Step redraws the task table.
const tableRefreshTicks = 50

// Option configures Boot.
type Option func(*options)

type options struct {
	echo io.Writer
}

// WithEcho copies app stdout to w as well as the console.
func WithEcho(w io.Writer) Option {
	return func(o *options) { o.echo = w }
}

// System is a booted machine.
type System struct {
	h     hal.HAL
	cfg   config.Config
	log   *slog.Logger
	clock hal.Clock

	mem     *mm.AddressSpace
	tm      *kernel.TaskManager
	disp    *sys.Dispatcher
	con     *console.Console
	journal *acct.Journal
	bootID  string
	loaded  []loader.Loaded

	startOnce sync.Once
	done      chan error
	halted    atomic.Bool
	panicked  atomic.Pointer[kernel.PanicInfo]

	ticks       uint64
	lastRefresh uint64
}

// Boot builds the system described by cfg on h and loads its apps. The task
// set does not run until Start.
func Boot(ctx context.Context, h hal.HAL, cfg config.Config, log *slog.Logger, opts ...Option) (*System, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	images, err := Images(cfg)
	if err != nil {
		return nil, err
	}

	s := &System{
		h:     h,
		cfg:   cfg,
		log:   log,
		clock: h.Time().Clock(),
		done:  make(chan error, 1),
	}

	var fb hal.Framebuffer
	if d := h.Display(); d != nil {
		fb = d.Framebuffer()
	}
	var conOpts []console.Option
	if o.echo != nil {
		conOpts = append(conOpts, console.WithEcho(o.echo))
	}
	s.con = console.New(fb, conOpts...)
	installPanicHandler(h, s)

	if cfg.AcctPath != "" {
		s.journal, err = acct.Open(ctx, cfg.AcctPath, log)
		if err != nil {
			return nil, err
		}
		s.bootID, err = s.journal.StartBoot(ctx, len(images))
		if err != nil {
			s.journal.Close()
			return nil, err
		}
	}

	klog := log.With("component", "kernel")
	s.mem = mm.NewAddressSpace(mm.DefaultBase, cfg.RegionBytes*len(images))
	s.tm = kernel.NewTaskManager(s.clock, kernel.GoSwitcher{},
		kernel.WithLogger(klog),
		kernel.WithExitObserver(s.taskExited),
	)
	s.disp = sys.NewDispatcher(sys.NewProcess(s.tm, s.clock, s.mem, s.con, klog), cfg.TimeSliceMs)

	s.loaded, err = loader.Load(s.tm, s.mem, s.disp, cfg.RegionBytes, images, klog)
	if err != nil {
		s.Close()
		return nil, err
	}

	fmt.Fprintf(s.con, "ember %s: %d apps loaded\n", buildinfo.Short(), len(s.loaded))
	s.con.SetTasks(s.tm.Tasks(), s.clock.Millis())
	return s, nil
}

// Images resolves the apps of cfg, or the default set when it names none.
func Images(cfg config.Config) ([]loader.Image, error) {
	if len(cfg.Apps) == 0 {
		var out []loader.Image
		for _, name := range apps.Default() {
			img, err := apps.Lookup(name, name)
			if err != nil {
				return nil, err
			}
			out = append(out, img)
		}
		return out, nil
	}

	out := make([]loader.Image, 0, len(cfg.Apps))
	for _, a := range cfg.Apps {
		if a.Lua != "" {
			img, err := loader.LoadLuaFile(a.Name, a.Lua)
			if err != nil {
				return nil, err
			}
			out = append(out, img)
			continue
		}
		img, err := apps.Lookup(a.Name, a.Builtin)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

// BootID returns the accounting id of this boot, empty without a journal.
func (s *System) BootID() string { return s.bootID }

// Loaded lists the loaded apps.
func (s *System) Loaded() []loader.Loaded { return s.loaded }

// Tasks copies the task table.
func (s *System) Tasks() []kernel.TaskSnapshot { return s.tm.Tasks() }

// Console returns the system console.
func (s *System) Console() *console.Console { return s.con }

// Start runs the task set on its own goroutine.
func (s *System) Start() {
	s.startOnce.Do(func() {
		go func() { s.done <- s.tm.Run() }()
	})
}

// Step is the per-frame hook for the host runners. It refreshes the console
// and returns hal.ErrShutdown once every task has exited.
func (s *System) Step() error {
	if info := s.panicked.Load(); info != nil {
		return fmt.Errorf("%w: task %d: %v", ErrKernelPanic, info.TaskID, info.Value)
	}
	if s.halted.Load() {
		return hal.ErrShutdown
	}

	s.drainTicks()
	select {
	case err := <-s.done:
		s.halted.Store(true)
		s.con.SetTasks(s.tm.Tasks(), s.clock.Millis())
		s.con.Present()
		if herr := s.halt(); err == nil {
			err = herr
		}
		if err != nil {
			return err
		}
		return hal.ErrShutdown
	default:
	}

	if s.ticks-s.lastRefresh >= tableRefreshTicks {
		s.lastRefresh = s.ticks
		s.con.SetTasks(s.tm.Tasks(), s.clock.Millis())
	}
	return s.con.Present()
}

// Close releases the accounting journal.
func (s *System) Close() error {
	if s.journal == nil {
		return nil
	}
	return s.journal.Close()
}

func (s *System) drainTicks() {
	t := s.h.Time()
	if t == nil || t.Ticks() == nil {
		return
	}
	for {
		select {
		case seq := <-t.Ticks():
			s.ticks = seq
		default:
			return
		}
	}
}

func (s *System) halt() error {
	s.log.Info("system halted", "apps", len(s.loaded))
	if s.journal == nil {
		return nil
	}
	return s.journal.HaltBoot(context.Background(), s.bootID)
}

// taskExited runs on the exiting task, outside the manager lock.
func (s *System) taskExited(snap kernel.TaskSnapshot) {
	if s.journal == nil {
		return
	}
	if err := s.journal.RecordExit(context.Background(), s.bootID, snap, s.clock.Millis()); err != nil {
		s.log.Error("accounting: record exit", "task", snap.ID, "err", err)
	}
}
