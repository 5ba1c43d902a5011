// Package loader turns app images into tasks: it maps a memory region per
// app, builds the app's user.Env and hands the entry point to the task
// manager.
package loader

import (
	"errors"
	"fmt"
	"log/slog"

	"ember/kernel"
	"ember/kernel/mm"
	"ember/kernel/sys"
	"ember/user"
)

// ErrNoImages is returned when there is nothing to load.
var ErrNoImages = errors.New("no app images")

// Image is a loadable app.
type Image interface {
	Name() string
	// Run executes the app. Returning is an implicit exit(0).
	Run(env *user.Env)
}

// GoImage is an app written as a Go function returning its exit code.
type GoImage struct {
	name string
	main func(env *user.Env) int32
}

// NewGoImage returns an image running main.
func NewGoImage(name string, main func(env *user.Env) int32) *GoImage {
	return &GoImage{name: name, main: main}
}

func (g *GoImage) Name() string { return g.name }

func (g *GoImage) Run(env *user.Env) {
	env.Exit(g.main(env))
}

// Loaded describes one loaded app.
type Loaded struct {
	TaskID int
	Name   string
	Region mm.Region
}

// Load maps a region of regionBytes for every image and adds a task for it,
// in order. Task ids follow image order.
func Load(tm *kernel.TaskManager, mem *mm.AddressSpace, trap user.Trap, regionBytes int, images []Image, log *slog.Logger) ([]Loaded, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	out := make([]Loaded, 0, len(images))
	for _, img := range images {
		region, err := mem.Map(img.Name(), regionBytes)
		if err != nil {
			return out, fmt.Errorf("load %q: %w", img.Name(), err)
		}
		env, err := user.NewEnv(img.Name(), trap, mem, region)
		if err != nil {
			return out, fmt.Errorf("load %q: %w", img.Name(), err)
		}

		img := img
		id, err := tm.AddTask(img.Name(), func() { run(img, env, log) })
		if err != nil {
			return out, err
		}
		log.Info("[kernel] loaded app", "task", id, "name", img.Name(),
			"region", fmt.Sprintf("[%#x, %#x)", uint64(region.Start), uint64(region.End)))
		out = append(out, Loaded{TaskID: id, Name: img.Name(), Region: region})
	}
	return out, nil
}

// run executes img as the current task. A panic in app code kills the task
// with sys.ExitFault. After a kernel panic the task keeps the CPU and parks,
// which halts the machine.
func run(img Image, env *user.Env, log *slog.Logger) {
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if kernel.InPanicMode() {
			select {}
		}
		log.Error("[kernel] application panicked, kernel killed it", "name", img.Name(), "panic", r)
		env.Exit(sys.ExitFault)
	}()
	img.Run(env)
	env.Exit(0)
}
