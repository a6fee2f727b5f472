package runner

import (
	"bytes"
	"context"
	"io"

	"github.com/dimiro1/banner"
)

type State int

const (
	StateNew State = iota
	StateStarting
	StateRunning
	StateDraining
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

type Runner interface {
	Run(ctx context.Context) error
	Stop() error
	State() State
}

// Hooks run around the lifecycle. Banner, when set, receives the startup
// banner.
type Hooks struct {
	OnStart func()
	OnStop  func()
	Banner  io.Writer
}

type Drainer interface {
	Drain() error
}

// Version is stamped at build time with -ldflags "-X".
var Version = "dev"

func PrintBanner(w io.Writer) {
	if w == nil {
		return
	}
	tpl := "{{ .Title \"SCENECUE\" \"\" 0 }}\nVersion: " + Version + "\nGo: {{ .GoVersion }}\n"
	banner.Init(w, true, false, bytes.NewBufferString(tpl))
}
