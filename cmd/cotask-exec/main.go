// Command cotask-exec is a thin driver over the cotask library: it reads a
// YAML config, spawns one scheduler per task group named on the command
// line, and waits for them to drain. It does not implement any scheduling
// policy itself — everything beyond flag/config parsing and exit-code
// bookkeeping lives in the library.
package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cotask/cotask"
	"github.com/joeycumines/logiface"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/tklauser/numcpus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// group is one "name:count[:syncmode]" command-line argument: spawn count
// worker tasks under a dedicated scheduler named name, with that scheduler
// latching syncmode (default: the runtime's configured default).
type group struct {
	name          string
	count         int
	syncMode      cotask.SyncMode
	syncModeIsSet bool // distinguishes "field omitted" from "explicitly AUTO"
}

// parseGroup accepts "name", "name:count", or "name:count:syncmode". A
// group whose count is omitted or left empty is filled in by the caller
// with the -n default; an explicit count must be a positive integer.
func parseGroup(spec string) (group, error) {
	fields := strings.Split(spec, ":")
	if len(fields) < 1 || len(fields) > 3 || fields[0] == "" {
		return group{}, fmt.Errorf("invalid group spec %q: want name[:count[:syncmode]]", spec)
	}
	g := group{name: fields[0]}
	if len(fields) >= 2 && fields[1] != "" {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return group{}, fmt.Errorf("invalid group spec %q: count must be a positive integer", spec)
		}
		g.count = n
	}
	if len(fields) == 3 && fields[2] != "" {
		g.syncModeIsSet = true
		switch strings.ToUpper(fields[2]) {
		case "BUSYWAIT":
			g.syncMode = cotask.SyncBusyWait
		case "YIELD":
			g.syncMode = cotask.SyncYield
		case "BLOCKING":
			g.syncMode = cotask.SyncBlocking
		case "AUTO":
			g.syncMode = cotask.SyncAuto
		default:
			return group{}, fmt.Errorf("invalid group spec %q: unknown sync mode %q", spec, fields[2])
		}
	}
	return g, nil
}

const (
	exitOK          = 0
	exitArgs        = 2
	exitDeadlocked  = 9
	drainPollPeriod = 10 * time.Millisecond
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := pflag.NewFlagSet("cotask-exec", pflag.ContinueOnError)
	configFile := fs.StringP("config", "f", "", "path to a cotask_config YAML file")
	defaultCount := fs.IntP("n", "n", 0, "default task count per group when a spec omits it (default: online CPU count)")
	logFile := fs.String("log-file", "", "rotate structured logs to this file instead of stderr")
	logLevel := fs.String("log-level", "info", "logrus level: trace, debug, info, warning, error")

	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		fmt.Fprintln(os.Stderr, err)
		return exitArgs
	}

	var cfg *cotask.Config
	if *configFile != "" {
		loaded, err := cotask.LoadConfig(*configFile, nil)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cotask-exec: %v\n", err)
			return exitArgs
		}
		cfg = loaded
	} else {
		cfg = cotask.DefaultConfig()
	}

	if *defaultCount <= 0 {
		if n, err := numcpus.GetOnline(); err == nil && n > 0 {
			*defaultCount = n
		} else {
			*defaultCount = 1
		}
	}

	backend := logrus.New()
	if lvl, err := logrus.ParseLevel(*logLevel); err == nil {
		backend.SetLevel(lvl)
	}
	var out io.Writer = os.Stderr
	if *logFile != "" {
		out = &lumberjack.Logger{Filename: *logFile, MaxSize: 64, MaxBackups: 3, MaxAge: 7}
	}
	backend.SetOutput(out)
	cotask.SetStructuredLogger(cotask.NewLogrusLogger(backend, logifaceLevel(backend.Level)))

	groupSpecs := fs.Args()
	if len(groupSpecs) == 0 {
		fmt.Fprintln(os.Stderr, "cotask-exec: at least one group spec (name:count[:syncmode]) is required")
		return exitArgs
	}

	var groups []group
	for _, spec := range groupSpecs {
		if spec == "::" {
			continue // optional visual separator between group specs
		}
		g, err := parseGroup(spec)
		if err != nil {
			fmt.Fprintln(os.Stderr, "cotask-exec:", err)
			return exitArgs
		}
		if g.count == 0 {
			g.count = *defaultCount
		}
		groups = append(groups, g)
	}

	rt, err := cotask.NewRuntime(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cotask-exec: %v\n", err)
		return exitArgs
	}

	var leaves []*cotask.Task
	for _, g := range groups {
		sched, err := rt.NewScheduler(rt.Root(), g.name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "cotask-exec: %v\n", err)
			return exitArgs
		}
		if g.syncModeIsSet {
			_ = sched.SetSyncMode(g.syncMode)
		}
		for i := 0; i < g.count; i++ {
			name := fmt.Sprintf("%s/%d", g.name, i)
			t, err := rt.Spawn(sched, name, workerBody)
			if err != nil {
				fmt.Fprintf(os.Stderr, "cotask-exec: %v\n", err)
				return exitArgs
			}
			leaves = append(leaves, t)
		}
	}

	go rt.Run()

	return waitForDrain(rt, leaves)
}

// workerBody is the placeholder unit of work spawned for each leaf task:
// it yields once (demonstrating cooperative multitasking under its
// group's scheduler) and returns.
func workerBody(t *cotask.Task) {
	_ = t.Runtime().Yield()
}

func waitForDrain(rt *cotask.Runtime, leaves []*cotask.Task) int {
	for {
		allDone := true
		for _, t := range leaves {
			select {
			case <-t.Done():
			default:
				allDone = false
			}
		}
		if allDone {
			return exitOK
		}
		if rt.DeadlockSuspected() {
			return exitDeadlocked
		}
		time.Sleep(drainPollPeriod)
	}
}

// logifaceLevel maps a logrus.Level to the closest logiface.Level so the
// structured logger and the CLI's own --log-level flag stay consistent.
func logifaceLevel(l logrus.Level) logiface.Level {
	switch l {
	case logrus.TraceLevel:
		return logiface.LevelTrace
	case logrus.DebugLevel:
		return logiface.LevelDebug
	case logrus.WarnLevel:
		return logiface.LevelWarning
	case logrus.ErrorLevel:
		return logiface.LevelError
	case logrus.FatalLevel:
		return logiface.LevelAlert
	case logrus.PanicLevel:
		return logiface.LevelEmergency
	default:
		return logiface.LevelInformational
	}
}
