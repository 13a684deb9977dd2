package cmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/elfhost/go/arch"
	"github.com/lunixbochs/elfhost/go/cpu/unicorn"
	"github.com/lunixbochs/elfhost/go/loader"
	"github.com/lunixbochs/elfhost/go/models"
	"github.com/lunixbochs/elfhost/go/vm"
)

const defaultStackSize = 8 << 20

type strslice []string

func (s *strslice) String() string {
	return fmt.Sprintf("%v", *s)
}

func (s *strslice) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// LoadCmd loads an executable into a fresh address space and reports the result.
type LoadCmd struct {
	Config *models.Config

	SetupFlags func() error
	// runs after a successful load, before the summary is printed
	AfterLoad func(space *vm.Space, layout *models.Layout) error

	Flags *flag.FlagSet
	Out   io.Writer
}

func NewLoadCmd() *LoadCmd {
	fs := flag.NewFlagSet("cli", flag.ExitOnError)
	return &LoadCmd{Flags: fs, Out: os.Stdout}
}

type stackTracer interface {
	StackTrace() errors.StackTrace
}

func (c *LoadCmd) PrintError(err error) {
	// print an error, and a stacktrace if available
	fmt.Fprintf(os.Stderr, "%s\n", strings.Repeat("-", 40))
	fmt.Fprintf(os.Stderr, "Error: %s (%s)\n", err, models.Errno(err))
	var st stackTracer
	if !errors.As(err, &st) {
		return
	}
	// parse full path and method name for each stack frame
	var frames [][]string
	for _, f := range st.StackTrace() {
		fullpath := ""
		fileline := fmt.Sprintf("%s:%d", f, f)
		method := fmt.Sprintf("%n", f)

		frame := fmt.Sprintf("%+s", f)
		tmp := strings.SplitN(frame, "\n", 3)
		if len(tmp) == 2 {
			pathsplit := strings.Split(tmp[0], "/")
			method = pathsplit[len(pathsplit)-1]
			fullpath = strings.TrimSpace(tmp[1])
		}
		frames = append(frames, []string{fullpath, fileline, method})
		if method == "main.main" {
			break
		}
	}
	// calculate column widths
	widths := make([]int, 3)
	for _, f := range frames {
		for i, s := range f {
			if len(s) > widths[i] {
				widths[i] = len(s)
			}
		}
	}
	for _, f := range frames {
		for i := 0; i < 2; i++ {
			if widths[i] > 0 {
				pad := strings.Repeat(" ", widths[i]-len(f[i]))
				fmt.Fprintf(os.Stderr, "%s%s | ", f[i], pad)
			}
		}
		fmt.Fprintf(os.Stderr, "%s()\n", f[2])
	}
}

// mergeEnv applies -env and -unset on top of the host environment.
func mergeEnv(env, set, unset []string) []string {
	skip := make(map[string]bool)
	var out []string
	for _, v := range set {
		if name, _, ok := strings.Cut(v, "="); ok {
			skip[name] = true
			out = append(out, v)
		} else {
			logrus.Warnf("skipping invalid env set %#v", v)
		}
	}
	for _, v := range unset {
		skip[v] = true
	}
	for _, v := range env {
		if name, _, ok := strings.Cut(v, "="); ok && !skip[name] {
			out = append(out, v)
		}
	}
	return out
}

func newSpace(a *models.Arch, backend string) (*vm.Space, error) {
	switch backend {
	case "sim":
		return vm.NewSimSpace(a), nil
	case "unicorn":
		b, err := unicorn.BuilderFor(a)
		if err != nil {
			return nil, err
		}
		u, err := b.New()
		if err != nil {
			return nil, err
		}
		return vm.NewSpace(a, u), nil
	}
	return nil, errors.Errorf("unknown backend %q (sim or unicorn)", backend)
}

// Run parses argv and loads the executable it names. It returns the process exit code.
func (c *LoadCmd) Run(argv, env []string) int {
	fs := c.Flags
	archName := fs.String("arch", "", "force architecture ("+strings.Join(arch.Names(), ", ")+")")
	prefix := fs.String("prefix", "", "library load prefix")
	base := fs.Uint64("base", 0, "force executable base address")
	ibase := fs.Uint64("interp-base", 0, "force interpreter base address")
	stackSize := fs.Uint64("stack", defaultStackSize, "stack reservation size, including guard pages")
	seed := fs.String("seed", "", "derive AT_RANDOM from this seed instead of the host RNG")
	hwcap := fs.Uint64("hwcap", 0, "override AT_HWCAP")
	configPath := fs.String("config", "", "config file (default: elfhost/config.toml in the user config dir)")
	backend := fs.String("backend", "sim", "target memory backend: sim or unicorn")
	dis := fs.Int("dis", 0, "disassemble this many instructions at the entry point")
	stackDump := fs.Bool("stackdump", false, "hex dump the initial stack")
	color := fs.Bool("color", false, "force colored output")
	verbose := fs.Bool("v", false, "verbose output")

	var envSet strslice
	var envUnset strslice
	fs.Var(&envSet, "env", "set environment var in the form name=value")
	fs.Var(&envUnset, "unset", "unset environment variable")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <exe> [args...]\n\nOptions:\n", argv[0])
		var flags []*flag.Flag
		fs.VisitAll(func(f *flag.Flag) { flags = append(flags, f) })
		models.PrintFlags(os.Stderr, flags)
		fmt.Fprintf(os.Stderr, "\nExample:\n  %s -prefix /srv/i386-root -seed 1 -dis 8 /bin/ls -l\n", argv[0])
	}
	if c.SetupFlags != nil {
		if err := c.SetupFlags(); err != nil {
			panic(err)
		}
	}
	fs.Parse(argv[1:])
	args := fs.Args()
	if len(args) < 1 {
		fs.Usage()
		return 1
	}

	// build configuration: defaults, then config file, then flags
	config := &models.Config{StackSize: defaultStackSize}
	path := *configPath
	if path == "" {
		path = models.DefaultConfigPath()
	}
	if path != "" {
		if err := models.LoadConfig(path, config); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "prefix":
			abs, err := filepath.Abs(*prefix)
			if err != nil {
				abs = *prefix
			}
			config.LoadPrefix = abs
		case "base":
			config.ForceBase = *base
		case "interp-base":
			config.ForceInterpBase = *ibase
		case "stack":
			config.StackSize = *stackSize
		case "seed":
			config.Seed = *seed
		case "hwcap":
			config.Hwcap = *hwcap
		case "color":
			config.Color = *color
		case "v":
			config.Verbose = *verbose
		}
	})
	c.Config = config

	logrus.SetOutput(colorable.NewColorableStderr())
	if config.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	if f, ok := c.Out.(*os.File); ok && !config.Color {
		config.Color = isatty.IsTerminal(f.Fd())
		if config.Color {
			c.Out = colorable.NewColorable(f)
		}
	}

	opts := &loader.Options{Config: config}
	if *archName != "" {
		a, err := arch.GetArch(*archName)
		if err != nil {
			c.PrintError(err)
			return 1
		}
		opts.Arch = a
	}
	env = mergeEnv(append(env, config.Env...), envSet, envUnset)

	exe, err := loader.FromFile(args[0], args, env, opts)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	defer exe.Close()
	space, err := newSpace(exe.Arch, *backend)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	layout, err := exe.Load(space, config.StackSize)
	if err != nil {
		c.PrintError(err)
		return 1
	}
	if c.AfterLoad != nil {
		if err := c.AfterLoad(space, layout); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	p := &printer{w: c.Out, color: config.Color}
	p.Layout(exe, layout, space)
	p.Mappings(space)
	if *stackDump {
		if err := p.StackDump(space, layout); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	if *dis > 0 {
		if err := p.Disas(space, layout, *dis); err != nil {
			c.PrintError(err)
			return 1
		}
	}
	return 0
}
