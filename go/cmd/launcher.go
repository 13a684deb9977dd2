package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

type command struct {
	name, args, desc string
	main             func(args []string)
}

var commands = make(map[string]*command)

// Register adds a subcommand. args is the argument synopsis shown in the usage text.
func Register(name, args, desc string, main func(args []string)) {
	commands[name] = &command{name: name, args: args, desc: desc, main: main}
}

func usage(w io.Writer, prog string) {
	names := make([]string, 0, len(commands))
	pad := 0
	for name, c := range commands {
		names = append(names, name)
		if n := len(name) + 1 + len(c.args); n > pad {
			pad = n
		}
	}
	sort.Strings(names)
	fmt.Fprintf(w, "Usage: %s <command> [options]\n\nCommands:\n", prog)
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(w, "  %-*s  %s\n", pad, name+" "+c.args, c.desc)
	}
	fmt.Fprintf(w, "\nExamples:\n  %s load -seed 1 -stackdump /bin/true\n  %s dump -o true.snap /bin/true && %s show true.snap\n", prog, prog, prog)
}

// lookup finds the subcommand named by argv[1] and rewrites argv for it.
func lookup(argv []string) (*command, []string, bool) {
	if len(argv) < 2 {
		return nil, nil, false
	}
	c, ok := commands[argv[1]]
	if !ok {
		return nil, nil, false
	}
	return c, append([]string{strings.Join(argv[:2], " ")}, argv[2:]...), true
}

func Main() {
	c, args, ok := lookup(os.Args)
	if !ok {
		if len(os.Args) >= 2 {
			fmt.Fprintf(os.Stderr, "Unknown command %q.\n\n", os.Args[1])
		}
		usage(os.Stderr, os.Args[0])
		os.Exit(1)
	}
	c.main(args)
}
