package show

import (
	"fmt"
	"os"

	"github.com/lunixbochs/elfhost/go/cmd"
	"github.com/lunixbochs/elfhost/go/vm"
)

func Main(args []string) {
	if len(args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <snapshot>\n", args[0])
		os.Exit(1)
	}
	p, err := os.ReadFile(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	space, err := vm.Restore(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", args[1], err)
		os.Exit(1)
	}
	fmt.Printf("[%s] %s\n", space.Arch, args[1])
	cmd.PrintMappings(os.Stdout, space, false)
}

func init() { cmd.Register("show", "<snapshot>", "print the mappings stored in a snapshot", Main) }
