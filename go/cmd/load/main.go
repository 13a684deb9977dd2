package load

import (
	"os"

	"github.com/lunixbochs/elfhost/go/cmd"
)

func Main(args []string) {
	os.Exit(cmd.NewLoadCmd().Run(args, os.Environ()))
}

func init() { cmd.Register("load", "[options] <exe> [args...]", "load a binary and print its initial layout", Main) }
