package dump

import (
	"os"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/cmd"
	"github.com/lunixbochs/elfhost/go/models"
	"github.com/lunixbochs/elfhost/go/vm"
)

func Main(args []string) {
	c := cmd.NewLoadCmd()
	var out *string
	c.SetupFlags = func() error {
		out = c.Flags.String("o", "", "write the address space snapshot to this file")
		return nil
	}
	c.AfterLoad = func(space *vm.Space, layout *models.Layout) error {
		if *out == "" {
			return errors.New("dump requires -o <file>")
		}
		p, err := vm.Snapshot(space)
		if err != nil {
			return err
		}
		return errors.WithStack(os.WriteFile(*out, p, 0644))
	}
	os.Exit(c.Run(args, os.Environ()))
}

func init() { cmd.Register("dump", "-o <file> [options] <exe> [args...]", "load a binary and save a snapshot of its address space", Main) }
