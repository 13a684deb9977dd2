package loader

import (
	"debug/elf"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/elfhost/go/arch"
	"github.com/lunixbochs/elfhost/go/kernel/linux"
	"github.com/lunixbochs/elfhost/go/models"
)

var UnknownMagic = errors.Wrap(models.ErrInvalidMagic, "could not identify file magic")

// Options are the collaborators used to open and load an executable.
// Zero fields get defaults from Config.
type Options struct {
	Config   *models.Config
	Resolver models.PathResolver
	Random   models.RandomSource
	// forces the architecture instead of picking it from EI_CLASS
	Arch *models.Arch
}

func (o *Options) withDefaults() *Options {
	var out Options
	if o != nil {
		out = *o
	}
	if out.Config == nil {
		out.Config = &models.Config{}
	}
	if out.Resolver == nil {
		out.Resolver = out.Config
	}
	if out.Random == nil {
		if out.Config.Seed != "" {
			out.Random = linux.NewSeededRandom(out.Config.Seed)
		} else {
			out.Random = linux.CryptoRandom{}
		}
	}
	return &out
}

func readIdent(r io.ReaderAt) ([]byte, error) {
	ident := make([]byte, elf.EI_NIDENT)
	if n, err := r.ReadAt(ident, 0); n < len(ident) {
		// a script can be shorter than an ELF ident
		if n > 0 && matchScript(ident[:n]) {
			return ident[:n], nil
		}
		return nil, errors.Wrapf(models.ErrTruncatedHeader, "read %d of %d ident bytes: %v", n, len(ident), err)
	}
	return ident, nil
}

// FromHandle opens an executable from an already open file.
// ELF images pick their architecture from EI_CLASS. Interpreter scripts are followed to their interpreter.
// On success the Executable owns file.
func FromHandle(file models.File, path string, args, env []string, opts *Options) (*Executable, error) {
	return fromHandle(file, path, path, args, env, opts.withDefaults(), 0)
}

func fromHandle(file models.File, path, execfn string, args, env []string, opts *Options, depth int) (*Executable, error) {
	ident, err := readIdent(file)
	if err != nil {
		return nil, err
	}
	switch {
	case matchScript(ident):
		if depth >= maxScriptDepth {
			return nil, errors.Wrapf(models.ErrInvalidScript, "more than %d nested scripts", maxScriptDepth)
		}
		interp, arg, err := ParseScript(file)
		if err != nil {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{"script": path, "interp": interp, "arg": arg}).Debug("following #! interpreter")
		ifile, err := opts.Resolver.Resolve(interp)
		if err != nil {
			return nil, errors.Wrapf(models.ErrInvalidScript, "%s: %v", interp, err)
		}
		e, err := fromHandle(ifile, interp, execfn, scriptArgs(interp, arg, path, args), env, opts, depth+1)
		if err != nil {
			closeHandle(ifile)
			return nil, err
		}
		e.scripts = append(e.scripts, file)
		return e, nil
	case MatchElf(file):
		a := opts.Arch
		if a == nil {
			if a, err = arch.ByClass(elf.Class(ident[elf.EI_CLASS])); err != nil {
				return nil, err
			}
		}
		e, err := New(a, file, path, args, env, opts)
		if err != nil {
			return nil, err
		}
		e.ExecFn = execfn
		return e, nil
	default:
		return nil, errors.WithStack(UnknownMagic)
	}
}

// FromFile opens path through the configured load prefix.
func FromFile(path string, args, env []string, opts *Options) (*Executable, error) {
	opts = opts.withDefaults()
	host, err := opts.Config.PrefixPath(path, false)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(host)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e, err := fromHandle(f, path, path, args, env, opts, 0)
	if err != nil {
		f.Close()
		return nil, err
	}
	return e, nil
}
