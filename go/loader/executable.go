package loader

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/elfhost/go/kernel/linux"
	"github.com/lunixbochs/elfhost/go/models"
)

// Executable is a validated ELF image and its optional interpreter, ready to be loaded.
type Executable struct {
	Arch *models.Arch
	Path string
	// file name exposed through AT_EXECFN; for scripts this is the script, not the interpreter
	ExecFn string
	Args   []string
	Env    []string
	// PT_INTERP of the primary image, empty for static executables
	InterpPath string

	file          models.File
	interp        models.File
	headers       *Headers
	interpHeaders *Headers
	scripts       []models.File
	opts          *Options
}

// New validates file as an ELF image for arch a and resolves its interpreter, if any.
func New(a *models.Arch, file models.File, path string, args, env []string, opts *Options) (*Executable, error) {
	opts = opts.withDefaults()
	hdrs, err := ReadHeaders(file, a)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	e := &Executable{
		Arch:    a,
		Path:    path,
		ExecFn:  path,
		Args:    append([]string(nil), args...),
		Env:     append([]string(nil), env...),
		file:    file,
		headers: hdrs,
		opts:    opts,
	}
	if e.InterpPath, err = InterpreterPath(file, hdrs); err != nil {
		return nil, errors.Wrap(err, path)
	}
	if e.InterpPath == "" {
		return e, nil
	}
	logrus.WithFields(logrus.Fields{"exe": path, "interp": e.InterpPath}).Debug("resolving interpreter")
	interp, err := opts.Resolver.Resolve(e.InterpPath)
	if err != nil {
		return nil, errors.Wrapf(models.ErrInvalidInterpreter, "%s: %v", e.InterpPath, err)
	}
	// the interpreter's own PT_INTERP is never followed
	if e.interpHeaders, err = ReadHeaders(interp, a); err != nil {
		closeHandle(interp)
		return nil, errors.Wrap(err, e.InterpPath)
	}
	e.interp = interp
	return e, nil
}

// Headers returns the primary image's headers.
func (e *Executable) Headers() *Headers {
	return e.headers
}

// InterpHeaders returns the interpreter's headers, or nil.
func (e *Executable) InterpHeaders() *Headers {
	return e.interpHeaders
}

// Load maps the image and interpreter into mem and builds a stack of stackLen bytes.
// Nothing stays reserved in mem if Load fails.
func (e *Executable) Load(mem models.TargetMemory, stackLen uint64) (layout *models.Layout, err error) {
	if mem == nil {
		return nil, errors.Wrap(models.ErrInvalidArgument, "nil target memory")
	}
	if stackLen == 0 {
		return nil, errors.Wrap(models.ErrInvalidArgument, "zero stack length")
	}
	cfg := e.opts.Config
	image, err := LoadImage(e.file, e.headers, mem, ImageOptions{ForceBase: cfg.ForceBase, Desc: e.Path})
	if err != nil {
		return nil, errors.Wrap(err, e.Path)
	}
	defer func() {
		if err != nil {
			releaseImage(mem, e.Arch, image)
		}
	}()
	var interp *models.ImageLayout
	if e.interp != nil {
		opts := ImageOptions{Interp: true, ForceBase: cfg.ForceInterpBase, Desc: e.InterpPath}
		if interp, err = LoadImage(e.interp, e.interpHeaders, mem, opts); err != nil {
			return nil, errors.Wrap(err, e.InterpPath)
		}
		defer func() {
			if err != nil {
				releaseImage(mem, e.Arch, interp)
			}
		}()
	}
	stack, auxv, err := linux.BuildStack(mem, &linux.StackParams{
		Arch:   e.Arch,
		Size:   stackLen,
		Image:  image,
		Interp: interp,
		Args:   e.Args,
		Env:    e.Env,
		ExecFn: e.ExecFn,
		Random: e.opts.Random,
		Hwcap:  cfg.Hwcap,
	})
	if err != nil {
		return nil, err
	}
	label(mem, stack.Base, stack.Size, "stack")

	layout = &models.Layout{
		Arch:         e.Arch,
		Break:        image.Break,
		Entry:        image.Entry,
		StackPointer: stack.Pointer,
		Image:        image,
		Interp:       interp,
		Stack:        stack,
		Auxv:         auxv,
	}
	if interp != nil {
		layout.Entry = interp.Entry
	}
	logrus.WithFields(logrus.Fields{
		"exe":   e.Path,
		"entry": layout.Entry,
		"brk":   layout.Break,
		"sp":    layout.StackPointer,
	}).Debug("loaded executable")
	return layout, nil
}

// Close releases the file handles owned by the Executable.
func (e *Executable) Close() error {
	var first error
	handles := append([]models.File{e.file, e.interp}, e.scripts...)
	for _, h := range handles {
		if h == nil {
			continue
		}
		if err := closeHandle(h); err != nil && first == nil {
			first = err
		}
	}
	e.file, e.interp, e.scripts = nil, nil, nil
	return first
}
