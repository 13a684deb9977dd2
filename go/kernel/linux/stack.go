package linux

import (
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/elfhost/go/models"
	"github.com/lunixbochs/elfhost/go/models/cpu"
)

const stackAlign = 16

// StackParams is the input to BuildStack.
type StackParams struct {
	Arch *models.Arch
	// total reservation including both guard pages
	Size uint64

	Image  *models.ImageLayout
	Interp *models.ImageLayout

	Args, Env []string
	// path exposed through AT_EXECFN
	ExecFn string
	Random models.RandomSource
	// zero uses HostHwcap
	Hwcap uint64
}

func (p *StackParams) hwcap() uint64 {
	if p.Hwcap != 0 {
		return p.Hwcap
	}
	return HostHwcap(p.Arch)
}

// stackWriter pushes data downward through a local view of the stack.
// pos is always a target address.
type stackWriter struct {
	view *models.Mapping
	pos  uint64
}

func (s *stackWriter) push(p []byte) (uint64, error) {
	if s.pos-s.view.Addr < uint64(len(p)) {
		return 0, errors.Wrapf(models.ErrOutOfMemory, "stack overflow pushing %d bytes", len(p))
	}
	s.pos -= uint64(len(p))
	copy(s.view.Slice(s.pos, uint64(len(p))), p)
	return s.pos, nil
}

func (s *stackWriter) pushString(str string) (uint64, error) {
	p := make([]byte, len(str)+1)
	copy(p, str)
	return s.push(p)
}

// pushStrings pushes strs last to first, so they end up in order in memory.
func (s *stackWriter) pushStrings(strs []string) ([]uint64, error) {
	addrs := make([]uint64, len(strs))
	for i := len(strs) - 1; i >= 0; i-- {
		addr, err := s.pushString(strs[i])
		if err != nil {
			return nil, err
		}
		addrs[i] = addr
	}
	return addrs, nil
}

// BuildStack reserves a stack in mem and writes the initial process stack:
// argc, argv, envp, auxv and the strings they point to.
func BuildStack(mem models.TargetMemory, p *StackParams) (stack *models.StackLayout, auxv []models.Auxv, err error) {
	a := p.Arch
	page := a.PageSize
	size := a.PageUp(p.Size)
	if size < 3*page {
		return nil, nil, errors.Wrapf(models.ErrInvalidArgument, "stack size %#x leaves no room between guard pages", p.Size)
	}
	if p.Image == nil || p.Random == nil {
		return nil, nil, errors.Wrap(models.ErrInvalidArgument, "missing image layout or random source")
	}
	base, err := mem.Reserve(0, size, models.PlaceTopDown)
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to reserve stack")
	}
	defer func() {
		if err != nil {
			mem.Release(base, size)
		}
	}()
	if err = mem.Protect(base, page, models.ProtGuard); err != nil {
		return nil, nil, err
	}
	if err = mem.Protect(base+size-page, page, models.ProtGuard); err != nil {
		return nil, nil, err
	}
	usable, length := base+page, size-2*page
	if err = mem.Allocate(usable, length, models.ProtRead|models.ProtWrite); err != nil {
		return nil, nil, err
	}
	view, err := mem.Map(usable, length)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if uerr := mem.Unmap(view); uerr != nil && err == nil {
			err = errors.Wrap(uerr, "failed to unmap stack")
		}
	}()

	word := uint64(a.Word())
	s := &stackWriter{view: view, pos: usable + length}
	if _, err = s.push(make([]byte, word)); err != nil {
		return nil, nil, err
	}
	var strs auxvStrings
	if strs.execfn, err = s.pushString(p.ExecFn); err != nil {
		return nil, nil, err
	}
	var random [16]byte
	if err = p.Random.Generate(random[:]); err != nil {
		return nil, nil, errors.Wrap(err, "failed to generate AT_RANDOM")
	}
	if strs.random, err = s.push(random[:]); err != nil {
		return nil, nil, err
	}
	if strs.platform, err = s.pushString(a.Platform); err != nil {
		return nil, nil, err
	}
	envp, err := s.pushStrings(p.Env)
	if err != nil {
		return nil, nil, err
	}
	argv, err := s.pushStrings(p.Args)
	if err != nil {
		return nil, nil, err
	}

	auxv = setupElfAuxv(p, strs)
	auxvData, err := PackAuxv(auxv, a.Bits, a.ByteOrder())
	if err != nil {
		return nil, nil, err
	}
	// argc, argv + NULL, envp + NULL
	words := make([]uint64, 0, len(argv)+len(envp)+3)
	words = append(words, uint64(len(argv)))
	words = append(words, argv...)
	words = append(words, 0)
	words = append(words, envp...)
	words = append(words, 0)
	need := uint64(len(words))*word + uint64(len(auxvData))
	if s.pos-view.Addr < need {
		return nil, nil, errors.Wrapf(models.ErrOutOfMemory, "stack too small for %d arguments and %d environment variables", len(argv), len(envp))
	}
	sp := models.AlignDown(s.pos-need, stackAlign)
	if sp < view.Addr {
		return nil, nil, errors.Wrap(models.ErrOutOfMemory, "stack too small after alignment")
	}
	tables := view.Slice(sp, need)
	if err = cpu.PackWords(a.ByteOrder(), int(word), tables, words...); err != nil {
		return nil, nil, err
	}
	copy(tables[uint64(len(words))*word:], auxvData)

	logrus.WithFields(logrus.Fields{
		"sp":   sp,
		"argc": len(argv),
		"envc": len(envp),
		"auxv": len(auxv),
	}).Debug("built initial stack")
	return &models.StackLayout{Base: usable, Size: length, Pointer: sp}, auxv, nil
}
