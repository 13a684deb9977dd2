package loader

import (
	"debug/elf"
	"io"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/elfhost/go/models"
)

// ImageOptions controls where LoadImage places an image.
type ImageOptions struct {
	// interpreters are placed top-down instead of from the dynamic base
	Interp bool
	// fixed base for ET_DYN images, zero picks one
	ForceBase uint64
	// label for the reserved region
	Desc string
}

func oom(err error) error {
	if errors.Is(err, models.ErrOutOfMemory) {
		return err
	}
	return errors.Wrap(models.ErrOutOfMemory, err.Error())
}

func checkSegments(h *Headers) error {
	mask := h.Arch.Mask()
	for i, p := range h.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		if p.Filesz > p.Memsz {
			return errors.Wrapf(models.FieldError(models.ErrProgHeaderFormat, "p_filesz", p.Filesz), "segment %d", i)
		}
		if end := p.Vaddr + p.Memsz; end < p.Vaddr || end-1 > mask && p.Memsz > 0 {
			return errors.Wrapf(models.FieldError(models.ErrProgHeaderFormat, "p_memsz", p.Memsz), "segment %d", i)
		}
		if p.Off+p.Filesz < p.Off {
			return errors.Wrapf(models.FieldError(models.ErrProgHeaderFormat, "p_offset", p.Off), "segment %d", i)
		}
	}
	return nil
}

// LoadImage reserves space for an image in mem, copies its PT_LOAD segments in and applies their protections.
// The reservation is released if anything fails after it was made.
func LoadImage(r io.ReaderAt, h *Headers, mem models.TargetMemory, opts ImageOptions) (layout *models.ImageLayout, err error) {
	a := h.Arch
	min, max, ok := Footprint(h.Progs)
	if !ok {
		return nil, errors.WithStack(models.ErrNoLoadSegments)
	}
	if err := checkSegments(h); err != nil {
		return nil, err
	}
	if ExecStack(h) {
		return nil, errors.WithStack(models.ErrExecutableStack)
	}
	lo, hi := a.PageDown(min), a.PageUp(max)
	if hi <= lo {
		return nil, models.FieldError(models.ErrProgHeaderFormat, "p_vaddr", max)
	}
	size := hi - lo

	var base uint64
	switch {
	case !h.Dynamic():
		base, err = mem.Reserve(lo, size, models.PlaceFixed)
	case opts.ForceBase != 0:
		base, err = mem.Reserve(a.PageDown(opts.ForceBase), size, models.PlaceFixed)
	case opts.Interp:
		base, err = mem.Reserve(0, size, models.PlaceTopDown)
	default:
		base, err = mem.Reserve(0, size, models.PlaceDefault)
	}
	if err != nil {
		return nil, errors.Wrapf(oom(err), "failed to reserve %#x bytes for image", size)
	}
	defer func() {
		if err != nil {
			mem.Release(base, size)
		}
	}()
	delta := base - lo
	label(mem, base, size, opts.Desc)

	view, err := mem.Map(base, size)
	if err != nil {
		return nil, oom(err)
	}
	defer func() {
		if uerr := mem.Unmap(view); uerr != nil && err == nil {
			err = errors.Wrap(oom(uerr), "failed to unmap image")
		}
	}()

	layout = &models.ImageLayout{
		Base:  min + delta,
		Break: a.PageUp(max + delta),
		Delta: delta,
		Min:   min,
		Max:   max,
		Size:  size,
	}
	if h.Header.Entry != 0 {
		layout.Entry = h.Header.Entry + delta
	}
	for _, p := range h.Progs {
		switch p.Type {
		case elf.PT_PHDR:
			if p.Vaddr >= min && p.Vaddr <= max && p.Memsz <= max-p.Vaddr && h.Header.Phentsize != 0 {
				layout.Phdr = p.Vaddr + delta
				layout.Phnum = p.Memsz / uint64(h.Header.Phentsize)
			}
		case elf.PT_LOAD:
			if p.Memsz == 0 {
				continue
			}
			addr := p.Vaddr + delta
			if p.Filesz > 0 {
				dst := view.Slice(addr, p.Filesz)
				if n, rerr := r.ReadAt(dst, int64(p.Off)); n < len(dst) {
					return nil, errors.Wrapf(models.ErrImageTruncated, "read %d of %d bytes at %#x: %v", n, len(dst), p.Off, rerr)
				}
			}
			clear(view.Slice(addr+p.Filesz, p.Memsz-p.Filesz))
			start := a.PageDown(addr)
			if err := mem.Allocate(start, a.PageUp(addr+p.Memsz)-start, p.Prot()); err != nil {
				return nil, errors.Wrapf(oom(err), "failed to allocate segment at %#x", addr)
			}
		}
	}
	logrus.WithFields(logrus.Fields{
		"desc":  opts.Desc,
		"base":  layout.Base,
		"brk":   layout.Break,
		"entry": layout.Entry,
		"delta": delta,
	}).Debug("loaded image")
	return layout, nil
}

// releaseImage returns the reservation made by LoadImage for l.
func releaseImage(mem models.TargetMemory, a *models.Arch, l *models.ImageLayout) error {
	return mem.Release(a.PageDown(l.Min)+l.Delta, l.Size)
}
