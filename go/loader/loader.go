package loader

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

var elfOrder = binary.LittleEndian

const (
	// largest program header table accepted, same as the kernel
	maxProgTable = 64 << 10
	// header blobs past this offset are not read into memory
	maxHeaderBlob = 16 << 20
	// PATH_MAX
	maxInterpPath = 4096
)

// Headers is a validated ELF header plus its program header table.
// Blob holds the raw bytes [0, phoff+phnum*phentsize) of the file.
type Headers struct {
	Arch   *models.Arch
	Header *Header
	Progs  []Prog
	Blob   []byte
}

// Dynamic reports whether the image is position independent.
func (h *Headers) Dynamic() bool {
	return h.Header.Type == elf.ET_DYN
}

// ReadHeaders reads and validates the ELF header and program headers of r for arch a.
func ReadHeaders(r io.ReaderAt, a *models.Arch) (*Headers, error) {
	p := make([]byte, a.HeaderSize)
	if n, err := r.ReadAt(p, 0); n < len(p) {
		return nil, errors.Wrapf(models.ErrTruncatedHeader, "read %d of %d header bytes: %v", n, len(p), err)
	}
	if !bytes.Equal(p[:len(elfMagic)], elfMagic) {
		return nil, models.FieldError(models.ErrInvalidMagic, "EI_MAG", uint64(elfOrder.Uint32(p)))
	}
	if class := elf.Class(p[elf.EI_CLASS]); class != a.Class {
		return nil, models.FieldError(models.ErrInvalidClass, "EI_CLASS", uint64(class))
	}
	if data := elf.Data(p[elf.EI_DATA]); data != elf.ELFDATA2LSB {
		return nil, models.FieldError(models.ErrInvalidEncoding, "EI_DATA", uint64(data))
	}
	if v := elf.Version(p[elf.EI_VERSION]); v != elf.EV_CURRENT {
		return nil, models.FieldError(models.ErrInvalidVersion, "EI_VERSION", uint64(v))
	}
	hdr, err := decodeHeader(p, a.Bits)
	if err != nil {
		return nil, err
	}
	if hdr.Type != elf.ET_EXEC && hdr.Type != elf.ET_DYN {
		return nil, models.FieldError(models.ErrInvalidType, "e_type", uint64(hdr.Type))
	}
	if hdr.Machine != a.Machine {
		return nil, models.FieldError(models.ErrInvalidMachine, "e_machine", uint64(hdr.Machine))
	}
	if elf.Version(hdr.Version) != elf.EV_CURRENT {
		return nil, models.FieldError(models.ErrInvalidVersion, "e_version", uint64(hdr.Version))
	}
	if int(hdr.Ehsize) != a.HeaderSize {
		return nil, models.FieldError(models.ErrHeaderFormat, "e_ehsize", uint64(hdr.Ehsize))
	}
	if hdr.Phentsize != 0 && int(hdr.Phentsize) < a.ProgSize {
		return nil, models.FieldError(models.ErrProgHeaderFormat, "e_phentsize", uint64(hdr.Phentsize))
	}
	if hdr.Phnum > 0 && hdr.Phentsize == 0 {
		return nil, models.FieldError(models.ErrProgHeaderFormat, "e_phentsize", 0)
	}
	if hdr.Shentsize != 0 && int(hdr.Shentsize) < a.SectSize {
		return nil, models.FieldError(models.ErrSectHeaderFormat, "e_shentsize", uint64(hdr.Shentsize))
	}

	table := uint64(hdr.Phnum) * uint64(hdr.Phentsize)
	if table > maxProgTable {
		return nil, models.FieldError(models.ErrProgHeaderFormat, "e_phnum", uint64(hdr.Phnum))
	}
	end := hdr.Phoff + table
	if end < hdr.Phoff || end > maxHeaderBlob {
		return nil, models.FieldError(models.ErrProgHeaderFormat, "e_phoff", hdr.Phoff)
	}
	if end < uint64(len(p)) {
		end = uint64(len(p))
	}
	blob := make([]byte, end)
	if n, err := r.ReadAt(blob, 0); uint64(n) < end {
		return nil, errors.Wrapf(models.ErrTruncatedHeader, "read %d of %d program header bytes: %v", n, end, err)
	}
	progs := make([]Prog, hdr.Phnum)
	for i := range progs {
		off := hdr.Phoff + uint64(i)*uint64(hdr.Phentsize)
		if progs[i], err = decodeProg(blob[off:off+uint64(a.ProgSize)], a.Bits); err != nil {
			return nil, err
		}
	}
	return &Headers{Arch: a, Header: hdr, Progs: progs, Blob: blob}, nil
}

// InterpreterPath returns the path named by the first PT_INTERP header, or "" if there is none.
func InterpreterPath(r io.ReaderAt, h *Headers) (string, error) {
	for _, prog := range h.Progs {
		if prog.Type != elf.PT_INTERP {
			continue
		}
		if prog.Filesz == 0 || prog.Filesz > maxInterpPath {
			return "", models.FieldError(models.ErrInvalidInterpreter, "p_filesz", prog.Filesz)
		}
		p := make([]byte, prog.Filesz)
		if n, err := r.ReadAt(p, int64(prog.Off)); n < len(p) {
			return "", errors.Wrapf(models.ErrInvalidInterpreter, "read %d of %d bytes at %#x: %v", n, len(p), prog.Off, err)
		}
		path := string(bytes.TrimRight(p, "\x00"))
		if path == "" {
			return "", errors.Wrap(models.ErrInvalidInterpreter, "empty interpreter path")
		}
		return path, nil
	}
	return "", nil
}

// ExecStack reports whether a PT_GNU_STACK header asks for an executable stack.
func ExecStack(h *Headers) bool {
	for _, prog := range h.Progs {
		if prog.Type == elf.PT_GNU_STACK {
			return prog.Flags&elf.PF_X != 0
		}
	}
	return false
}
