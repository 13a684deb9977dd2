package loader

import (
	"bytes"
	"debug/elf"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

var elfMagic = []byte{0x7f, 0x45, 0x4c, 0x46}

func MatchElf(r io.ReaderAt) bool {
	return bytes.Equal(getMagic(r, len(elfMagic)), elfMagic)
}

// on-disk layouts, little-endian
type elfHeader32 struct {
	Ident                                                [elf.EI_NIDENT]byte
	Type, Machine                                        uint16
	Version, Entry, Phoff, Shoff, Flags                  uint32
	Ehsize, Phentsize, Phnum, Shentsize, Shnum, Shstrndx uint16
}

type elfHeader64 struct {
	Ident                                                [elf.EI_NIDENT]byte
	Type, Machine                                        uint16
	Version                                              uint32
	Entry, Phoff, Shoff                                  uint64
	Flags                                                uint32
	Ehsize, Phentsize, Phnum, Shentsize, Shnum, Shstrndx uint16
}

type elfProg32 struct {
	Type, Off, Vaddr, Paddr, Filesz, Memsz, Flags, Align uint32
}

type elfProg64 struct {
	Type, Flags                             uint32
	Off, Vaddr, Paddr, Filesz, Memsz, Align uint64
}

// Header is an ELF file header widened to 64 bits.
type Header struct {
	Ident   [elf.EI_NIDENT]byte
	Type    elf.Type
	Machine elf.Machine
	Version uint32
	Entry   uint64
	Phoff   uint64
	Shoff   uint64
	Flags   uint32

	Ehsize, Phentsize, Phnum, Shentsize, Shnum, Shstrndx uint16
}

func (h *Header) Class() elf.Class { return elf.Class(h.Ident[elf.EI_CLASS]) }
func (h *Header) Data() elf.Data   { return elf.Data(h.Ident[elf.EI_DATA]) }

// Prog is a program header widened to 64 bits.
type Prog struct {
	Type   elf.ProgType
	Flags  elf.ProgFlag
	Off    uint64
	Vaddr  uint64
	Paddr  uint64
	Filesz uint64
	Memsz  uint64
	Align  uint64
}

// Prot converts segment flags to target memory protections.
func (p *Prog) Prot() models.Prot {
	var prot models.Prot
	if p.Flags&elf.PF_R != 0 {
		prot |= models.ProtRead
	}
	if p.Flags&elf.PF_W != 0 {
		prot |= models.ProtWrite
	}
	if p.Flags&elf.PF_X != 0 {
		prot |= models.ProtExec
	}
	return prot
}

func unpack(p []byte, v interface{}) error {
	return struc.UnpackWithOptions(bytes.NewReader(p), v, &struc.Options{Order: elfOrder})
}

func decodeHeader(p []byte, bits int) (*Header, error) {
	if bits == 32 {
		var h elfHeader32
		if err := unpack(p, &h); err != nil {
			return nil, errors.Wrap(err, "decode ELF32 header")
		}
		return &Header{
			Ident: h.Ident, Type: elf.Type(h.Type), Machine: elf.Machine(h.Machine), Version: h.Version,
			Entry: uint64(h.Entry), Phoff: uint64(h.Phoff), Shoff: uint64(h.Shoff), Flags: h.Flags,
			Ehsize: h.Ehsize, Phentsize: h.Phentsize, Phnum: h.Phnum,
			Shentsize: h.Shentsize, Shnum: h.Shnum, Shstrndx: h.Shstrndx,
		}, nil
	}
	var h elfHeader64
	if err := unpack(p, &h); err != nil {
		return nil, errors.Wrap(err, "decode ELF64 header")
	}
	return &Header{
		Ident: h.Ident, Type: elf.Type(h.Type), Machine: elf.Machine(h.Machine), Version: h.Version,
		Entry: h.Entry, Phoff: h.Phoff, Shoff: h.Shoff, Flags: h.Flags,
		Ehsize: h.Ehsize, Phentsize: h.Phentsize, Phnum: h.Phnum,
		Shentsize: h.Shentsize, Shnum: h.Shnum, Shstrndx: h.Shstrndx,
	}, nil
}

func decodeProg(p []byte, bits int) (Prog, error) {
	if bits == 32 {
		var ph elfProg32
		if err := unpack(p, &ph); err != nil {
			return Prog{}, errors.Wrap(err, "decode ELF32 program header")
		}
		return Prog{
			Type: elf.ProgType(ph.Type), Flags: elf.ProgFlag(ph.Flags),
			Off: uint64(ph.Off), Vaddr: uint64(ph.Vaddr), Paddr: uint64(ph.Paddr),
			Filesz: uint64(ph.Filesz), Memsz: uint64(ph.Memsz), Align: uint64(ph.Align),
		}, nil
	}
	var ph elfProg64
	if err := unpack(p, &ph); err != nil {
		return Prog{}, errors.Wrap(err, "decode ELF64 program header")
	}
	return Prog{
		Type: elf.ProgType(ph.Type), Flags: elf.ProgFlag(ph.Flags),
		Off: ph.Off, Vaddr: ph.Vaddr, Paddr: ph.Paddr,
		Filesz: ph.Filesz, Memsz: ph.Memsz, Align: ph.Align,
	}, nil
}
