package linux

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

const (
	ELF_AT_NULL = iota
	ELF_AT_IGNORE
	ELF_AT_EXECFD
	ELF_AT_PHDR
	ELF_AT_PHENT
	ELF_AT_PHNUM
	ELF_AT_PAGESZ
	ELF_AT_BASE
	ELF_AT_FLAGS
	ELF_AT_ENTRY
	ELF_AT_NOTELF
	ELF_AT_UID
	ELF_AT_EUID
	ELF_AT_GID
	ELF_AT_EGID
	ELF_AT_PLATFORM
	ELF_AT_HWCAP
	ELF_AT_CLKTCK        = 17
	ELF_AT_SECURE        = 23
	ELF_AT_BASE_PLATFORM = 24
	ELF_AT_RANDOM        = 25
	ELF_AT_HWCAP2        = 26
	ELF_AT_EXECFN        = 31
	ELF_AT_SYSINFO       = 32
	ELF_AT_SYSINFO_EHDR  = 33
)

var auxvNames = map[uint64]string{
	ELF_AT_NULL:          "AT_NULL",
	ELF_AT_IGNORE:        "AT_IGNORE",
	ELF_AT_EXECFD:        "AT_EXECFD",
	ELF_AT_PHDR:          "AT_PHDR",
	ELF_AT_PHENT:         "AT_PHENT",
	ELF_AT_PHNUM:         "AT_PHNUM",
	ELF_AT_PAGESZ:        "AT_PAGESZ",
	ELF_AT_BASE:          "AT_BASE",
	ELF_AT_FLAGS:         "AT_FLAGS",
	ELF_AT_ENTRY:         "AT_ENTRY",
	ELF_AT_NOTELF:        "AT_NOTELF",
	ELF_AT_UID:           "AT_UID",
	ELF_AT_EUID:          "AT_EUID",
	ELF_AT_GID:           "AT_GID",
	ELF_AT_EGID:          "AT_EGID",
	ELF_AT_PLATFORM:      "AT_PLATFORM",
	ELF_AT_HWCAP:         "AT_HWCAP",
	ELF_AT_CLKTCK:        "AT_CLKTCK",
	ELF_AT_SECURE:        "AT_SECURE",
	ELF_AT_BASE_PLATFORM: "AT_BASE_PLATFORM",
	ELF_AT_RANDOM:        "AT_RANDOM",
	ELF_AT_HWCAP2:        "AT_HWCAP2",
	ELF_AT_EXECFN:        "AT_EXECFN",
	ELF_AT_SYSINFO:       "AT_SYSINFO",
	ELF_AT_SYSINFO_EHDR:  "AT_SYSINFO_EHDR",
}

// AuxvName returns the symbolic name of an auxv type.
// Types that are recognized but never populated still have names.
func AuxvName(t uint64) string {
	if name, ok := auxvNames[t]; ok {
		return name
	}
	return fmt.Sprintf("AT_%d", t)
}

type Elf32Auxv struct {
	Type, Val uint32
}

type Elf64Auxv struct {
	Type, Val uint64
}

// auxv string addresses pushed onto the new stack
type auxvStrings struct {
	platform, random, execfn uint64
}

// AT_EXECFD, AT_NOTELF, AT_UID/EUID/GID/EGID, AT_SECURE, AT_BASE_PLATFORM,
// AT_HWCAP2, AT_SYSINFO and AT_SYSINFO_EHDR are not populated.
func setupElfAuxv(p *StackParams, s auxvStrings) []models.Auxv {
	var auxv []models.Auxv
	add := func(t, val uint64) {
		auxv = append(auxv, models.Auxv{Type: t, Val: val})
	}
	// add phdr information if present in binary
	if p.Image.Phdr != 0 {
		add(ELF_AT_PHDR, p.Image.Phdr)
		add(ELF_AT_PHENT, uint64(p.Arch.ProgSize))
		add(ELF_AT_PHNUM, p.Image.Phnum)
	}
	add(ELF_AT_PAGESZ, p.Arch.PageSize)
	if p.Interp != nil {
		add(ELF_AT_BASE, p.Interp.Base)
	}
	add(ELF_AT_FLAGS, 0)
	add(ELF_AT_ENTRY, p.Image.Entry)
	add(ELF_AT_PLATFORM, s.platform)
	add(ELF_AT_HWCAP, p.hwcap())
	add(ELF_AT_CLKTCK, 100) // 100hz, totally fake
	add(ELF_AT_RANDOM, s.random)
	add(ELF_AT_EXECFN, s.execfn)
	add(ELF_AT_NULL, 0)
	return auxv
}

// PackAuxv encodes an auxv list in the target's word size.
func PackAuxv(auxv []models.Auxv, bits int, order binary.ByteOrder) ([]byte, error) {
	var buf bytes.Buffer
	if bits == 32 {
		var auxv32 Elf32Auxv
		for _, a := range auxv {
			if a.Val>>32 != 0 {
				return nil, errors.Errorf("%s value %#x does not fit in 32 bits", AuxvName(a.Type), a.Val)
			}
			auxv32.Type = uint32(a.Type)
			auxv32.Val = uint32(a.Val)
			if err := struc.PackWithOrder(&buf, &auxv32, order); err != nil {
				return nil, err
			}
		}
	} else {
		for _, a := range auxv {
			auxv64 := Elf64Auxv{a.Type, a.Val}
			if err := struc.PackWithOrder(&buf, &auxv64, order); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

// ParseAuxv decodes a packed auxv list up to and including AT_NULL.
func ParseAuxv(p []byte, bits int, order binary.ByteOrder) ([]models.Auxv, error) {
	r := bytes.NewReader(p)
	var auxv []models.Auxv
	for r.Len() > 0 {
		var a models.Auxv
		if bits == 32 {
			var auxv32 Elf32Auxv
			if err := struc.UnpackWithOrder(r, &auxv32, order); err != nil {
				return nil, err
			}
			a = models.Auxv{Type: uint64(auxv32.Type), Val: uint64(auxv32.Val)}
		} else {
			var auxv64 Elf64Auxv
			if err := struc.UnpackWithOrder(r, &auxv64, order); err != nil {
				return nil, err
			}
			a = models.Auxv{Type: auxv64.Type, Val: auxv64.Val}
		}
		auxv = append(auxv, a)
		if a.Type == ELF_AT_NULL {
			return auxv, nil
		}
	}
	return nil, errors.New("auxv missing AT_NULL terminator")
}
