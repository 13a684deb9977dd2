package x86

import (
	"debug/elf"

	"github.com/lunixbochs/elfhost/go/models"
)

var Arch = &models.Arch{
	Name: "x86",
	Tag:  models.X86,
	Bits: 32,

	Class:    elf.ELFCLASS32,
	Machine:  elf.EM_386,
	Platform: "i686",

	HeaderSize: 52,
	ProgSize:   32,
	SectSize:   40,

	PageSize: 0x1000,
	DynBase:  0x56555000,
	TopDown:  0xc0000000,
	Hwcap:    0x178bfbff,
}
