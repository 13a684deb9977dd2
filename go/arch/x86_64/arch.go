package x86_64

import (
	"debug/elf"

	"github.com/lunixbochs/elfhost/go/models"
)

var Arch = &models.Arch{
	Name: "x86_64",
	Tag:  models.X86_64,
	Bits: 64,

	Class:    elf.ELFCLASS64,
	Machine:  elf.EM_X86_64,
	Platform: "x86_64",

	HeaderSize: 64,
	ProgSize:   56,
	SectSize:   64,

	PageSize: 0x1000,
	DynBase:  0x555555554000,
	TopDown:  0x7ffffffff000,
	Hwcap:    0x178bfbff,
}
