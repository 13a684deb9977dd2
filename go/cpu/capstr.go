package cpu

import (
	"encoding/hex"
	"fmt"
	"strings"

	cs "github.com/lunixbochs/capstr"
	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

// Ins is one decoded instruction.
type Ins interface {
	Addr() uint64
	Bytes() []byte
	Mnemonic() string
	OpStr() string
}

type Capstr struct {
	Arch, Mode int

	cs *cs.Engine
}

// NewCapstr returns a disassembler for one of the loadable architectures.
func NewCapstr(arch *models.Arch) (*Capstr, error) {
	switch arch.Tag {
	case models.X86:
		return &Capstr{Arch: cs.ARCH_X86, Mode: cs.MODE_32}, nil
	case models.X86_64:
		return &Capstr{Arch: cs.ARCH_X86, Mode: cs.MODE_64}, nil
	}
	return nil, errors.Wrapf(models.ErrUnsupportedArch, "no disassembler for %s", arch)
}

func (c *Capstr) Open() (err error) {
	engine, err := cs.New(c.Arch, c.Mode)
	if err == nil {
		c.cs = engine
	}
	return errors.Wrap(err, "cs.New() failed")
}

func (c *Capstr) Dis(mem []byte, addr uint64) ([]Ins, error) {
	if c.cs == nil {
		if err := c.Open(); err != nil {
			return nil, err
		}
	}
	dis, err := c.cs.Dis(mem, addr, 0)
	if err != nil {
		return nil, errors.Wrap(err, "capstone disassembly failed")
	}
	ret := make([]Ins, len(dis))
	for i, v := range dis {
		ret[i] = v
	}
	return ret, nil
}

// Disas formats up to count instructions from mem, one per line.
func (c *Capstr) Disas(mem []byte, addr uint64, count int) (string, error) {
	if len(mem) == 0 {
		return "", nil
	}
	asm, err := c.Dis(mem, addr)
	if err != nil {
		return "", err
	}
	if count > 0 && len(asm) > count {
		asm = asm[:count]
	}
	var width int
	for _, insn := range asm {
		if len(insn.Bytes()) > width {
			width = len(insn.Bytes())
		}
	}
	var out []string
	for _, insn := range asm {
		pad := strings.Repeat(" ", (width-len(insn.Bytes()))*2)
		data := pad + hex.EncodeToString(insn.Bytes())
		out = append(out, fmt.Sprintf("0x%x: %s %s %s", insn.Addr(), data, insn.Mnemonic(), insn.OpStr()))
	}
	return strings.Join(out, "\n"), nil
}
