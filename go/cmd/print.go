package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/mgutz/ansi"

	"github.com/lunixbochs/elfhost/go/cpu"
	"github.com/lunixbochs/elfhost/go/kernel/linux"
	"github.com/lunixbochs/elfhost/go/loader"
	"github.com/lunixbochs/elfhost/go/models"
	"github.com/lunixbochs/elfhost/go/vm"
)

var (
	chHead  = ansi.ColorCode("default+b:default")
	chAddr  = ansi.ColorCode("cyan:default")
	chGuard = ansi.ColorCode("red:default")
	chExec  = ansi.ColorCode("green:default")
)

func colorPad(s, color string, pad int) string {
	length := len(s)
	s = color + s + ansi.Reset
	if length < pad {
		s = strings.Repeat(" ", pad-length) + s
	}
	return s
}

// instructions longer than this don't exist on x86
const maxInsLen = 15

type printer struct {
	w     io.Writer
	color bool
}

func (p *printer) paint(s, color string, pad int) string {
	if !p.color {
		if len(s) < pad {
			s = strings.Repeat(" ", pad-len(s)) + s
		}
		return s
	}
	return colorPad(s, color, pad)
}

func (p *printer) addr(a *models.Arch, v uint64) string {
	return p.paint(fmt.Sprintf("%#0*x", a.Bits/4, v), chAddr, 0)
}

func (p *printer) header(s string) {
	fmt.Fprintf(p.w, "%s\n", p.paint(s, chHead, 0))
}

func (p *printer) image(a *models.Arch, name string, l *models.ImageLayout) {
	fmt.Fprintf(p.w, "  %-7s %s-%s brk=%s entry=%s", name, p.addr(a, l.Base), p.addr(a, l.Base+l.Size), p.addr(a, l.Break), p.addr(a, l.Entry))
	if l.Phdr != 0 {
		fmt.Fprintf(p.w, " phdr=%s/%d", p.addr(a, l.Phdr), l.Phnum)
	}
	fmt.Fprintln(p.w)
}

// Layout prints the result of a load: images, entry state and the auxv written to the stack.
func (p *printer) Layout(exe *loader.Executable, l *models.Layout, s *vm.Space) {
	a := l.Arch
	p.header(fmt.Sprintf("[%s] %s %s", a, exe.Path, exe.Headers().Header.Type))
	p.image(a, "exe", l.Image)
	if l.Interp != nil {
		p.image(a, "interp", l.Interp)
		fmt.Fprintf(p.w, "  %-7s %s\n", "", exe.InterpPath)
	}
	fmt.Fprintf(p.w, "  %-7s %s-%s sp=%s\n", "stack", p.addr(a, l.Stack.Base), p.addr(a, l.Stack.Base+l.Stack.Size), p.addr(a, l.StackPointer))
	fmt.Fprintf(p.w, "  %-7s %s\n", "entry", p.addr(a, l.Entry))
	fmt.Fprintf(p.w, "  %-7s %s\n", "brk", p.addr(a, l.Break))
	fmt.Fprintf(p.w, "  %-7s %q\n", "argv", exe.Args)

	p.header("auxv")
	for _, aux := range l.Auxv {
		fmt.Fprintf(p.w, "  %-16s %s", linux.AuxvName(aux.Type), p.addr(a, aux.Val))
		switch aux.Type {
		case linux.ELF_AT_PLATFORM, linux.ELF_AT_EXECFN:
			fmt.Fprintf(p.w, " %s", models.Repr(readString(s, aux.Val), maxReprLen))
		case linux.ELF_AT_RANDOM:
			if mem, err := s.MemRead(aux.Val, 16); err == nil {
				fmt.Fprintf(p.w, " %s", models.Repr(mem, 0))
			}
		}
		fmt.Fprintln(p.w)
	}
}

const maxReprLen = 60

// readString reads a NUL-terminated string, stopping at the first unreadable byte.
func readString(s *vm.Space, addr uint64) []byte {
	var out []byte
	for len(out) < maxReprLen {
		b, err := s.MemRead(addr+uint64(len(out)), 1)
		if err != nil || b[0] == 0 {
			break
		}
		out = append(out, b[0])
	}
	return out
}

// StackDump hex dumps the stack from the stack pointer to the top.
func (p *printer) StackDump(s *vm.Space, l *models.Layout) error {
	top := l.Stack.Base + l.Stack.Size
	mem, err := s.MemRead(l.StackPointer, top-l.StackPointer)
	if err != nil {
		return err
	}
	p.header("stack")
	for _, line := range models.HexDump(l.StackPointer, mem, l.Arch.Bits) {
		fmt.Fprintf(p.w, "  %s\n", line)
	}
	return nil
}

// Mappings prints every region of the space.
func (p *printer) Mappings(s *vm.Space) {
	p.header("mappings")
	for _, pg := range s.Mappings() {
		prot := pg.Prot.String()
		switch {
		case pg.Prot&models.ProtGuard != 0:
			prot = p.paint(prot, chGuard, 5)
		case pg.Prot&models.ProtExec != 0:
			prot = p.paint(prot, chExec, 5)
		default:
			prot = p.paint(prot, "", 5)
		}
		fmt.Fprintf(p.w, "  %s-%s %s %s\n", p.addr(s.Arch, pg.Addr), p.addr(s.Arch, pg.Addr+pg.Size), prot, pg.Desc)
	}
}

// Disas prints count instructions starting at the entry point.
func (p *printer) Disas(s *vm.Space, l *models.Layout, count int) error {
	if l.Entry == 0 {
		return nil
	}
	a := s.Arch
	size := uint64(count * maxInsLen)
	// stay inside the entry page's region
	if pg := s.Mappings().Find(l.Entry); pg != nil && pg.Addr+pg.Size-l.Entry < size {
		size = pg.Addr + pg.Size - l.Entry
	}
	mem, err := s.MemRead(l.Entry, size)
	if err != nil {
		return err
	}
	dis, err := cpu.NewCapstr(a)
	if err != nil {
		return err
	}
	asm, err := dis.Disas(mem, l.Entry, count)
	if err != nil {
		return err
	}
	p.header("entry")
	for _, line := range strings.Split(asm, "\n") {
		fmt.Fprintf(p.w, "  %s\n", line)
	}
	return nil
}

// PrintMappings writes the regions of s to w.
func PrintMappings(w io.Writer, s *vm.Space, color bool) {
	p := &printer{w: w, color: color}
	p.Mappings(s)
}
