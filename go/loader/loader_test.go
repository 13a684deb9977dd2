package loader

import (
	"bytes"
	"debug/elf"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/arch/x86"
	"github.com/lunixbochs/elfhost/go/arch/x86_64"
	"github.com/lunixbochs/elfhost/go/models"
)

func simpleExec(a *models.Arch) *testImage {
	return newTestImage(a, elf.ET_EXEC, 0x400000).
		load(0x400000, 0x2000, elf.PF_R|elf.PF_X, bytes.Repeat([]byte{0x90}, 0x1000))
}

func TestReadHeaders(t *testing.T) {
	for _, a := range []*models.Arch{x86.Arch, x86_64.Arch} {
		img := simpleExec(a).interp("/lib/ld.so")
		h, err := ReadHeaders(img.reader(t), a)
		if err != nil {
			t.Fatalf("%s: %+v", a, err)
		}
		if h.Header.Entry != 0x400000 || h.Header.Type != elf.ET_EXEC {
			t.Errorf("%s: bad header %+v", a, h.Header)
		}
		want := []Prog{
			{Type: elf.PT_LOAD, Flags: elf.PF_R | elf.PF_X, Vaddr: 0x400000, Paddr: 0x400000, Memsz: 0x2000, Filesz: 0x1000, Align: 0x1000},
			{Type: elf.PT_INTERP, Flags: elf.PF_R, Filesz: 11},
		}
		// offsets depend on the table size, compare them separately
		table := uint64(a.HeaderSize + 2*a.ProgSize)
		want[0].Off = table
		want[1].Off = table + 0x1000
		if diff := cmp.Diff(want, h.Progs); diff != "" {
			t.Errorf("%s: progs mismatch (-want +got):\n%s", a, diff)
		}
		if uint64(len(h.Blob)) != table {
			t.Errorf("%s: blob is %d bytes, want %d", a, len(h.Blob), table)
		}
	}
}

func TestReadHeadersStride(t *testing.T) {
	a := x86_64.Arch
	img := simpleExec(a).interp("/lib/ld.so")
	img.hdr.Phentsize = uint16(a.ProgSize + 8)
	h, err := ReadHeaders(img.reader(t), a)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	if len(h.Progs) != 2 || h.Progs[1].Type != elf.PT_INTERP {
		t.Fatalf("bad progs with padded entries: %+v", h.Progs)
	}
}

func TestReadHeadersReject(t *testing.T) {
	tests := []struct {
		name string
		fix  func(h *Header, progs []Prog)
		err  error
	}{
		{"magic", func(h *Header, _ []Prog) { h.Ident[1] = 'F' }, models.ErrInvalidMagic},
		{"class", func(h *Header, _ []Prog) { h.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS32) }, models.ErrInvalidClass},
		{"encoding", func(h *Header, _ []Prog) { h.Ident[elf.EI_DATA] = byte(elf.ELFDATA2MSB) }, models.ErrInvalidEncoding},
		{"ident version", func(h *Header, _ []Prog) { h.Ident[elf.EI_VERSION] = 0 }, models.ErrInvalidVersion},
		{"type", func(h *Header, _ []Prog) { h.Type = elf.ET_REL }, models.ErrInvalidType},
		{"core", func(h *Header, _ []Prog) { h.Type = elf.ET_CORE }, models.ErrInvalidType},
		{"machine", func(h *Header, _ []Prog) { h.Machine = elf.EM_AARCH64 }, models.ErrInvalidMachine},
		{"version", func(h *Header, _ []Prog) { h.Version = 2 }, models.ErrInvalidVersion},
		{"ehsize", func(h *Header, _ []Prog) { h.Ehsize = 52 }, models.ErrHeaderFormat},
		{"phentsize", func(h *Header, _ []Prog) { h.Phentsize = 32 }, models.ErrProgHeaderFormat},
		{"phentsize zero", func(h *Header, _ []Prog) { h.Phentsize = 0 }, models.ErrProgHeaderFormat},
		{"shentsize", func(h *Header, _ []Prog) { h.Shentsize = 40 }, models.ErrSectHeaderFormat},
		{"phnum", func(h *Header, _ []Prog) { h.Phnum = 0xffff }, models.ErrProgHeaderFormat},
		{"phoff", func(h *Header, _ []Prog) { h.Phoff = 1 << 40 }, models.ErrProgHeaderFormat},
		{"table past eof", func(h *Header, _ []Prog) { h.Phnum = 100 }, models.ErrTruncatedHeader},
	}
	for _, test := range tests {
		img := simpleExec(x86_64.Arch)
		img.fix = test.fix
		_, err := ReadHeaders(img.reader(t), x86_64.Arch)
		if !errors.Is(err, test.err) {
			t.Errorf("%s: got %v, want %v", test.name, err, test.err)
		}
	}
}

func TestReadHeadersFieldError(t *testing.T) {
	img := simpleExec(x86_64.Arch)
	img.fix = func(h *Header, _ []Prog) { h.Machine = elf.EM_ARM }
	_, err := ReadHeaders(img.reader(t), x86_64.Arch)
	var ferr *models.FormatError
	if !errors.As(err, &ferr) {
		t.Fatalf("got %T, want *FormatError", err)
	}
	if ferr.Field != "e_machine" || ferr.Value != uint64(elf.EM_ARM) {
		t.Fatalf("bad field error: %v", ferr)
	}
}

func TestReadHeadersTruncated(t *testing.T) {
	p := simpleExec(x86_64.Arch).bytes(t)
	for _, n := range []int{0, 4, 16, 63} {
		_, err := ReadHeaders(bytes.NewReader(p[:n]), x86_64.Arch)
		if !errors.Is(err, models.ErrTruncatedHeader) {
			t.Errorf("%d bytes: got %v, want ErrTruncatedHeader", n, err)
		}
	}
	// header intact, program header table cut short
	_, err := ReadHeaders(bytes.NewReader(p[:64+10]), x86_64.Arch)
	if !errors.Is(err, models.ErrTruncatedHeader) {
		t.Errorf("short table: got %v, want ErrTruncatedHeader", err)
	}
}

func TestInterpreterPath(t *testing.T) {
	a := x86_64.Arch
	r := simpleExec(a).interp("/lib64/ld-linux-x86-64.so.2").reader(t)
	h, err := ReadHeaders(r, a)
	if err != nil {
		t.Fatal(err)
	}
	path, err := InterpreterPath(r, h)
	if err != nil {
		t.Fatal(err)
	}
	if path != "/lib64/ld-linux-x86-64.so.2" {
		t.Fatalf("got interpreter %q", path)
	}

	r = simpleExec(a).reader(t)
	if h, err = ReadHeaders(r, a); err != nil {
		t.Fatal(err)
	}
	if path, err = InterpreterPath(r, h); err != nil || path != "" {
		t.Fatalf("static image: got %q, %v", path, err)
	}
}

func TestInterpreterPathInvalid(t *testing.T) {
	a := x86_64.Arch
	tests := []struct {
		name string
		fix  func(h *Header, progs []Prog)
	}{
		{"truncated", func(_ *Header, progs []Prog) { progs[1].Filesz += 100 }},
		{"empty", func(_ *Header, progs []Prog) { progs[1].Filesz = 0 }},
		{"too long", func(_ *Header, progs []Prog) { progs[1].Filesz = 8192 }},
		{"only NULs", func(_ *Header, progs []Prog) { progs[1].Off = uint64(elf.EI_PAD); progs[1].Filesz = 1 }},
	}
	for _, test := range tests {
		img := simpleExec(a).interp("/lib/ld.so")
		img.fix = test.fix
		r := img.reader(t)
		h, err := ReadHeaders(r, a)
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		if _, err := InterpreterPath(r, h); !errors.Is(err, models.ErrInvalidInterpreter) {
			t.Errorf("%s: got %v, want ErrInvalidInterpreter", test.name, err)
		}
	}
}
