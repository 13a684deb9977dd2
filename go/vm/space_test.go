package vm

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/arch/x86"
	"github.com/lunixbochs/elfhost/go/arch/x86_64"
	"github.com/lunixbochs/elfhost/go/models"
)

func TestSpaceReserve(t *testing.T) {
	a := x86_64.Arch
	s := NewSimSpace(a)
	addr, err := s.Reserve(0x400000, 0x1800, models.PlaceFixed)
	if err != nil {
		t.Fatal(err)
	}
	if addr != 0x400000 {
		t.Fatalf("fixed reservation at %#x", addr)
	}
	if _, err := s.Reserve(0x401000, 0x1000, models.PlaceFixed); !errors.Is(err, models.ErrOutOfMemory) {
		t.Fatalf("overlapping reservation: got %v", err)
	}
	if _, err := s.Reserve(0x400800, 0x1000, models.PlaceFixed); !errors.Is(err, models.ErrOutOfMemory) {
		t.Fatalf("unaligned reservation: got %v", err)
	}
	dyn, err := s.Reserve(0, 0x3000, models.PlaceDefault)
	if err != nil {
		t.Fatal(err)
	}
	if dyn != a.DynBase {
		t.Fatalf("default reservation at %#x, want %#x", dyn, a.DynBase)
	}
	next, err := s.Reserve(0, 0x1000, models.PlaceDefault)
	if err != nil {
		t.Fatal(err)
	}
	if next != dyn+0x3000 {
		t.Fatalf("second default reservation at %#x", next)
	}
	top, err := s.Reserve(0, 0x2000, models.PlaceTopDown)
	if err != nil {
		t.Fatal(err)
	}
	if top != a.TopDown-0x2000 {
		t.Fatalf("top-down reservation at %#x", top)
	}
	below, err := s.Reserve(0, 0x1000, models.PlaceTopDown)
	if err != nil {
		t.Fatal(err)
	}
	if below != top-0x1000 {
		t.Fatalf("second top-down reservation at %#x", below)
	}
	if n := len(s.Mappings()); n != 5 {
		t.Fatalf("%d regions, want 5:\n%v", n, s.Mappings())
	}
}

func TestSpaceExhausted(t *testing.T) {
	a := x86.Arch
	s := NewSimSpace(a)
	if _, err := s.Reserve(0, a.TopDown, models.PlaceTopDown); !errors.Is(err, models.ErrOutOfMemory) {
		t.Fatalf("got %v, want ErrOutOfMemory", err)
	}
	if _, err := s.Reserve(0xfffff000, 0x2000, models.PlaceFixed); !errors.Is(err, models.ErrOutOfMemory) {
		t.Fatalf("reservation past the address space: got %v", err)
	}
	if _, err := s.Reserve(0, 0x1000, models.Placement(9)); !errors.Is(err, models.ErrInvalidArgument) {
		t.Fatalf("bad placement: got %v", err)
	}
}

func TestSpaceMap(t *testing.T) {
	s := NewSimSpace(x86_64.Arch)
	addr, err := s.Reserve(0x10000, 0x2000, models.PlaceFixed)
	if err != nil {
		t.Fatal(err)
	}
	view, err := s.Map(addr, 0x2000)
	if err != nil {
		t.Fatal(err)
	}
	copy(view.Slice(addr+0x1ffc, 4), "abcd")
	// not visible until the view is written back
	p, err := s.MemRead(addr+0x1ffc, 4)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(p, make([]byte, 4)) {
		t.Fatalf("view leaked early: %q", p)
	}
	if err := s.Unmap(view); err != nil {
		t.Fatal(err)
	}
	if p, err = s.MemRead(addr+0x1ffc, 4); err != nil || string(p) != "abcd" {
		t.Fatalf("got %q, %v", p, err)
	}
	if err := s.Unmap(view); err == nil {
		t.Fatal("double unmap succeeded")
	}
	if _, err := s.Map(0x20000, 0x1000); err == nil {
		t.Fatal("mapped an unreserved range")
	}
}

func TestSpaceProtect(t *testing.T) {
	s := NewSimSpace(x86_64.Arch)
	addr, err := s.Reserve(0, 0x4000, models.PlaceTopDown)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Protect(addr, 0x1000, models.ProtGuard); err != nil {
		t.Fatal(err)
	}
	if err := s.Allocate(addr+0x1000, 0x2000, models.ProtRead|models.ProtWrite); err != nil {
		t.Fatal(err)
	}
	want := []models.Prot{models.ProtGuard, models.ProtRead | models.ProtWrite, models.ProtNone}
	pages := s.Mappings()
	if len(pages) != len(want) {
		t.Fatalf("got %d regions:\n%v", len(pages), pages)
	}
	for i, pg := range pages {
		if pg.Prot != want[i] {
			t.Errorf("region %d: %v, want %v", i, pg.Prot, want[i])
		}
	}
	if err := s.Allocate(addr+0x5000, 0x1000, models.ProtRead); !errors.Is(err, models.ErrOutOfMemory) {
		t.Fatalf("allocate outside reservation: got %v", err)
	}
	if err := s.Release(addr, 0x4000); err != nil {
		t.Fatal(err)
	}
	if len(s.Mappings()) != 0 {
		t.Fatalf("release left regions:\n%v", s.Mappings())
	}
	if err := s.Release(addr, 0x4000); err == nil {
		t.Fatal("released twice")
	}
}

func TestSpaceLabel(t *testing.T) {
	s := NewSimSpace(x86.Arch)
	addr, err := s.Reserve(0x8048000, 0x3000, models.PlaceFixed)
	if err != nil {
		t.Fatal(err)
	}
	s.Label(addr, 0x3000, "exe")
	if err := s.Allocate(addr, 0x1000, models.ProtRead|models.ProtExec); err != nil {
		t.Fatal(err)
	}
	for _, pg := range s.Mappings() {
		if pg.Desc != "exe" {
			t.Errorf("%v lost its label", pg)
		}
	}
}
