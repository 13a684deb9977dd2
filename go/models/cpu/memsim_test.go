package cpu

import (
	"bytes"
	"testing"

	"github.com/lunixbochs/elfhost/go/models"
)

// this shouldn't repeat much at width
// TODO: replace with a de bruijn sequence so offsets can be recovered from a mismatch
func pattern(len int) []byte {
	p := make([]byte, len)
	width := 8
	for i := range p {
		cycle := i / width
		p[i] = byte(cycle*width*i + i)
	}
	return p
}

// table of overlap tests for an 0x1100-0x1200 region
// {start, end, should_error}
var overlapTable = [][]uint64{
	{0x1000, 0x1100, 0},
	{0x1000, 0x1050, 0},
	{0x1000, 0x1200, 1},
	{0x1000, 0x1250, 1},
	{0x1100, 0x1150, 1},
	{0x1100, 0x1200, 1},
	{0x1100, 0x1250, 1},
	{0x1150, 0x1200, 1},
	{0x1150, 0x1250, 1},
	{0x1200, 0x1250, 0},
}

func BenchmarkMemSimMap(b *testing.B) {
	m := &MemSim{}
	for i := 0; i < b.N; i++ {
		addr := uint64(i*0x1000) & 0xffffffff
		m.Map(addr, 0x1000, 0, true)
	}
}

func BenchmarkMemSimRead(b *testing.B) {
	m := &MemSim{}
	m.Map(0x1000, 0x100000, 0, true)
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Read(uint64(i*4)&0xfffff, p, 0)
	}
}

func BenchmarkMemSimWrite(b *testing.B) {
	m := &MemSim{}
	m.Map(0x1000, 0x100000, 0, true)
	p := make([]byte, 4)
	for i := 0; i < b.N; i++ {
		m.Write(uint64(i*4)&0xfffff, p, 0)
	}
}

func TestMemSim(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x1000, 0, false)

	// basic read/write test
	b := pattern(0x1000)
	c := make([]byte, len(b))
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Fatal(err, "write failed")
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Fatal(err, "read failed")
	} else if !bytes.Equal(b, c) {
		t.Fatal("read/write inconsistent")
	}

	// make sure still-mapped region reads/writes correctly
	for _, region := range overlapTable {
		p := make([]byte, region[1]-region[0])
		if err := m.Read(region[0], p, 0); err != nil {
			t.Errorf("read_mapped(%#x, %#x) error: %v", region[0], region[1], err)
		}
		if err := m.Write(region[0], p, 0); err != nil {
			t.Errorf("write_mapped(%#x, %#x) error: %v", region[0], region[1], err)
		}
	}

	// unmaps 0x1100-0x1200
	m.Unmap(0x1100, 0x100)

	// make sure areas around unmapped region still have the right values
	if err := m.Read(0x1000, c[:0x100], 0); err != nil {
		t.Error("failed to read left-adjacent memory after unmap")
	} else if !bytes.Equal(b[:0x100], c[:0x100]) {
		t.Error("left-adjacent memory corruption after unmap")
	}
	if err := m.Read(0x1200, c[:0x100], 0); err != nil {
		t.Error("failed to read right-adjacent memory after unmap")
	} else if !bytes.Equal(b[0x200:0x300], c[:0x100]) {
		t.Error("right-adjacent memory corruption after unmap")
	}

	// make sure unmapped region reads/writes fail correctly
	for _, region := range overlapTable {
		p := make([]byte, region[1]-region[0])
		if err := m.Read(region[0], p, 0); err == nil && region[2] == 1 || err != nil && region[2] == 0 {
			t.Errorf("read_unmapped(%#x, %#x) bad error value: %v", region[0], region[1], err)
		}
		if err := m.Write(region[0], p, 0); err == nil && region[2] == 1 || err != nil && region[2] == 0 {
			t.Errorf("write_unmapped(%#x, %#x) bad error value: %v", region[0], region[1], err)
		}
	}

	// test io across multiple adjacent maps
	m = &MemSim{}
	m.Map(0x1000, 0x1000, 0, false)
	m.Map(0x2000, 0x1000, 0, false)
	m.Map(0x3000, 0x1000, 0, false)

	b = pattern(0x3000)
	c = make([]byte, len(b))

	if err := m.Write(0x1000, b, 0); err != nil {
		t.Error(err, "while writing multiple adjacent maps")
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Error(err, "while reading multiple adjacent maps")
	} else if !bytes.Equal(b, c) {
		t.Log(b)
		t.Log(c)
		t.Error("memory corruption when reading multiple adjacent maps")
	}

	// setup for overlapping map tests
	m = &MemSim{}
	b = pattern(0x10000)
	c = make([]byte, len(b))

	m.Map(0x1000, 0x10000, 0, false)
	if err := m.Write(0x1000, b, 0); err != nil {
		t.Error(err, "while writing initial zeroing map")
	} else if err := m.Read(0x1000, c, 0); err != nil {
		t.Error(err, "while reading initial zeroing map")
	} else if !bytes.Equal(b, c) {
		t.Error("corruption while reading initial zeroing map")
	}

	// test overlapping Map() with zero=false
	m.Map(0x1000, 0x10000, 0, false)
	c = make([]byte, len(b))
	if err := m.Read(0x1000, c, 0); err != nil {
		t.Error(err, "while reading zeroing map")
	} else if !bytes.Equal(b, c) {
		t.Error("memory inconsistent when remapping with zero=false")
	}

	// test overlapping Map() with zero=true (reusing the last map)
	m.Map(0x2000, 0x1000, 0, true)
	// this zeroes the equivalent page in b
	copy(b[0x1000:0x2000], make([]byte, 0x1000))

	c = make([]byte, len(b))
	if err := m.Read(0x1000, c, 0); err != nil {
		t.Error(err, "while reading zeroing map")
	} else if !bytes.Equal(b, c) {
		t.Error("memory inconsistent when remapping with zero=true")
	}
}

func TestMemSimProt(t *testing.T) {
	m := &MemSim{}
	m.Map(0x1000, 0x3000, rw, true)
	m.Prot(0x2000, 0x1000, models.ProtRead)
	if len(m.Mem) != 3 {
		t.Fatalf("expected 3 pages after Prot, got:\n%s", m.Mem)
	}
	p := make([]byte, 4)
	if err := m.Write(0x2000, p, models.ProtWrite); err == nil {
		t.Error("write succeeded on read-only page")
	}
	if err := m.Write(0x1ffe, p, models.ProtWrite); err == nil {
		t.Error("write succeeded across read-only page boundary")
	}
	if err := m.Write(0x3000, p, models.ProtWrite); err != nil {
		t.Error(err)
	}
	if err := m.Read(0x2000, p, models.ProtRead); err != nil {
		t.Error(err)
	}
	// writes to the split pages are visible through the original backing data
	if err := m.Write(0x1ffc, []byte{1, 2, 3, 4}, 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Read(0x1ffc, p, 0); err != nil || !bytes.Equal(p, []byte{1, 2, 3, 4}) {
		t.Errorf("read after split: %x, %v", p, err)
	}
}

func TestMemSimFindFree(t *testing.T) {
	m := &MemSim{NoData: true}
	m.Map(0x10000, 0x1000, 0, true)
	m.Map(0x12000, 0x2000, 0, true)
	m.Map(0x20000, 0x1000, 0, true)

	table := []struct {
		lo, hi, size uint64
		topDown      bool
		addr         uint64
		ok           bool
	}{
		{0x10000, 0x30000, 0x1000, false, 0x11000, true},
		{0x10000, 0x30000, 0x2000, false, 0x14000, true},
		{0x10000, 0x30000, 0x1000, true, 0x2f000, true},
		{0x10000, 0x21000, 0x1000, true, 0x1f000, true},
		{0x10000, 0x21000, 0xc000, true, 0x14000, true},
		{0x10000, 0x21000, 0xd000, true, 0, false},
		{0x10000, 0x14000, 0x2000, false, 0, false},
		{0x10000, 0x11000, 0x2000, true, 0, false},
		{0x0, 0x10000, 0x10000, true, 0, true},
	}
	for _, v := range table {
		addr, ok := m.FindFree(v.lo, v.hi, v.size, 0x1000, v.topDown)
		if ok != v.ok || (ok && addr != v.addr) {
			t.Errorf("FindFree(%#x, %#x, %#x, topDown=%v) = %#x, %v; want %#x, %v", v.lo, v.hi, v.size, v.topDown, addr, ok, v.addr, v.ok)
		}
		if ok && !m.Free(addr, v.size) {
			t.Errorf("FindFree returned used range %#x+%#x", addr, v.size)
		}
	}
	for _, pg := range m.Mem {
		if pg.Data != nil {
			t.Errorf("bookkeeping page %s allocated data", pg)
		}
	}
}

