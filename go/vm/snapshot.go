package vm

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/arch"
	"github.com/lunixbochs/elfhost/go/models"
)

// snapshot format:
//
// file header
// uint32(snapshot format version)
// uint32(crc32 of compressed data)
// uint64(length of compressed data)
// remainder is snappy-compressed
//
// -- uncompressed data start --
// uint32(architecture tag)
// uint64(number of mapped regions)
// 1..num: uint64(addr), uint64(len), uint32(prot), uint32(desc len), <desc>, <raw memory bytes of len>

const snapshotVersion = 1

var options = &struc.Options{Order: binary.BigEndian}

type snapshotHeader struct {
	Version uint32
	Crc     uint32
	Length  uint64
}

type regionHeader struct {
	Addr, Size uint64
	Prot       uint32
	DescLen    uint32 `struc:"sizeof=Desc"`
	Desc       string
}

// Snapshot serializes every region of the space, including its contents.
func Snapshot(s *Space) ([]byte, error) {
	var buf bytes.Buffer
	st := models.StrucStream{Stream: &buf, Options: options}
	mappings := s.Mappings()
	if err := st.Pack(uint32(s.Arch.Tag), uint64(len(mappings))); err != nil {
		return nil, err
	}
	for _, m := range mappings {
		hdr := &regionHeader{Addr: m.Addr, Size: m.Size, Prot: uint32(m.Prot), Desc: m.Desc}
		if err := st.Pack(hdr); err != nil {
			return nil, err
		}
		mem, err := s.MemRead(m.Addr, m.Size)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read region %s", m)
		}
		buf.Write(mem)
	}
	data := snappy.Encode(nil, buf.Bytes())

	var final bytes.Buffer
	hdr := &snapshotHeader{Version: snapshotVersion, Crc: crc32.ChecksumIEEE(data), Length: uint64(len(data))}
	if err := struc.PackWithOptions(&final, hdr, options); err != nil {
		return nil, err
	}
	final.Write(data)
	return final.Bytes(), nil
}

// Restore rebuilds a simulated Space from a snapshot.
func Restore(p []byte) (*Space, error) {
	r := bytes.NewReader(p)
	var hdr snapshotHeader
	if err := struc.UnpackWithOptions(r, &hdr, options); err != nil {
		return nil, errors.Wrap(err, "snapshot header")
	}
	if hdr.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported snapshot version %d", hdr.Version)
	}
	if hdr.Length != uint64(r.Len()) {
		return nil, errors.Errorf("snapshot length mismatch: %d != %d", hdr.Length, r.Len())
	}
	data := p[len(p)-r.Len():]
	if crc32.ChecksumIEEE(data) != hdr.Crc {
		return nil, errors.New("snapshot checksum mismatch")
	}
	body, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, errors.Wrap(err, "snapshot body")
	}
	br := bytes.NewReader(body)
	st := models.StrucStream{Stream: &readWriter{br}, Options: options}
	var tag uint32
	var count uint64
	if err := st.Unpack(&tag, &count); err != nil {
		return nil, err
	}
	a, err := arch.ByTag(models.Architecture(tag))
	if err != nil {
		return nil, err
	}
	s := NewSimSpace(a)
	for i := uint64(0); i < count; i++ {
		var rh regionHeader
		if err := st.Unpack(&rh); err != nil {
			return nil, errors.Wrapf(err, "region %d", i)
		}
		mem := make([]byte, rh.Size)
		if _, err := io.ReadFull(br, mem); err != nil {
			return nil, errors.Wrapf(err, "region %d data", i)
		}
		if _, err := s.Reserve(rh.Addr, rh.Size, models.PlaceFixed); err != nil {
			return nil, err
		}
		if err := s.MemWrite(rh.Addr, mem); err != nil {
			return nil, err
		}
		if err := s.Protect(rh.Addr, rh.Size, models.Prot(rh.Prot)); err != nil {
			return nil, err
		}
		s.Label(rh.Addr, rh.Size, rh.Desc)
	}
	return s, nil
}

type readWriter struct {
	io.Reader
}

func (readWriter) Write(p []byte) (int, error) {
	return 0, errors.New("read-only stream")
}
