package models

import (
	"io"

	"github.com/lunixbochs/struc"
)

// StrucStream packs and unpacks a sequence of values with shared options.
type StrucStream struct {
	Stream  io.ReadWriter
	Options *struc.Options
}

func (s *StrucStream) Pack(vals ...interface{}) error {
	for _, v := range vals {
		if err := struc.PackWithOptions(s.Stream, v, s.Options); err != nil {
			return err
		}
	}
	return nil
}

// Unpack expects pointers.
func (s *StrucStream) Unpack(vals ...interface{}) error {
	for _, v := range vals {
		if err := struc.UnpackWithOptions(s.Stream, v, s.Options); err != nil {
			return err
		}
	}
	return nil
}
