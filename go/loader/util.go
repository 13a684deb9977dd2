package loader

import (
	"io"

	"github.com/lunixbochs/elfhost/go/models"
)

func getMagic(r io.ReaderAt, n int) []byte {
	ret := make([]byte, n)
	r.ReadAt(ret, 0)
	return ret
}

func closeHandle(r io.ReaderAt) error {
	if c, ok := r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// labeler is implemented by target memories that can name their regions.
type labeler interface {
	Label(addr, size uint64, desc string)
}

func label(mem models.TargetMemory, addr, size uint64, desc string) {
	if l, ok := mem.(labeler); ok && desc != "" {
		l.Label(addr, size, desc)
	}
}
