package models

import (
	"fmt"
	"syscall"

	"github.com/pkg/errors"
)

var (
	ErrTruncatedHeader  = errors.New("ELF header truncated")
	ErrImageTruncated   = errors.New("ELF image truncated")
	ErrInvalidMagic     = errors.New("invalid ELF magic")
	ErrInvalidClass     = errors.New("invalid ELF class")
	ErrInvalidEncoding  = errors.New("invalid ELF data encoding")
	ErrInvalidVersion   = errors.New("invalid ELF version")
	ErrInvalidType      = errors.New("invalid ELF file type")
	ErrInvalidMachine   = errors.New("invalid ELF machine type")
	ErrHeaderFormat     = errors.New("invalid ELF header size")
	ErrProgHeaderFormat = errors.New("invalid ELF program header size")
	ErrSectHeaderFormat = errors.New("invalid ELF section header size")
	ErrNoLoadSegments   = errors.New("ELF image has no loadable segments")
	ErrExecutableStack  = errors.New("ELF image requests an executable stack")

	ErrOutOfMemory        = errors.New("out of target memory")
	ErrInvalidInterpreter = errors.New("invalid ELF interpreter")
	ErrUnsupportedArch    = errors.New("unsupported architecture")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidScript      = errors.New("invalid interpreter script")
)

// FormatError reports a header field that failed validation.
type FormatError struct {
	Err   error
	Field string
	Value uint64
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s=%#x", e.Err, e.Field, e.Value)
}

func (e *FormatError) Unwrap() error { return e.Err }
func (e *FormatError) Cause() error  { return e.Err }

// FieldError returns a FormatError for a rejected header field.
func FieldError(err error, field string, value uint64) error {
	return errors.WithStack(&FormatError{Err: err, Field: field, Value: value})
}

// Errno maps a load failure to the errno execve would return.
func Errno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrOutOfMemory):
		return syscall.ENOMEM
	case errors.Is(err, ErrInvalidArgument):
		return syscall.EFAULT
	case errors.Is(err, ErrInvalidInterpreter):
		return syscall.ELIBBAD
	default:
		return syscall.ENOEXEC
	}
}
