package loader

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

const (
	// longest #! line accepted, excluding the #! itself
	scriptLineMax = 127
	// how many scripts may name another script as their interpreter
	maxScriptDepth = 4
)

var (
	scriptMagic = []byte("#!")
	utf8BOM     = []byte{0xef, 0xbb, 0xbf}
)

func MatchScript(r io.ReaderAt) bool {
	return matchScript(getMagic(r, len(utf8BOM)+len(scriptMagic)))
}

func matchScript(p []byte) bool {
	return bytes.HasPrefix(bytes.TrimPrefix(p, utf8BOM), scriptMagic)
}

// ParseScript reads the #! line of an interpreter script.
// It returns the interpreter path and its optional single argument.
func ParseScript(r io.ReaderAt) (interp, arg string, err error) {
	buf := make([]byte, len(utf8BOM)+len(scriptMagic)+scriptLineMax+1)
	n, err := r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return "", "", errors.Wrap(err, "failed to read script header")
	}
	buf = bytes.TrimPrefix(buf[:n], utf8BOM)
	if !bytes.HasPrefix(buf, scriptMagic) {
		return "", "", errors.Wrap(models.ErrInvalidScript, "missing #!")
	}
	line := buf[len(scriptMagic):]
	if i := bytes.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	if len(line) > scriptLineMax {
		return "", "", errors.Wrapf(models.ErrInvalidScript, "#! line longer than %d bytes", scriptLineMax)
	}
	line = bytes.Trim(line, " \t\r")
	if len(line) == 0 {
		return "", "", errors.Wrap(models.ErrInvalidScript, "no interpreter named")
	}
	if bytes.IndexByte(line, 0) >= 0 {
		return "", "", errors.Wrap(models.ErrInvalidScript, "NUL in #! line")
	}
	i := bytes.IndexAny(line, " \t")
	if i < 0 {
		return string(line), "", nil
	}
	return string(line[:i]), string(bytes.Trim(line[i:], " \t")), nil
}

// scriptArgs builds the argv an interpreter sees for a script invoked as args.
func scriptArgs(interp, arg, path string, args []string) []string {
	out := []string{interp}
	if arg != "" {
		out = append(out, arg)
	}
	out = append(out, path)
	if len(args) > 1 {
		out = append(out, args[1:]...)
	}
	return out
}
