package arch

import (
	"debug/elf"
	"sort"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/arch/x86"
	"github.com/lunixbochs/elfhost/go/arch/x86_64"
	"github.com/lunixbochs/elfhost/go/models"
)

var archMap = map[string]*models.Arch{
	"x86":    x86.Arch,
	"x86_64": x86_64.Arch,
}

func GetArch(name string) (*models.Arch, error) {
	a, ok := archMap[name]
	if !ok {
		return nil, errors.Wrapf(models.ErrUnsupportedArch, "arch '%s' not found", name)
	}
	return a, nil
}

func ByTag(tag models.Architecture) (*models.Arch, error) {
	for _, a := range archMap {
		if a.Tag == tag {
			return a, nil
		}
	}
	return nil, errors.Wrapf(models.ErrUnsupportedArch, "%s", tag)
}

// ByClass selects the architecture for an ELF class byte.
func ByClass(class elf.Class) (*models.Arch, error) {
	for _, a := range archMap {
		if a.Class == class {
			return a, nil
		}
	}
	return nil, models.FieldError(models.ErrInvalidClass, "EI_CLASS", uint64(class))
}

func Names() []string {
	names := make([]string, 0, len(archMap))
	for name := range archMap {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
