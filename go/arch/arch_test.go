package arch

import (
	"debug/elf"
	"testing"

	"github.com/pkg/errors"

	"github.com/lunixbochs/elfhost/go/models"
)

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		a, err := GetArch(name)
		if err != nil {
			t.Fatal(err)
		}
		b, err := ByClass(a.Class)
		if err != nil {
			t.Fatal(err)
		}
		c, err := ByTag(a.Tag)
		if err != nil {
			t.Fatal(err)
		}
		if a != b || a != c {
			t.Errorf("%s: lookup mismatch", name)
		}
	}
	if _, err := GetArch("arm"); !errors.Is(err, models.ErrUnsupportedArch) {
		t.Errorf("GetArch(arm) = %v", err)
	}
	if _, err := ByClass(elf.ELFCLASSNONE); !errors.Is(err, models.ErrInvalidClass) {
		t.Errorf("ByClass(0) = %v", err)
	}
}
