package linux

import (
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/lunixbochs/elfhost/go/models"
)

// CPUID.1:EDX
const hwcapSSE2 = 1 << 26

// HostHwcap returns AT_HWCAP for arch.
// The mask starts from arch.Hwcap, a typical CPUID.1:EDX value. x/sys/cpu only reports
// one EDX feature (SSE2), so on an x86 host that bit follows the host and the rest stay fixed.
func HostHwcap(arch *models.Arch) uint64 {
	x86Host := runtime.GOARCH == "386" || runtime.GOARCH == "amd64"
	return hwcapFor(arch.Hwcap, x86Host, cpu.X86.HasSSE2)
}

func hwcapFor(base uint64, x86Host, sse2 bool) uint64 {
	if !x86Host {
		return base
	}
	if sse2 {
		return base | hwcapSSE2
	}
	return base &^ hwcapSSE2
}
