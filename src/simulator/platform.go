package simulator

import (
	"fmt"

	"github.com/ofFBeaT9/Tritone-TPU-SoC-sub000/src/misc"
)

type Platform interface {
	Init(command_line_parser *misc.CommandLineParser)
	Fini()
	IsFinished() bool
	Cycle()
	Dump()
}

func newPlatformForMode(mode misc.PlatformMode) Platform {
	switch mode {
	case misc.PlatformModeTpu:
		return new(TpuPlatform)
	default:
		panic(fmt.Sprintf("unsupported platform mode: %s", mode))
	}
}
