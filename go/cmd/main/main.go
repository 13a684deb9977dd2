package main

import (
	"github.com/lunixbochs/elfhost/go/cmd"

	_ "github.com/lunixbochs/elfhost/go/cmd/dump"
	_ "github.com/lunixbochs/elfhost/go/cmd/load"
	_ "github.com/lunixbochs/elfhost/go/cmd/show"
)

func main() { cmd.Main() }
