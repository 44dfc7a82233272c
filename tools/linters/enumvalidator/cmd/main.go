package main

import (
	"golang.org/x/tools/go/analysis/singlechecker"

	"github.com/Minhal128/CodeX/tools/linters/enumvalidator"
)

func main() {
	singlechecker.Main(enumvalidator.Analyzer)
}
