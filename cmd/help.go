package main

import (
	"io"

	"github.com/urfave/cli"
)

func appHelpTemplate() string {
	return `NAME:
	{{.Name}} - {{.Usage}}

VERSION:
	{{.Version}}

COMMANDS:
	{{range .VisibleCommands}}{{join .Names ", "}}{{"\t"}}{{.Usage}}
	{{end}}
ENCODER
	{{range cate .Flags "encoder"}}{{.}}
	{{end}}
OS
	{{range cate .Flags "os"}}{{.}}
	{{end}}` + PlatformAppHelpTemplate() + `
MISC
	{{range cate .Flags "misc"}}{{.}}
	{{end}}
`
}

// categorize picks the flags registered in allFlags under category.
func categorize(flags []cli.Flag, category string) []cli.Flag {
	var out []cli.Flag
	for _, f := range flags {
		if allFlags[f.GetName()] == category {
			out = append(out, f)
		}
	}
	return out
}

func installHelp() {
	cli.AppHelpTemplate = appHelpTemplate()
	printer := cli.HelpPrinterCustom
	cli.HelpPrinter = func(w io.Writer, templ string, data interface{}) {
		printer(w, templ, data, map[string]interface{}{"cate": categorize})
	}
}
