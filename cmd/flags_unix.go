//go:build !windows
// +build !windows

package main

import (
	"github.com/urfave/cli"

	"github.com/lambertxiao/go-formstream/pkg/config"
)

const (
	C_DAEMON = "d"
)

func FillConfig(c *cli.Context, conf *config.Config) {
	conf.Foreground = !c.GlobalBool(C_DAEMON)
}

func AppendAppFlags(app *cli.App) {
	app.Flags = append(app.Flags, []cli.Flag{
		cli.BoolFlag{
			Name:  C_DAEMON,
			Usage: "Run post/put in the background, logs go to log_dir",
		}}...)
}

func FillPlatformFlags(allFlags map[string]string) {
	for _, v := range []string{C_DAEMON} {
		allFlags[v] = "daemon"
	}
}

func PlatformAppHelpTemplate() string {
	return `
DAEMON
	{{range cate .Flags "daemon"}}{{.}}
	{{end}}`
}
