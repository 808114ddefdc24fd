//go:build !windows

package tray

import "github.com/kataras/golog"

func showMessageBox(title, message string) {
	golog.Infof("%s: %s", title, message)
}
