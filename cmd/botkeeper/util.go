package main

import (
	"github.com/loykin/botkeeper"
	cfg "github.com/loykin/botkeeper/internal/config"
)

func loadConfig(flags *GlobalFlags) (*botkeeper.Config, error) {
	return cfg.Load(flags.ConfigPath)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
