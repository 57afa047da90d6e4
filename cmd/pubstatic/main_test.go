package main

import (
	"os"
	"testing"

	"github.com/alecthomas/kong"
)

func TestBuildModeFlag(t *testing.T) {
	tests := []struct {
		name string
		env  string
		args []string
		want string
	}{
		{"default", "", []string{"build"}, "build"},
		{"from environment", "serve", []string{"build"}, "serve"},
		{"flag wins over environment", "serve", []string{"build", "--mode=watch"}, "watch"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ELEVENTY_RUN_MODE", tt.env)
			if tt.env == "" {
				os.Unsetenv("ELEVENTY_RUN_MODE")
			}
			parser, err := kong.New(&CLI, kong.Name("pubstatic"))
			if err != nil {
				t.Fatal(err)
			}
			ctx, err := parser.Parse(tt.args)
			if err != nil {
				t.Fatal(err)
			}
			if ctx.Command() != "build" {
				t.Fatalf("command = %q, want build", ctx.Command())
			}
			if CLI.Build.Mode != tt.want {
				t.Errorf("mode = %q, want %q", CLI.Build.Mode, tt.want)
			}
		})
	}
}
