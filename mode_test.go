package pubstatic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeFromEnv(t *testing.T) {
	tests := []struct {
		env  string
		want RunMode
	}{
		{"", RunModeBuild},
		{"  ", RunModeBuild},
		{"build", RunModeBuild},
		{"BUILD", RunModeBuild},
		{"serve", RunModeServe},
		{" watch ", RunModeWatch},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			t.Setenv(RunModeEnv, tt.env)
			assert.Equal(t, tt.want, ModeFromEnv())
		})
	}
}

func TestRunModeIsProduction(t *testing.T) {
	assert.True(t, RunModeBuild.IsProduction())
	assert.False(t, RunModeServe.IsProduction())
	assert.False(t, RunModeWatch.IsProduction())
	assert.False(t, ParseRunMode("preview").IsProduction())
	assert.Equal(t, "serve", RunModeServe.String())
}
