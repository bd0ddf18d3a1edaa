package main

import (
	"os"
	"testing"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func TestNewLogger_development(t *testing.T) {
	dev, err := newLogger(true)
	if err != nil {
		t.Fatal(err)
	}
	if !dev.Core().Enabled(zap.DebugLevel) {
		t.Error("development logger should log at debug level")
	}

	prod, err := newLogger(false)
	if err != nil {
		t.Fatal(err)
	}
	if prod.Core().Enabled(zap.DebugLevel) {
		t.Error("production logger should not log at debug level")
	}
}

func TestLoadConfig_logDevelopmentFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("NOTARYD_LOG_DEVELOPMENT", "true")

	found, err := loadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("expected no config file in an empty directory")
	}
	if !viper.GetBool("log.development") {
		t.Error("NOTARYD_LOG_DEVELOPMENT=true was not picked up")
	}
	if got := viper.GetDuration("challenge.window").Seconds(); got != 300 {
		t.Errorf("challenge.window default = %vs, want 300s", got)
	}
}
