//go:build !windows

package main

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vigilproc/vigil/internal/pidfile"
	"github.com/vigilproc/vigil/internal/supervisor"
)

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "vigil.toml")
	body := "data_dir = \"" + dir + "\"\nlisten = \"\"\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return cfgPath
}

func TestBuildRootCommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{"start": false, "stop": false, "restart": false, "status": false, "health": false}
	for _, c := range root.Commands() {
		name := strings.Fields(c.Use)[0]
		if _, ok := want[name]; ok {
			want[name] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestSupervisedFlagHidden(t *testing.T) {
	root := buildRoot()
	start, _, err := root.Find([]string{"start"})
	if err != nil {
		t.Fatal(err)
	}
	f := start.Flags().Lookup("supervised")
	if f == nil {
		t.Fatal("supervised flag missing")
	}
	if !f.Hidden {
		t.Fatal("supervised flag should be hidden")
	}
}

func TestStartDaemonRejectsLiveInstance(t *testing.T) {
	cfgPath := writeConfig(t)
	cfg, err := loadConfig(&GlobalFlags{ConfigPath: cfgPath})
	if err != nil {
		t.Fatal(err)
	}
	if err := pidfile.New(cfg.PIDFile).Write(os.Getpid()); err != nil {
		t.Fatal(err)
	}

	// The parent must refuse before spawning anything; a success here
	// would leave the caller believing a second daemon started.
	root := buildRoot()
	root.SetArgs([]string{"start", "--daemon", "--config", cfgPath})
	err = root.Execute()
	if !errors.Is(err, supervisor.ErrAlreadyRunning) {
		t.Fatalf("err = %v, want ErrAlreadyRunning", err)
	}
}

func TestStopWhenNothingRuns(t *testing.T) {
	cfgPath := writeConfig(t)
	root := buildRoot()
	root.SetArgs([]string{"stop", "--config", cfgPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("stop with no daemon: %v", err)
	}
}

func TestStatusJSONWhenNothingRuns(t *testing.T) {
	cfgPath := writeConfig(t)
	root := buildRoot()
	root.SetArgs([]string{"status", "--json", "--config", cfgPath})
	if err := root.Execute(); err != nil {
		t.Fatalf("status: %v", err)
	}
}

func TestHealthCriticalWithoutMetrics(t *testing.T) {
	cfgPath := writeConfig(t)
	root := buildRoot()
	root.SetArgs([]string{"health", "--config", cfgPath})
	if err := root.Execute(); err == nil {
		t.Fatal("health should fail when no metrics document exists")
	}
}

func TestLoadConfigDefaultsWithoutPath(t *testing.T) {
	cfg, err := loadConfig(&GlobalFlags{})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.PIDFile == "" || cfg.MetricsFile == "" {
		t.Fatal("default config missing derived paths")
	}
}
