// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"groundwork-cli/internal/config"
	"groundwork-cli/internal/execx"
	"groundwork-cli/internal/gitrepo"
	"groundwork-cli/internal/scaffold"
	"groundwork-cli/internal/testutil"
)

// djangoSettingsFixture mirrors the relevant slices of a freshly generated
// settings module: the app registry ending in staticfiles and the default
// sqlite database block.
const djangoSettingsFixture = `from pathlib import Path

BASE_DIR = Path(__file__).resolve().parent.parent

INSTALLED_APPS = [
    'django.contrib.admin',
    'django.contrib.auth',
    'django.contrib.contenttypes',
    'django.contrib.sessions',
    'django.contrib.messages',
    'django.contrib.staticfiles',
]

DATABASES = {
    'default': {
        'ENGINE': 'django.db.backends.sqlite3',
        'NAME': BASE_DIR / 'db.sqlite3',
    }
}
`

const pyprojectFixture = `[tool.poetry]
name = "backend"
version = "0.1.0"
description = ""
`

// scriptedTooling simulates the on-disk side effects of the external tools so
// the whole pipeline can run hermetically.
func scriptedTooling(t *testing.T, workspace string, cfg *config.Config) func(testutil.FakeCall) execx.Result {
	t.Helper()
	return func(call testutil.FakeCall) execx.Result {
		line := call.CommandLine()
		switch {
		case strings.HasPrefix(line, "poetry init"):
			testutil.MustWriteFile(t, filepath.Join(workspace, scaffold.ManifestFile), []byte(pyprojectFixture), 0o644)
		case strings.Contains(line, "startproject"):
			testutil.MustWriteFile(t, filepath.Join(workspace, cfg.Project.Name, "settings.py"), []byte(djangoSettingsFixture), 0o644)
			testutil.MustWriteFile(t, filepath.Join(workspace, "manage.py"), []byte("#!/usr/bin/env python\n"), 0o755)
		case strings.Contains(line, "startapp"):
			testutil.MustWriteFile(t, filepath.Join(workspace, cfg.Project.App, "models.py"), []byte("from django.db import models\n"), 0o644)
		case strings.Contains(line, "makemigrations"):
			testutil.MustWriteFile(t, filepath.Join(workspace, cfg.Project.App, "migrations", "__init__.py"), nil, 0o644)
		}
		return execx.Result{ExitCode: 0}
	}
}

func newTestProvisioner(t *testing.T) (*Provisioner, string, *config.Config, *testutil.FakeRunner) {
	t.Helper()
	workspace := t.TempDir()
	cfg := config.DefaultConfig()
	fake := &testutil.FakeRunner{}
	fake.OnRun = scriptedTooling(t, workspace, cfg)
	return NewProvisioner(cfg, workspace, fake), workspace, cfg, fake
}

func runPipeline(t *testing.T, p *Provisioner, opts ...PipelineOption) {
	t.Helper()
	if err := NewPipeline(p.Steps(), opts...).Run(context.Background()); err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}
}

func TestStepsContractualOrder(t *testing.T) {
	p, _, _, _ := newTestProvisioner(t)
	got := NewPipeline(p.Steps()).StepNames()
	want := []string{
		StepRepoInit, StepProjectInit, StepDatabaseConfigure, StepFrameworkExtend,
		StepSchemaMaterialize, StepConfigEmit, StepHooksSetup, StepFinalizeCommit,
	}
	if len(got) != len(want) {
		t.Fatalf("got %d steps, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	p, workspace, cfg, _ := newTestProvisioner(t)
	runPipeline(t, p)

	settings := string(testutil.MustReadFile(t, p.SettingsPath()))
	if !strings.Contains(settings, postgresEngine) {
		t.Error("settings still carry the sqlite engine")
	}
	if strings.Contains(settings, "db.sqlite3") {
		t.Error("default database name survived configuration")
	}
	for _, field := range []string{
		"'NAME': '" + cfg.Database.Name + "',",
		"'USER': '" + cfg.Database.User + "',",
		"'HOST': '" + cfg.Database.Host + "',",
		"'PORT': '" + cfg.Database.Port + "',",
	} {
		if !strings.Contains(settings, field) {
			t.Errorf("connection field %q missing from settings", field)
		}
	}
	if !strings.Contains(settings, "'"+restFrameworkApp+"',") {
		t.Error("REST toolkit not registered in settings")
	}
	if !strings.Contains(settings, "'"+cfg.Project.App+"',") {
		t.Error("sub-application not registered in settings")
	}

	if info, err := os.Stat(p.MigrationsDir()); err != nil || !info.IsDir() {
		t.Errorf("migrations directory missing: %v", err)
	}

	for _, name := range []string{
		scaffold.IgnoreFile,
		scaffold.LintConfigFile,
		scaffold.ImportSorterFile,
		scaffold.EnvFile,
		scaffold.HookConfigFile,
	} {
		if _, err := os.Stat(filepath.Join(workspace, name)); err != nil {
			t.Errorf("config file %s not emitted: %v", name, err)
		}
	}
	manifest := string(testutil.MustReadFile(t, filepath.Join(workspace, scaffold.ManifestFile)))
	if !strings.Contains(manifest, "[tool.black]") {
		t.Error("formatter block not appended to the manifest")
	}

	repo, err := gitrepo.Open(workspace)
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	count, err := repo.CommitCount()
	if err != nil {
		t.Fatalf("counting commits: %v", err)
	}
	if count != 1 {
		t.Errorf("commit count = %d, want 1", count)
	}
}

func TestPipelineRerunIsIdempotent(t *testing.T) {
	p, workspace, _, fake := newTestProvisioner(t)
	runPipeline(t, p)

	firstCalls := len(fake.Calls())
	settingsBefore := testutil.MustReadFile(t, p.SettingsPath())

	var events []Event
	runPipeline(t, p, WithEventFunc(func(e Event) { events = append(events, e) }))

	if len(events) != len(p.Steps()) {
		t.Fatalf("got %d events on rerun, want %d", len(events), len(p.Steps()))
	}
	for _, e := range events {
		if e.Kind != EventSkipped {
			t.Errorf("step %s was not skipped on rerun", e.Step)
		}
		if e.Notice == "" {
			t.Errorf("step %s skipped without a notice", e.Step)
		}
	}
	if got := len(fake.Calls()); got != firstCalls {
		t.Errorf("rerun invoked %d external commands", got-firstCalls)
	}

	settingsAfter := testutil.MustReadFile(t, p.SettingsPath())
	if !bytes.Equal(settingsBefore, settingsAfter) {
		t.Error("settings artifact changed on rerun")
	}

	repo, err := gitrepo.Open(workspace)
	if err != nil {
		t.Fatalf("opening repository: %v", err)
	}
	count, err := repo.CommitCount()
	if err != nil {
		t.Fatalf("counting commits: %v", err)
	}
	if count != 1 {
		t.Errorf("commit count after rerun = %d, want 1", count)
	}
}

func TestProjectInitCommandSequence(t *testing.T) {
	p, _, cfg, fake := newTestProvisioner(t)
	if err := p.projectInit(context.Background()); err != nil {
		t.Fatalf("projectInit failed: %v", err)
	}

	calls := fake.Calls()
	if len(calls) != 4 {
		t.Fatalf("got %d commands, want 4", len(calls))
	}

	init := calls[0].CommandLine()
	for _, fragment := range []string{
		"poetry init -n",
		"--name " + cfg.Project.Name,
		"--python " + cfg.Project.Python,
		"--dependency django@" + cfg.Project.Dependencies.Django,
		"--dependency djangorestframework@" + cfg.Project.Dependencies.RESTFramework,
		"--dependency psycopg2-binary@" + cfg.Project.Dependencies.PostgresDriver,
	} {
		if !strings.Contains(init, fragment) {
			t.Errorf("init command missing %q: %s", fragment, init)
		}
	}
	if got := calls[1].CommandLine(); got != "poetry install" {
		t.Errorf("second command = %q, want poetry install", got)
	}
	if got := calls[2].CommandLine(); got != "poetry run django-admin startproject "+cfg.Project.Name+" ." {
		t.Errorf("third command = %q", got)
	}
	if got := calls[3].CommandLine(); got != "poetry run django-admin startapp "+cfg.Project.App {
		t.Errorf("fourth command = %q", got)
	}
}

func TestDatabaseConfigureDetectsConfiguredEngine(t *testing.T) {
	p, _, _, _ := newTestProvisioner(t)
	configured := strings.ReplaceAll(djangoSettingsFixture, sqliteEngine, postgresEngine)
	testutil.MustWriteFile(t, p.SettingsPath(), []byte(configured), 0o644)

	done, notice, err := p.databaseConfigureDone(context.Background())
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !done {
		t.Fatal("configured engine not detected")
	}
	if notice == "" {
		t.Error("detection produced no notice")
	}
}

func TestDatabaseConfigureRequiresSettingsArtifact(t *testing.T) {
	// The settings file is project-init's postcondition; probing it before
	// that step ran must abort the pipeline rather than silently skip.
	p, _, _, _ := newTestProvisioner(t)

	if _, _, err := p.databaseConfigureDone(context.Background()); err == nil {
		t.Fatal("probe succeeded without the settings artifact")
	}
}

func TestDatabaseConfigureRejectsUnexpectedLayout(t *testing.T) {
	p, _, _, _ := newTestProvisioner(t)
	testutil.MustWriteFile(t, p.SettingsPath(), []byte("DATABASES = {}\n"), 0o644)

	if err := p.databaseConfigure(context.Background()); err == nil {
		t.Fatal("expected an error for a settings file without the default database block")
	}
}

func TestFrameworkExtendInsertsAfterRegistryTail(t *testing.T) {
	p, _, cfg, _ := newTestProvisioner(t)
	testutil.MustWriteFile(t, p.SettingsPath(), []byte(djangoSettingsFixture), 0o644)

	if err := p.frameworkExtend(context.Background()); err != nil {
		t.Fatalf("frameworkExtend failed: %v", err)
	}

	lines := strings.Split(string(testutil.MustReadFile(t, p.SettingsPath())), "\n")
	anchorAt := -1
	for i, line := range lines {
		if strings.Contains(line, staticfilesLine) {
			anchorAt = i
			break
		}
	}
	if anchorAt < 0 {
		t.Fatal("anchor line vanished")
	}
	if got := strings.TrimSpace(lines[anchorAt+1]); got != "'"+restFrameworkApp+"'," {
		t.Errorf("line after anchor = %q", got)
	}
	if got := strings.TrimSpace(lines[anchorAt+2]); got != "'"+cfg.Project.App+"'," {
		t.Errorf("second line after anchor = %q", got)
	}
}

func TestHooksSetupCommandSequence(t *testing.T) {
	p, workspace, _, fake := newTestProvisioner(t)
	if _, err := gitrepo.Ensure(workspace); err != nil {
		t.Fatalf("initializing repository: %v", err)
	}
	testutil.MustWriteFile(t, filepath.Join(workspace, scaffold.ManifestFile), []byte(pyprojectFixture), 0o644)

	if err := p.hooksSetup(context.Background()); err != nil {
		t.Fatalf("hooksSetup failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(workspace, scaffold.HookConfigFile)); err != nil {
		t.Fatalf("hook descriptor not written: %v", err)
	}

	want := []string{
		"poetry add --group dev pre-commit",
		"poetry run pre-commit install",
		"poetry run pre-commit autoupdate",
		"poetry run pre-commit run --all-files",
	}
	calls := fake.Calls()
	if len(calls) != len(want) {
		t.Fatalf("got %d commands, want %d", len(calls), len(want))
	}
	for i, w := range want {
		if got := calls[i].CommandLine(); got != w {
			t.Errorf("command %d = %q, want %q", i, got, w)
		}
	}
}

func TestConfigEmitMarkerIsIgnoreFileOnly(t *testing.T) {
	// Only the ignore file is probed; a missing sibling does not trigger
	// re-emission on rerun.
	p, workspace, _, _ := newTestProvisioner(t)
	testutil.MustWriteFile(t, filepath.Join(workspace, scaffold.IgnoreFile), []byte(".env\n"), 0o644)

	done, _, err := p.configEmitDone(context.Background())
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if !done {
		t.Fatal("ignore file present but step not considered done")
	}
	if _, err := os.Stat(filepath.Join(workspace, scaffold.EnvFile)); !os.IsNotExist(err) {
		t.Fatalf("test precondition broken: %v", err)
	}
}

func TestToolFailureSurfacesExitStatus(t *testing.T) {
	p, _, _, fake := newTestProvisioner(t)
	base := fake.OnRun
	fake.OnRun = func(call testutil.FakeCall) execx.Result {
		if call.CommandLine() == "poetry install" {
			return execx.Result{ExitCode: 1}
		}
		return base(call)
	}

	err := NewPipeline(p.Steps()).Run(context.Background())
	if err == nil {
		t.Fatal("expected pipeline failure")
	}
	var stepErr *StepError
	if !errors.As(err, &stepErr) || stepErr.Step != StepProjectInit {
		t.Fatalf("failure not attributed to %s: %v", StepProjectInit, err)
	}
	var exitErr *execx.ExitStatusError
	if !errors.As(err, &exitErr) || exitErr.Code != 1 {
		t.Fatalf("exit status not preserved: %v", err)
	}
}
