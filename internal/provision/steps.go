// SPDX-License-Identifier: MPL-2.0

package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"groundwork-cli/internal/config"
	"groundwork-cli/internal/execx"
	"groundwork-cli/internal/gitrepo"
	"groundwork-cli/internal/patch"
	"groundwork-cli/internal/scaffold"
)

// Step names, in execution order. The order is a hard contract: each step's
// precondition assumes all prior steps succeeded.
const (
	StepRepoInit          = "repo-init"
	StepProjectInit       = "project-init"
	StepDatabaseConfigure = "database-configure"
	StepFrameworkExtend   = "framework-extend"
	StepSchemaMaterialize = "schema-materialize"
	StepConfigEmit        = "config-emit"
	StepHooksSetup        = "hooks-setup"
	StepFinalizeCommit    = "finalize-commit"
)

// Engine and registration literals probed for in the settings artifact.
const (
	postgresEngine   = "django.db.backends.postgresql"
	sqliteEngine     = "django.db.backends.sqlite3"
	restFrameworkApp = "rest_framework"
	staticfilesLine  = "'django.contrib.staticfiles',"
)

// Provisioner builds the step sequence for one workspace.
type Provisioner struct {
	cfg       *config.Config
	workspace string
	runner    execx.Runner
}

// NewProvisioner creates a Provisioner for the given workspace directory.
func NewProvisioner(cfg *config.Config, workspace string, runner execx.Runner) *Provisioner {
	return &Provisioner{cfg: cfg, workspace: workspace, runner: runner}
}

// SettingsPath returns the location of the generated settings artifact.
func (p *Provisioner) SettingsPath() string {
	return filepath.Join(p.workspace, p.cfg.Project.Name, "settings.py")
}

// MigrationsDir returns the sub-application's migrations directory, the
// completion marker for schema materialization.
func (p *Provisioner) MigrationsDir() string {
	return filepath.Join(p.workspace, p.cfg.Project.App, "migrations")
}

// Steps returns the eight pipeline steps in their contractual order.
func (p *Provisioner) Steps() []Step {
	return []Step{
		{Name: StepRepoInit, Done: p.repoInitDone, Run: p.repoInit},
		{Name: StepProjectInit, Done: p.projectInitDone, Run: p.projectInit},
		{Name: StepDatabaseConfigure, Done: p.databaseConfigureDone, Run: p.databaseConfigure},
		{Name: StepFrameworkExtend, Done: p.frameworkExtendDone, Run: p.frameworkExtend},
		{Name: StepSchemaMaterialize, Done: p.schemaMaterializeDone, Run: p.schemaMaterialize},
		{Name: StepConfigEmit, Done: p.configEmitDone, Run: p.configEmit},
		{Name: StepHooksSetup, Done: p.hooksSetupDone, Run: p.hooksSetup},
		{Name: StepFinalizeCommit, Done: p.finalizeCommitDone, Run: p.finalizeCommit},
	}
}

// poetry runs the dependency manager inside the workspace, streaming output
// so a failing tool's diagnostics stay visible.
func (p *Provisioner) poetry(ctx context.Context, args ...string) error {
	res := p.runner.Run(ctx, execx.Options{Dir: p.workspace}, "poetry", args...)
	return res.AsError("poetry")
}

// --- repo-init ---

func (p *Provisioner) repoInitDone(context.Context) (bool, string, error) {
	if gitrepo.IsInitialized(p.workspace) {
		return true, "repository already initialized", nil
	}
	return false, "", nil
}

func (p *Provisioner) repoInit(context.Context) error {
	_, err := gitrepo.Ensure(p.workspace)
	return err
}

// --- project-init ---

func (p *Provisioner) projectInitDone(context.Context) (bool, string, error) {
	if fileExists(filepath.Join(p.workspace, scaffold.ManifestFile)) {
		return true, "dependency manifest already exists", nil
	}
	return false, "", nil
}

func (p *Provisioner) projectInit(ctx context.Context) error {
	deps := p.cfg.Project.Dependencies
	initArgs := []string{
		"init", "-n",
		"--name", p.cfg.Project.Name,
		"--python", p.cfg.Project.Python,
		"--dependency", "django@" + deps.Django,
		"--dependency", "djangorestframework@" + deps.RESTFramework,
		"--dependency", "psycopg2-binary@" + deps.PostgresDriver,
	}
	if err := p.poetry(ctx, initArgs...); err != nil {
		return err
	}
	if err := p.poetry(ctx, "install"); err != nil {
		return err
	}
	if err := p.poetry(ctx, "run", "django-admin", "startproject", p.cfg.Project.Name, "."); err != nil {
		return err
	}
	return p.poetry(ctx, "run", "django-admin", "startapp", p.cfg.Project.App)
}

// --- database-configure ---

func (p *Provisioner) databaseConfigureDone(context.Context) (bool, string, error) {
	found, err := patch.Contains(p.SettingsPath(), postgresEngine)
	if err != nil {
		return false, "", err
	}
	if found {
		return true, "database engine already configured", nil
	}
	return false, "", nil
}

func (p *Provisioner) databaseConfigure(context.Context) error {
	db := p.cfg.Database
	connection := fmt.Sprintf(
		"'NAME': '%s',\n        'USER': '%s',\n        'PASSWORD': '%s',\n        'HOST': '%s',\n        'PORT': '%s',",
		db.Name, db.User, db.Password, db.Host, db.Port,
	)

	changed, err := patch.ApplyFile(p.SettingsPath(),
		patch.Replacement{
			Pattern: `'ENGINE': 'django\.db\.backends\.sqlite3'`,
			With:    "'ENGINE': '" + postgresEngine + "'",
		},
		patch.Replacement{
			Pattern: `'NAME': BASE_DIR / 'db\.sqlite3',`,
			With:    connection,
		},
	)
	if err != nil {
		return err
	}
	if !changed {
		return fmt.Errorf("settings artifact %s does not match the expected default database block", p.SettingsPath())
	}
	return nil
}

// --- framework-extend ---

func (p *Provisioner) frameworkExtendDone(context.Context) (bool, string, error) {
	found, err := patch.Contains(p.SettingsPath(), "'"+restFrameworkApp+"',")
	if err != nil {
		return false, "", err
	}
	if found {
		return true, "REST toolkit already registered", nil
	}
	return false, "", nil
}

func (p *Provisioner) frameworkExtend(context.Context) error {
	_, err := patch.ApplyFile(p.SettingsPath(), patch.Insertion{
		Anchor: staticfilesLine,
		Lines: []string{
			"    '" + restFrameworkApp + "',",
			"    '" + p.cfg.Project.App + "',",
		},
	})
	return err
}

// --- schema-materialize ---

func (p *Provisioner) schemaMaterializeDone(context.Context) (bool, string, error) {
	info, err := os.Stat(p.MigrationsDir())
	if err == nil && info.IsDir() {
		return true, "migrations already generated", nil
	}
	if err != nil && !os.IsNotExist(err) {
		return false, "", err
	}
	return false, "", nil
}

func (p *Provisioner) schemaMaterialize(ctx context.Context) error {
	if err := p.poetry(ctx, "run", "python", "manage.py", "makemigrations", p.cfg.Project.App); err != nil {
		return err
	}
	return p.poetry(ctx, "run", "python", "manage.py", "migrate")
}

// --- config-emit ---

func (p *Provisioner) configEmitDone(context.Context) (bool, string, error) {
	// The ignore file alone is the marker. Siblings missing while it exists
	// are not regenerated; see the documented marker gap.
	if fileExists(filepath.Join(p.workspace, scaffold.IgnoreFile)) {
		return true, "config files already emitted", nil
	}
	return false, "", nil
}

func (p *Provisioner) configEmit(context.Context) error {
	db := p.cfg.Database
	return scaffold.EmitConfigSet(p.workspace, scaffold.EnvValues{
		Name:     db.Name,
		User:     db.User,
		Password: db.Password,
		Host:     db.Host,
		Port:     db.Port,
	})
}

// --- hooks-setup ---

func (p *Provisioner) hooksSetupDone(context.Context) (bool, string, error) {
	if fileExists(filepath.Join(p.workspace, scaffold.HookConfigFile)) {
		return true, "pre-commit hooks already configured", nil
	}
	return false, "", nil
}

func (p *Provisioner) hooksSetup(ctx context.Context) error {
	if err := p.poetry(ctx, "add", "--group", "dev", "pre-commit"); err != nil {
		return err
	}
	if err := scaffold.EmitHookConfig(p.workspace); err != nil {
		return err
	}
	if err := p.poetry(ctx, "run", "pre-commit", "install"); err != nil {
		return err
	}
	if err := p.poetry(ctx, "run", "pre-commit", "autoupdate"); err != nil {
		return err
	}

	repo, err := gitrepo.Open(p.workspace)
	if err != nil {
		return err
	}
	if err := repo.Stage(scaffold.HookConfigFile); err != nil {
		return err
	}

	// Surface hook failures now rather than at the first real commit.
	return p.poetry(ctx, "run", "pre-commit", "run", "--all-files")
}

// --- finalize-commit ---

func (p *Provisioner) finalizeCommitDone(context.Context) (bool, string, error) {
	repo, err := gitrepo.Open(p.workspace)
	if err != nil {
		return false, "", err
	}
	has, err := repo.HasCommits()
	if err != nil {
		return false, "", err
	}
	if has {
		return true, "initial commit already exists", nil
	}
	return false, "", nil
}

func (p *Provisioner) finalizeCommit(context.Context) error {
	repo, err := gitrepo.Open(p.workspace)
	if err != nil {
		return err
	}
	_, err = repo.CommitAll(p.cfg.CommitMessage)
	return err
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
