package main

import (
	"github.com/alexisbeaulieu97/provision/internal/handler"
	commandhandler "github.com/alexisbeaulieu97/provision/internal/handlers/command"
	filehandler "github.com/alexisbeaulieu97/provision/internal/handlers/file"
	formathandler "github.com/alexisbeaulieu97/provision/internal/handlers/format"
	gitconfighandler "github.com/alexisbeaulieu97/provision/internal/handlers/gitconfig"
	installerhandler "github.com/alexisbeaulieu97/provision/internal/handlers/installer"
	lineinfilehandler "github.com/alexisbeaulieu97/provision/internal/handlers/lineinfile"
	packagehandler "github.com/alexisbeaulieu97/provision/internal/handlers/package"
	requirehandler "github.com/alexisbeaulieu97/provision/internal/handlers/require"
	sshkeyhandler "github.com/alexisbeaulieu97/provision/internal/handlers/sshkey"
)

// newRegistry registers one handler per step type.
func newRegistry(app *appContext) *handler.Registry {
	var commandOpts []commandhandler.Option
	if app.stdin != nil {
		commandOpts = append(commandOpts, commandhandler.WithStdin(app.stdin))
	}
	var installerOpts []installerhandler.Option
	if app.httpClient != nil {
		installerOpts = append(installerOpts, installerhandler.WithClient(app.httpClient))
	}

	return handler.NewRegistry().MustRegister(
		packagehandler.New(),
		commandhandler.New(commandOpts...),
		lineinfilehandler.New(),
		filehandler.New(),
		sshkeyhandler.New(),
		gitconfighandler.New(lazyPrompter{app: app}),
		installerhandler.New(installerOpts...),
		formathandler.New(app.stdout),
		requirehandler.New(),
	)
}
