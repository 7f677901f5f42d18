// Command sandboxrunner is the per-job sandbox supervisor process: it reads
// a "start" message from stdin, loads the declared bundle under the
// installed guards, invokes its handler, and reports the outcome back over
// stdout as line-delimited JSON (spec §4.4-§4.6).
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/benediktbwimmer/sandboxrunner/internal/config"
	"github.com/benediktbwimmer/sandboxrunner/internal/dispatch"
	"github.com/benediktbwimmer/sandboxrunner/internal/guard"
	"github.com/benediktbwimmer/sandboxrunner/internal/handler"
	"github.com/benediktbwimmer/sandboxrunner/internal/logging"
	"github.com/benediktbwimmer/sandboxrunner/internal/wire"
)

// hostRootPrefixEnv mirrors handler.HostRootPrefixEnv so --host-root can be
// left unset and picked up from the parent's environment instead.
const hostRootPrefixEnv = handler.HostRootPrefixEnv

func main() {
	var (
		configPath string
		hostRoot   string
		debug      bool
	)

	root := &cobra.Command{
		Use:   "sandboxrunner",
		Short: "Run one sandboxed bundle handler invocation over stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(os.Stdin, os.Stdout, configPath, hostRoot, debug)
		},
	}

	flags := root.Flags()
	flags.StringVar(&configPath, "config", "", "path to the process-hardening configuration file (JSON or JSONC)")
	flags.StringVar(&hostRoot, "host-root", os.Getenv(hostRootPrefixEnv), "optional host-root remap for paths outside the bundle")
	flags.BoolVar(&debug, "debug", false, "enable debug-level logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(stdin io.Reader, stdout io.Writer, configPath, hostRoot string, debug bool) error {
	logger := logging.Setup(debug)

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return fmt.Errorf("loading hardening config: %w", err)
	}

	ch := wire.NewChannel(stdin, stdout)

	startMsg, ok := wire.WaitForStart(ch.Inbound())
	if !ok {
		return fmt.Errorf("input closed before a start message arrived")
	}

	var payload config.StartPayload
	if err := json.Unmarshal(startMsg.Payload, &payload); err != nil {
		return fmt.Errorf("decoding start payload: %w", err)
	}

	table := dispatch.NewTable()
	ctx, cancel := context.WithCancel(context.Background())
	dispatcher := dispatch.New(ch.Inbound(), table, cancel)
	go dispatcher.Run()

	runtime := handler.New(handler.NewEntryLoader(), ch, table, handler.Options{
		HostRoot:       hostRoot,
		AllowGitConfig: cfg.Filesystem.AllowGitConfig,
		DomainPolicy: guard.DomainPolicy{
			AllowedDomains: cfg.Network.AllowedDomains,
			DeniedDomains:  cfg.Network.DeniedDomains,
		},
		ProcessDenyRules: cfg.Process.Deny,
		Logger:           logrus.NewEntry(logger),
		CancelReason:     dispatcher.CancelReason,
	})

	if err := runtime.Execute(ctx, payload); err != nil {
		logger.WithError(err).Error("handler runtime setup failed")
		dispatcher.Stop()
		<-dispatcher.Done()
		return err
	}

	dispatcher.Stop()
	<-dispatcher.Done()
	return nil
}
