/*
Copyright © 2017 the InMAP authors.
This file is part of InMAP.

InMAP is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

InMAP is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with InMAP.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package ppgridutil wires the cobra/viper command-line surface
// around the ppgrid core, mirroring inmaputil's Cfg pattern: a
// cobra.Command tree bound to a shared *viper.Viper, with one
// PersistentPreRunE loading an optional TOML config file before every
// subcommand runs.
package ppgridutil

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/metno/ppgrid"
	"github.com/metno/ppgrid/netcdfgrid"
	"github.com/metno/ppgrid/paramfile"
	"github.com/metno/ppgrid/webstatus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// Cfg holds the command tree and the configuration backing it.
type Cfg struct {
	*viper.Viper

	Root, versionCmd, runCmd, cloudCmd, cloudStartCmd, cloudStatusCmd, cloudDeleteCmd, cloudLogsCmd *cobra.Command
}

// InitializeConfig builds the command tree: ppgrid [run|cloud|version].
func InitializeConfig() *Cfg {
	cfg := &Cfg{Viper: viper.New()}

	cfg.Root = &cobra.Command{
		Use:   "ppgrid",
		Short: "A gridded ensemble weather forecast post-processing engine.",
		Long: `ppgrid downscales and statistically calibrates gridded ensemble
forecast fields. Configuration can be set with command-line flags, a
TOML config file (--config), or environment variables prefixed PPGRID_.`,
		DisableAutoGenTag: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return setConfig(cfg)
		},
	}

	cfg.versionCmd = &cobra.Command{
		Use:               "version",
		Short:             "Print the version number",
		DisableAutoGenTag: true,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ppgrid v%s\n", Version)
		},
	}

	cfg.runCmd = &cobra.Command{
		Use:   "run <in> <out> [fileOpt...] -v <var> ...",
		Short: "Run a pipeline over one or more file pairs.",
		Long: `run parses its trailing arguments as a ppgrid pipeline
specification (input/output file globs, file options, and one or more
-v blocks naming a downscaler and calibrator chain per variable) and
applies it to every matched file pair.`,
		DisableAutoGenTag: true,
		Args:              cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cfg, args)
		},
	}

	cfg.cloudCmd = &cobra.Command{
		Use:               "cloud",
		Short:             "Interact with a Kubernetes cluster running ppgrid batch jobs.",
		DisableAutoGenTag: true,
	}
	cfg.cloudStartCmd = &cobra.Command{
		Use:   "start",
		Short: "Start a batch run on a Kubernetes cluster.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cloudStart(cfg, args)
		},
	}
	cfg.cloudStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Check the status of a cloud job.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cloudStatus(cfg)
		},
	}
	cfg.cloudDeleteCmd = &cobra.Command{
		Use:   "delete",
		Short: "Delete a cloud job.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cloudDelete(cfg)
		},
	}
	cfg.cloudLogsCmd = &cobra.Command{
		Use:   "logs",
		Short: "Fetch the logs of a cloud job's pods.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cloudLogs(cfg)
		},
	}

	cfg.Root.AddCommand(cfg.versionCmd, cfg.runCmd, cfg.cloudCmd)
	cfg.cloudCmd.AddCommand(cfg.cloudStartCmd, cfg.cloudStatusCmd, cfg.cloudDeleteCmd, cfg.cloudLogsCmd)

	flags := cfg.Root.PersistentFlags()
	flags.String("config", "", "path to a TOML configuration file")
	flags.String("log-level", "info", "log level: debug, info, warn, error")
	flags.Bool("no-cache", false, "give the run a new, empty neighbour cache (index maps are still cached within the run)")
	flags.String("status-addr", "", "if set, serve a live run status page and websocket feed on this address (e.g. ':8080')")
	flags.String("job-name", "ppgrid-run", "name of the cloud job (cloud subcommands)")
	flags.String("image", "ppgrid:latest", "container image to run (cloud start)")
	bindAll(cfg, flags)

	ppgrid.ParameterFileLoader = paramfile.Dispatch

	return cfg
}

func bindAll(cfg *Cfg, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		cfg.BindPFlag(f.Name, f)
	})
}

// setConfig loads --config, if set, as a TOML file and merges it under
// the already-bound flag/env values (flags and PPGRID_* env vars take
// precedence, matching inmaputil's viper precedence order).
func setConfig(cfg *Cfg) error {
	cfg.SetEnvPrefix("PPGRID")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	configureLogging(cfg.GetString("log-level"))

	path := cfg.GetString("config")
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return &ppgrid.ExternalError{Msg: fmt.Sprintf("opening config file '%s'", path), Err: err}
	}
	defer f.Close()
	var raw map[string]interface{}
	if _, err := toml.DecodeReader(f, &raw); err != nil {
		return &ppgrid.ConfigError{Msg: fmt.Sprintf("parsing config file '%s': %v", path, err)}
	}
	return cfg.MergeConfigMap(raw)
}

func configureLogging(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}

func runPipeline(cfg *Cfg, args []string) error {
	pipeline, err := ppgrid.ParseArgv(args)
	if err != nil {
		return err
	}

	drv := ppgrid.NewDriver(netcdfgrid.Open)
	if cfg.GetBool("no-cache") {
		drv.Cache = ppgrid.NewNeighbourCache()
	}

	status := webstatus.NewServer()
	drv.OnProgress = func(p ppgrid.Progress) {
		status.Report(p)
		fields := logrus.Fields{"input": p.InputFile, "output": p.OutputFile, "variable": p.Variable}
		if p.Err != nil {
			logrus.WithFields(fields).WithError(p.Err).Error("variable configuration failed")
			return
		}
		logrus.WithFields(fields).Info("variable configuration complete")
	}

	if addr := cfg.GetString("status-addr"); addr != "" {
		mux := http.NewServeMux()
		status.RegisterHandlers(mux)
		srv := &http.Server{Addr: addr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logrus.WithError(err).Error("status server stopped")
			}
		}()
		defer srv.Close()
		logrus.WithField("addr", addr).Info("serving run status")
	}

	return drv.Run(pipeline)
}
