// =============================================================================
// FBDI Workflow - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. Every screen of the
// workflow is a subcommand; 'run' drives the whole sequence in one session.
//
// COBRA CLI STRUCTURE:
//   rootCmd (fbdi)
//   ├── preview        column mapping preview
//   ├── generate       generate and save the FBDI archive
//   ├── process        send an archive through the Oracle sub-steps
//   ├── status         look up an ESS job
//   ├── recon          generate and download the reconciliation report
//   ├── run            generate -> process -> reconcile in one session
//   ├── jobs           latest ESS jobs and flow requests
//   ├── mappings       template generation and the stored mapping table
//   ├── oracle         single Oracle operations
//   ├── serve          local HTTP console
//   └── version
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Global flags (--config, --verbose, --output)
//   2. Loading config.yaml, .env and FBDI_* overrides
//   3. Setting up logging and the backend client
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbdi-workflow/internal/api"
	"github.com/ginjaninja78/fbdi-workflow/internal/config"
	"github.com/ginjaninja78/fbdi-workflow/internal/logging"
	"github.com/ginjaninja78/fbdi-workflow/internal/types"
	"github.com/ginjaninja78/fbdi-workflow/pkg/utils"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging to stderr when set to true.
var verbose bool

// outputFormat selects how results are printed: "text" or "yaml".
var outputFormat string

// defaultConfigFile is read when present; --config must exist.
const defaultConfigFile = "config.yaml"

// envFile is loaded into the environment before configuration is read.
const envFile = ".env"

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fbdi",
	Short: "FBDI Workflow - Generate, process and reconcile Oracle FBDI packages",
	Long: `fbdi drives the FBDI backend through the full import workflow:

  1. Preview how the raw spreadsheet columns map onto the Oracle template
  2. Generate the FBDI archive
  3. Upload it to Oracle, load the interface tables and run AutoInvoice
  4. Generate and download the reconciliation report

Example Usage:
  fbdi run --file data.xlsx --project Acme --env DEV
  fbdi preview --file data.xlsx --project Acme --env DEV --export mappings.xlsx
  fbdi process --archive Acme_AR_FBDI.zip --gl-date 2025-01-31
  fbdi status 468083
  fbdi serve`,

	SilenceUsage:  true,
	SilenceErrors: true,

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and runs it.
// This is called by main.main(). Interrupts cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		defaultConfigFile,
		"Path to the configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging to stderr",
	)

	rootCmd.PersistentFlags().StringVarP(
		&outputFormat,
		"output",
		"o",
		formatText,
		"Output format: text or yaml",
	)
}

// =============================================================================
// APPLICATION SETUP
// =============================================================================

// app bundles what a command needs once configuration is loaded.
type app struct {
	cfg    *config.Config
	log    logging.Logger
	client *api.Client
	files  *utils.FileManager
	out    *printer
}

// setup loads configuration and builds the logger, the backend client and
// the file manager for cmd.
func setup(cmd *cobra.Command) (*app, error) {
	out, err := newPrinter(cmd.OutOrStdout(), outputFormat)
	if err != nil {
		return nil, err
	}

	path := cfgFile
	if !cmd.Flags().Changed("config") && !utils.FileExists(path) {
		path = ""
	}
	cfg, err := config.Load(path, envFile)
	if err != nil {
		return nil, err
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logging.New(logging.Options{
		FilePath: cfg.LogFile,
		Level:    level,
		Console:  verbose,
	})
	cobra.OnFinalize(func() { _ = log.Sync() })

	client, err := api.New(cfg.Backend.BaseURL, api.Options{
		Timeout: cfg.Backend.RequestTimeout,
		Logger:  log,
	})
	if err != nil {
		return nil, err
	}

	files := utils.NewFileManager(cfg.OutputDir)
	if err := files.EnsureDirectories(); err != nil {
		return nil, err
	}

	log.Debug("configuration loaded",
		"config", path,
		"backend", cfg.Backend.BaseURL,
		"output_dir", cfg.OutputDir,
		"recon_source", cfg.Recon.Source,
	)

	return &app{cfg: cfg, log: log, client: client, files: files, out: out}, nil
}

// errFeatureDisabled is returned by commands whose feature flag is off.
func errFeatureDisabled(flag string) error {
	return fmt.Errorf("this command is disabled; set features.%s: true (FBDI_FEATURES_%s=true) to enable it",
		flag, strings.ToUpper(flag))
}

// =============================================================================
// SHARED FLAGS
// =============================================================================

// sessionFlags are the four Session Config fields.
type sessionFlags struct {
	file         string
	templateType string
	project      string
	env          string
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "file", "f", "", "Raw data workbook (.xlsx)")
	cmd.Flags().StringVarP(&f.templateType, "type", "t", string(types.DefaultTemplateType), "FBDI template type (AR, AP, GL, ...)")
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "Project name")
	cmd.Flags().StringVarP(&f.env, "env", "e", "", "Environment type: DEV, TEST, UAT or PROD")
}

func (f *sessionFlags) config() types.SessionConfig {
	return types.SessionConfig{
		SourceFile:      f.file,
		TemplateType:    types.TemplateType(strings.ToUpper(strings.TrimSpace(f.templateType))),
		ProjectName:     f.project,
		EnvironmentType: types.EnvironmentType(strings.ToUpper(strings.TrimSpace(f.env))),
	}
}

// paramFlags override the configured business parameters.
type paramFlags struct {
	businessUnit string
	batchSource  string
	glDate       string
}

func (f *paramFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.businessUnit, "business-unit", "", "Business unit (default from config)")
	cmd.Flags().StringVar(&f.batchSource, "batch-source", "", "Batch source (default from config)")
	cmd.Flags().StringVar(&f.glDate, "gl-date", "", "GL date, YYYY-MM-DD (default today)")
}

func (f *paramFlags) changed() bool {
	return f.businessUnit != "" || f.batchSource != "" || f.glDate != ""
}

func (f *paramFlags) params(defaults types.BusinessParams) types.BusinessParams {
	p := defaults
	if f.businessUnit != "" {
		p.BusinessUnit = f.businessUnit
	}
	if f.batchSource != "" {
		p.BatchSource = f.batchSource
	}
	if f.glDate != "" {
		p.GLDate = f.glDate
	}
	return p
}

// requireArg is a cobra Args validator with a friendlier message.
func requireArg(name string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 {
			return errors.New("expected exactly one argument: " + name)
		}
		return nil
	}
}
