package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"count-words/archive"
	"count-words/config"
	"count-words/search"
)

var version = "1.0.0"

// Command selects the front end
type Command string

const (
	CommandCount   Command = "count"
	CommandServe   Command = "serve"
	CommandTUI     Command = "tui"
	CommandHelp    Command = "help"
	CommandVersion Command = "version"
)

// Arguments for CLI flags; empty strings leave settings untouched
type Arguments struct {
	Command       Command
	Archive       string
	Word          string
	Addr          string
	Workspace     string
	KeepWorkspace bool
}

// parseArguments parses command line args
func parseArguments(args []string) (*Arguments, error) {
	result := &Arguments{Command: CommandCount}

	var positional []string
	expectAddr := false
	expectWorkspace := false

	for i, a := range args {
		if expectAddr {
			result.Addr = a
			expectAddr = false
			continue
		}
		if expectWorkspace {
			result.Workspace = a
			expectWorkspace = false
			continue
		}
		switch a {
		case "--addr":
			expectAddr = true
		case "--workspace":
			expectWorkspace = true
		case "--keep":
			result.KeepWorkspace = true
		case "--help", "-h":
			result.Command = CommandHelp
			return result, nil
		case "--version", "-v":
			result.Command = CommandVersion
			return result, nil
		case "--":
			positional = append(positional, args[i+1:]...)
			return result, assignPositional(result, positional)
		default:
			if strings.HasPrefix(a, "--") {
				return nil, fmt.Errorf("unknown flag %s", a)
			}
			positional = append(positional, a)
		}
	}
	if expectAddr {
		return nil, errors.New("--addr needs a value")
	}
	if expectWorkspace {
		return nil, errors.New("--workspace needs a value")
	}
	return result, assignPositional(result, positional)
}

func assignPositional(result *Arguments, positional []string) error {
	if len(positional) > 0 {
		switch positional[0] {
		case string(CommandServe), string(CommandTUI):
			result.Command = Command(positional[0])
			positional = positional[1:]
		}
	}

	switch result.Command {
	case CommandServe:
		if len(positional) > 0 {
			return fmt.Errorf("serve takes no arguments, got %q", positional)
		}
	case CommandTUI:
		if len(positional) > 2 {
			return fmt.Errorf("tui takes at most an archive and a word, got %q", positional)
		}
		if len(positional) > 0 {
			result.Archive = positional[0]
		}
		if len(positional) > 1 {
			result.Word = positional[1]
		}
	default:
		if len(positional) != 2 {
			return errors.New("expected an archive and a search word")
		}
		result.Archive, result.Word = positional[0], positional[1]
	}
	return nil
}

// apply overlays flags on settings
func (a *Arguments) apply(s config.Settings) config.Settings {
	if a.Addr != "" {
		s.Addr = a.Addr
	}
	if a.Workspace != "" {
		s.WorkspaceRoot = a.Workspace
	}
	return s
}

// showUsage (styled)
func showUsage() {
	fmt.Println()
	fmt.Println(logoStyle.Render(fmt.Sprintf("count-words v%s", version)))
	fmt.Println(infoStyle.Render("Count how often a word appears in the documents of an archive"))
	fmt.Println()

	fmt.Println(subHeaderStyle.Render("USAGE"))
	fmt.Println(infoStyle.Render("  count-words [flags] <archive.zip|archive.rar> <word>"))
	fmt.Println(infoStyle.Render("  count-words [flags] tui [archive] [word]"))
	fmt.Println(infoStyle.Render("  count-words [flags] serve"))
	fmt.Println()

	fmt.Println(subHeaderStyle.Render("FLAGS"))
	fmt.Println(infoStyle.Render("  --addr ADDR        Listen address for serve (default :8080)"))
	fmt.Println(infoStyle.Render("  --workspace DIR    Parent directory for per-run workspaces"))
	fmt.Println(infoStyle.Render("  --keep             Keep the extracted files after a run"))
	fmt.Println(infoStyle.Render("  --help, -h         Show help"))
	fmt.Println(infoStyle.Render("  --version, -v      Show version"))
	fmt.Println()

	fmt.Println(subHeaderStyle.Render("ENVIRONMENT"))
	for _, env := range []string{config.EnvAddr, config.EnvWorkspace, config.EnvMaxUploadMB, config.EnvMaxExtractMB, config.EnvLogLevel, config.EnvFilenameEncodings} {
		fmt.Println(infoStyle.Render("  " + env))
	}
	fmt.Println()

	fmt.Println(subHeaderStyle.Render("EXAMPLES"))
	fmt.Println(infoStyle.Render("  count-words reports.zip contract"))
	fmt.Println(infoStyle.Render("  count-words tui"))
	fmt.Println(infoStyle.Render("  count-words --addr :9000 serve"))
	fmt.Println()
}

// showVersion
func showVersion() {
	fmt.Println(successStyle.Render("count-words v" + version))
}

func newLogger(settings config.Settings) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "count-words",
	})
	logger.SetLevel(settings.Level())
	return logger
}

// Run parses CLI arguments and starts the selected front end. Returns a process exit code.
func Run() int {
	args, err := parseArguments(os.Args[1:])
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		showUsage()
		return 2
	}
	switch args.Command {
	case CommandHelp:
		showUsage()
		return 0
	case CommandVersion:
		showVersion()
		return 0
	}

	settings, err := config.Load()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}
	settings = args.apply(settings)
	logger := newLogger(settings)
	if args.Command == CommandTUI {
		// The TUI owns the terminal
		logger.SetLevel(log.ErrorLevel)
	}

	engine, err := search.NewEngine(settings, logger)
	if err != nil {
		logger.Error("could not create engine", "err", err)
		return 1
	}
	engine.KeepWorkspace = args.KeepWorkspace

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch args.Command {
	case CommandServe:
		return runServe(ctx, engine, settings, logger)
	case CommandTUI:
		return runTUI(engine, args)
	default:
		return runCount(ctx, engine, args, logger)
	}
}

func runServe(ctx context.Context, engine *search.Engine, settings config.Settings, logger *log.Logger) int {
	gin.SetMode(gin.ReleaseMode)
	srv, err := NewServer(engine, settings, logger.WithPrefix("web"))
	if err != nil {
		logger.Error("could not create server", "err", err)
		return 1
	}
	if err := srv.ListenAndServe(ctx, settings.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server stopped", "err", err)
		return 1
	}
	return 0
}

func runTUI(engine *search.Engine, args *Arguments) int {
	in, err := promptForSearch(searchInput{Archive: args.Archive, Word: args.Word})
	if err != nil {
		if errors.Is(err, errCancelled) {
			fmt.Println(warningStyle.Render("Search cancelled"))
			return 0
		}
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}

	p := tea.NewProgram(newModel(engine, in.Archive, in.Word), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		fmt.Println("Error:", err)
		return 1
	}
	if m, ok := final.(model); ok && m.report != nil && m.report.Result != nil {
		fmt.Println(m.report.String())
	}
	return 0
}

func runCount(ctx context.Context, engine *search.Engine, args *Arguments, logger *log.Logger) int {
	if err := validateWord(args.Word); err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 2
	}

	report, err := engine.RunFile(ctx, args.Archive, args.Word)
	logUsage(logger)
	if errors.Is(err, archive.ErrNoContent) {
		fmt.Println(warningStyle.Render("The archive contains no files."))
		return 0
	}
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return 1
	}

	printReport(report)
	return 0
}

func printReport(report *search.Report) {
	lines := report.Lines()
	fmt.Println(successStyle.Render(lines[0]))
	for i, rec := range report.Result.Records {
		if rec.Failed() {
			fmt.Println(warningStyle.Render(lines[i+1]))
		} else {
			fmt.Println(infoStyle.Render(lines[i+1]))
		}
	}
	if len(report.Result.Records) == 0 {
		fmt.Println(warningStyle.Render("No pdf, txt, csv or docx files in the archive."))
	}
}
