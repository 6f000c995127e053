package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/pingcap-incubator/tinyrep/kv/config"
	"github.com/pingcap-incubator/tinyrep/kv/coordinator"
	"github.com/pingcap-incubator/tinyrep/kv/transaction/commands"
	"github.com/pingcap-incubator/tinyrep/log"
	"github.com/pingcap/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	configPath  string
	outputPath  string
	logLevel    string
	interactive bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "tinyrep [script] [output]",
		Short: "Replicated concurrency control and recovery simulator",
		Long: "tinyrep runs a script of transactional commands against simulated sites.\n" +
			"Without a script, commands are read from stdin.",
		Args:          cobra.MaximumNArgs(2),
		RunE:          run,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.Flags().StringVarP(&outputPath, "output", "o", "", "write results to this file instead of stdout")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "L", "", "log level: debug, info, warn, error, fatal")
	rootCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "read commands from an interactive shell")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		log.Sync()
		os.Exit(1)
	}
	log.Sync()
}

func run(cmd *cobra.Command, args []string) error {
	conf, err := loadConfig()
	if err != nil {
		return err
	}
	if len(args) == 2 {
		if outputPath != "" {
			return errors.New("output given both as argument and flag")
		}
		outputPath = args[1]
	}
	setupLog(conf)
	log.Debugf("conf %+v", conf)

	if conf.StatusAddr != "" {
		go serveStatus(conf.StatusAddr)
	}

	out := io.Writer(os.Stdout)
	if outputPath != "" {
		f, err := os.Create(outputPath)
		if err != nil {
			return errors.Annotatef(err, "create output %s", outputPath)
		}
		defer f.Close()
		out = f
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	handleSignal(cancel)

	var src commands.Source
	switch {
	case len(args) > 0:
		f, err := os.Open(args[0])
		if err != nil {
			return errors.Annotatef(err, "open script %s", args[0])
		}
		defer f.Close()
		src = commands.NewScriptSource(f)
	case interactive:
		shell, err := newShell(ctx)
		if err != nil {
			return err
		}
		defer shell.Close()
		src = commands.NewLineSource(shell)
	default:
		src = commands.NewScriptSource(os.Stdin)
	}

	c := coordinator.New(conf, coordinator.NewTextOutput(out))
	err = c.Run(ctx, src)
	if errors.Cause(err) == context.Canceled {
		log.Info("interrupted")
		return nil
	}
	return err
}

func loadConfig() (*config.Config, error) {
	conf := config.NewDefaultConfig()
	if configPath != "" {
		var err error
		if conf, err = config.LoadFile(configPath); err != nil {
			return nil, err
		}
	}
	if logLevel != "" {
		conf.LogLevel = logLevel
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Annotate(err, "invalid config")
	}
	return conf, nil
}

func setupLog(conf *config.Config) {
	log.SetLevelByString(conf.LogLevel)
	if conf.LogFile == "" {
		return
	}
	log.SetHighlighting(false)
	log.SetOutput(&lumberjack.Logger{
		Filename:   conf.LogFile,
		MaxSize:    conf.LogMaxSizeMB,
		MaxBackups: conf.LogMaxBackups,
	})
}

func serveStatus(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Infof("listening on %v", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Errorf("status server stopped: %v", err)
	}
}

func handleSignal(cancel context.CancelFunc) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh,
		syscall.SIGHUP,
		syscall.SIGINT,
		syscall.SIGTERM,
		syscall.SIGQUIT)
	go func() {
		sig := <-sigCh
		log.Infof("Got signal [%s] to exit.", sig)
		cancel()
	}()
}

// shell reads commands from a terminal with line editing and history.
type shell struct {
	l *readline.Instance
}

func newShell(ctx context.Context) (*shell, error) {
	l, err := readline.NewEx(&readline.Config{
		Prompt:            "\033[31m»\033[0m ",
		HistoryFile:       "/tmp/tinyrep.history",
		InterruptPrompt:   "^C",
		EOFPrompt:         "^D",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()
	return &shell{l: l}, nil
}

// ReadLine returns io.EOF on ^C, ^D or "exit".
func (s *shell) ReadLine() (string, error) {
	line, err := s.l.Readline()
	switch {
	case err == readline.ErrInterrupt:
		return "", io.EOF
	case err != nil:
		return "", err
	case line == "exit":
		return "", io.EOF
	}
	return line, nil
}

func (s *shell) Close() error {
	return s.l.Close()
}
