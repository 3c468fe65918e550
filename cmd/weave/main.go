// weave 为单个文档插入过渡语并输出结果
//
// 用法：
//
//	weave [-config config.yaml] [-marker TRANSITION] [file.txt|file.md]
//
// 未指定文件时从标准输入读取。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"

	appconfig "github.com/fyerfyer/doc-transition/config"
	"github.com/fyerfyer/doc-transition/internal/app"
	"github.com/fyerfyer/doc-transition/internal/document"
	"github.com/fyerfyer/doc-transition/internal/transition"
	"github.com/fyerfyer/doc-transition/pkg/storage"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "weave: %v\n", err)
		os.Exit(1)
	}
}

// run 执行一次完整的处理，便于测试时替换输入输出
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("weave", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configFile := fs.String("config", "config.yaml", "Path to config file")
	envFile := fs.String("env", ".env", "Path to .env file")
	marker := fs.String("marker", "", "Override the transition marker")
	model := fs.String("model", "", "Override the LLM model")
	noCache := fs.Bool("no-cache", false, "Disable the phrase cache")
	logLevel := fs.String("log-level", "warn", "Log level (debug/info/warn/error)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() > 1 {
		return errors.New("at most one input file is accepted")
	}

	if err := appconfig.LoadEnvFile(*envFile); err != nil {
		return err
	}
	cfg, err := appconfig.Load(*configFile)
	if err != nil {
		return err
	}
	if *marker != "" {
		cfg.Transition.Marker = *marker
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}
	if *noCache {
		cfg.Cache.Enable = false
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		return err
	}
	logger.SetLevel(level)

	text, err := readInput(fs.Arg(0), stdin)
	if err != nil {
		return err
	}

	// 没有标记时无需创建模型客户端
	if !transition.Segment(text, cfg.Transition.Marker).HasBoundaries() {
		fmt.Fprintln(stdout, transition.NoMarkerWarning(cfg.Transition.Marker))
		return nil
	}

	var store storage.Storage
	if strings.HasPrefix(cfg.Transition.ExamplesFile, app.StoragePrefix) {
		if store, err = app.NewStorage(ctx, cfg.Storage); err != nil {
			return err
		}
	}

	client, err := app.NewLLMClient(cfg.LLM)
	if err != nil {
		return err
	}
	pipeline, err := app.NewPipeline(ctx, cfg, client, store, logger)
	if err != nil {
		return err
	}

	res, err := pipeline.Weaver.Weave(ctx, text)
	if err != nil {
		return err
	}

	printResult(stdout, stderr, res)
	return nil
}

// readInput 读取文件或标准输入
func readInput(path string, stdin io.Reader) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}

	parser, err := document.ParserFactory(path)
	if err != nil {
		return "", err
	}
	return parser.Parse(path)
}

// printResult 先输出编号的过渡语，再输出全文
func printResult(stdout, stderr io.Writer, res *transition.Result) {
	for _, f := range res.Failures {
		fmt.Fprintf(stderr, "Error generating transition #%d: %s\n", f.Index, f.Error)
	}

	fmt.Fprintln(stdout, "Suggestions:")
	for _, line := range res.Numbered() {
		fmt.Fprintln(stdout, line)
	}
	fmt.Fprintln(stdout)
	fmt.Fprintln(stdout, res.Text)
}
