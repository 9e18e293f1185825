// Package entrypoint holds the command-line and Lambda entry points shared
// by the cmd binaries.
package entrypoint

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"

	"blsdata/internal/config"
	"blsdata/internal/job"
	"blsdata/internal/logger"
	"blsdata/internal/notify"
	"blsdata/internal/pipeline"
	"blsdata/internal/server"
	"blsdata/internal/storage"
)

// EnvLambdaRuntime is set by the Lambda runtime.
const EnvLambdaRuntime = "AWS_LAMBDA_RUNTIME_API"

// Exit codes.
const (
	ExitOK     = 0
	ExitFailed = 1
	ExitUsage  = 2
)

type options struct {
	configPath  string
	payloadPath string
}

func parseFlags(name string, args []string, stderr io.Writer, withPayload bool) (*options, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)

	opts := &options{}
	fs.StringVar(&opts.configPath, "config", "", "Path to YAML configuration file")

	if withPayload {
		fs.StringVar(&opts.payloadPath, "payload", "", "Path to a notification event (JSON); empty runs manually")
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	return opts, nil
}

func setup(ctx context.Context, configPath string) (*pipeline.Pipeline, *logger.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewWithFormat(cfg.Logging.Level, cfg.Logging.Format)
	log.Debug(fmt.Sprintf("Configuration loaded: %s", cfg))

	p, err := pipeline.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}

	return p, log, nil
}

// Job runs one job. Under the Lambda runtime it serves invocations and
// never returns; otherwise it runs once and prints the JSON response.
func Job(name string, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(name, args, stderr, name == pipeline.JobReport)
	if err != nil {
		return ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, log, err := setup(ctx, opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return ExitUsage
	}
	defer p.Close()

	runner := p.Runner()

	if os.Getenv(EnvLambdaRuntime) != "" {
		log.Info(fmt.Sprintf("Starting %s handler under the Lambda runtime", name))
		lambda.StartWithOptions(Handler(p, runner, name), lambda.WithEnableSIGTERM(stop))

		return ExitOK
	}

	var payload []byte

	if opts.payloadPath != "" {
		payload, err = os.ReadFile(opts.payloadPath)
		if err != nil {
			fmt.Fprintf(stderr, "failed to read payload: %v\n", err)

			return ExitUsage
		}
	}

	resp, err := Handler(p, runner, name)(ctx, payload)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return ExitUsage
	}

	return printResponses(stdout, resp)
}

// Handler adapts a job to the Lambda handler signature. The payload is
// decoded as a notification; errors only come from undecodable payloads or
// unknown jobs.
func Handler(p *pipeline.Pipeline, runner *job.Runner, name string) func(context.Context, json.RawMessage) (job.Response, error) {
	return func(ctx context.Context, payload json.RawMessage) (job.Response, error) {
		n, err := notify.Parse(payload)
		if err != nil {
			return job.Response{}, err
		}

		fn, err := p.Func(name, n)
		if err != nil {
			return job.Response{}, err
		}

		return runner.Invoke(ctx, name, fn), nil
	}
}

// Worker runs sync, fetch and report in order and prints every response.
func Worker(args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags("worker", args, stderr, false)
	if err != nil {
		return ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, log, err := setup(ctx, opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return ExitUsage
	}
	defer p.Close()

	log.Info("Starting pipeline: sync, fetch, report")

	return printResponses(stdout, p.RunAll(ctx, p.Runner())...)
}

// Serve runs the HTTP trigger server until interrupted. With the
// filesystem backend and server.watch set, writes to the report trigger
// prefix run the report job.
func Serve(args []string, stderr io.Writer) int {
	opts, err := parseFlags("server", args, stderr, false)
	if err != nil {
		return ExitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, log, err := setup(ctx, opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)

		return ExitUsage
	}
	defer p.Close()

	runner := p.Runner()
	srv := server.New(p, runner, log)

	if err := startWatcher(ctx, p, runner, log); err != nil {
		log.Error(fmt.Sprintf("Failed to start watcher: %v", err))

		return ExitFailed
	}

	if err := srv.Run(ctx, p.Config().ListenAddr()); err != nil {
		log.Error(err.Error())

		return ExitFailed
	}

	return ExitOK
}

func startWatcher(ctx context.Context, p *pipeline.Pipeline, runner *job.Runner, log *logger.Logger) error {
	cfg := p.Config()
	if !cfg.Server.Watch {
		return nil
	}

	store, ok := p.Objects().(*storage.FSStore)
	if !ok {
		log.Warn(fmt.Sprintf("server.watch needs the %s backend; ignoring", config.BackendFilesystem))

		return nil
	}

	w, err := notify.NewWatcher(store, cfg.Report.TriggerPrefix, log)
	if err != nil {
		return err
	}

	go func() {
		err := w.Run(ctx, func(ctx context.Context, n *notify.Notification) {
			runner.Invoke(ctx, pipeline.JobReport, p.Report(n))
		})
		if err != nil {
			log.Error(fmt.Sprintf("Watcher stopped: %v", err))
		}
	}()

	log.Info(fmt.Sprintf("Watching %s for writes to %s", store.Root(), cfg.Report.TriggerPrefix))

	return nil
}

func printResponses(w io.Writer, responses ...job.Response) int {
	code := ExitOK

	for _, resp := range responses {
		out, err := resp.Encode()
		if err != nil {
			return ExitFailed
		}

		fmt.Fprintf(w, "%s\n", out)

		if !resp.OK() {
			code = ExitFailed
		}
	}

	return code
}
