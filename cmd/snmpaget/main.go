// Command snmpaget issues concurrent asynchronous SNMP get requests against the targets of a
// configuration file, or against a single target named on the command line, and can listen for
// trap and inform notifications.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/damianoneill/snmpasync/snmp/client"
	"github.com/damianoneill/snmpasync/snmp/config"
)

const (
	configArg      = "config"
	targetArg      = "target"
	logLevelArg    = "log-level"
	metricsArg     = "metrics-address"
	diagnosticArg  = "diagnostic"
	concurrencyArg = "concurrency"
	versionArg     = "snmp-version"
	communityArg   = "community"
	timeoutArg     = "timeout"
	retriesArg     = "retries"
	addressArg     = "address"
	portArg        = "port"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "snmpaget"
	app.Usage = "Query SNMP agents asynchronously"
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  logLevelArg,
			Usage: "log level: trace, debug, info, warn, error",
			Value: "warn",
		},
		&cli.BoolFlag{
			Name:  diagnosticArg,
			Usage: "log every protocol event",
		},
	}
	app.Before = func(c *cli.Context) error {
		level, err := logrus.ParseLevel(c.String(logLevelArg))
		if err != nil {
			return err
		}
		logrus.SetLevel(level)
		return nil
	}
	app.Commands = []*cli.Command{getCommand(), listenCommand()}
	app.OnUsageError = func(c *cli.Context, e error, b bool) error { return e }
	return app
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "get values from the configured targets, or from ADDRESS when given",
		ArgsUsage: "[ADDRESS OID...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      configArg,
				Aliases:   []string{"c"},
				Usage:     "TOML file describing the targets",
				TakesFile: true,
			},
			&cli.StringSliceFlag{
				Name:    targetArg,
				Aliases: []string{"t"},
				Usage:   "restrict the query to the named targets",
			},
			&cli.StringFlag{
				Name:  versionArg,
				Usage: "protocol version for an ADDRESS query: 1, 2c",
				Value: "2c",
			},
			&cli.StringFlag{
				Name:  communityArg,
				Usage: "community for an ADDRESS query",
				Value: "public",
			},
			&cli.DurationFlag{
				Name:  timeoutArg,
				Usage: "per attempt timeout for an ADDRESS query",
				Value: time.Second,
			},
			&cli.IntFlag{
				Name:  retriesArg,
				Usage: "retransmissions for an ADDRESS query",
				Value: 2,
			},
			&cli.IntFlag{
				Name:  concurrencyArg,
				Usage: "maximum number of targets queried at once",
				Value: 16,
			},
			&cli.StringFlag{
				Name:  metricsArg,
				Usage: "serve prometheus metrics on this address while querying",
			},
		},
		Action: func(c *cli.Context) error {
			targets, err := selectTargets(c)
			if err != nil {
				return err
			}

			trace := client.DefaultLoggingHooks
			if c.Bool(diagnosticArg) {
				trace = client.DiagnosticLoggingHooks
			}
			if address := c.String(metricsArg); address != "" {
				reg := prometheus.NewRegistry()
				metrics, err := client.NewMetricHooks(reg)
				if err != nil {
					return err
				}
				trace = client.Combine(trace, metrics)
				srv := serveMetrics(address, reg)
				defer srv.Close()
			}

			outcomes := queryTargets(c.Context, targets, c.Int(concurrencyArg), client.LoggingHooks(trace))
			return report(c.App.Writer, outcomes)
		},
	}
}

// Resolves the targets from the configuration file or the positional arguments.
func selectTargets(c *cli.Context) ([]config.Target, error) {
	if c.NArg() > 0 {
		retries := c.Int(retriesArg)
		t := config.Target{
			Name:    c.Args().First(),
			Address: c.Args().First(),
			OIDs:    c.Args().Tail(),
			Settings: config.Settings{
				Version:   c.String(versionArg),
				Community: c.String(communityArg),
				Timeout:   config.Duration{Duration: c.Duration(timeoutArg)},
				Retries:   &retries,
			},
		}
		if len(t.OIDs) == 0 {
			return nil, errors.Errorf("no OIDs given for %s", t.Address)
		}
		return []config.Target{t}, nil
	}

	path := c.String(configArg)
	if path == "" {
		return nil, errors.Errorf("either --%s or ADDRESS is required", configArg)
	}
	f, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	names := c.StringSlice(targetArg)
	if len(names) == 0 {
		return f.Targets, nil
	}
	targets := make([]config.Target, 0, len(names))
	for _, name := range names {
		t, ok := f.Lookup(name)
		if !ok {
			return nil, errors.Errorf("no target named %q in %s", name, path)
		}
		targets = append(targets, *t)
	}
	return targets, nil
}

func serveMetrics(address string, reg *prometheus.Registry) *http.Server {
	mux := &http.ServeMux{}
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("metrics endpoint failed")
		}
	}()
	return srv
}
