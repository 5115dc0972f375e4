package main

import (
	"context"
	"fmt"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/damianoneill/snmpasync/snmp/client"
	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/config"
	"github.com/damianoneill/snmpasync/snmp/engine"
)

type outcome struct {
	target string
	values []string
	err    error
}

// Queries every target on its own session, at most limit at a time. A failing target does not
// stop the others.
func queryTargets(ctx context.Context, targets []config.Target, limit int, extra ...client.SessionOption) []outcome {
	outcomes := make([]outcome, len(targets))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i := range targets {
		t := &targets[i]
		g.Go(func() error {
			values, err := queryTarget(ctx, t, extra)
			outcomes[i] = outcome{target: t.Name, values: values, err: err}
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

func queryTarget(ctx context.Context, t *config.Target, extra []client.SessionOption) ([]string, error) {
	opts, err := t.Options()
	if err != nil {
		return nil, err
	}
	oids, err := t.ObjectIDs()
	if err != nil {
		return nil, err
	}
	s, err := client.NewFactory().NewSession(ctx, t.Address, append(opts, extra...)...)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	msg := common.NewGet()
	for _, oid := range oids {
		msg.AddOID(oid)
	}
	res := <-s.QueryAsync(ctx, msg)
	if res.Err != nil {
		return nil, res.Err
	}
	defer res.Response.Release()

	if res.Response.Kind == common.Report {
		return nil, errors.Errorf("agent reported %s", engine.ReportReason(res.Response.View()))
	}
	if res.Response.ErrorStatus != common.NoError {
		return nil, &common.PacketError{Status: res.Response.ErrorStatus, Index: res.Response.ErrorIndex}
	}
	values := make([]string, 0, len(oids))
	for v := range res.Response.Variables() {
		values = append(values, v.String())
	}
	return values, nil
}

// Writes the outcomes in target order, returning an error when any target failed.
func report(w io.Writer, outcomes []outcome) error {
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			fmt.Fprintf(w, "%s: error: %v\n", o.target, o.err)
			continue
		}
		for _, v := range o.values {
			fmt.Fprintf(w, "%s: %s\n", o.target, v)
		}
	}
	if failed > 0 {
		return errors.Errorf("%d of %d targets failed", failed, len(outcomes))
	}
	return nil
}
