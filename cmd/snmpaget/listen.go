package main

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/trap"
)

func listenCommand() *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "print trap and inform notifications until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  addressArg,
				Usage: "address on which to listen, empty for all interfaces",
			},
			&cli.IntFlag{
				Name:  portArg,
				Usage: "port on which to listen",
				Value: 162,
			},
			&cli.StringFlag{
				Name:  communityArg,
				Usage: "only accept notifications carrying this community",
			},
		},
		Action: func(c *cli.Context) error {
			hooks := trap.DefaultServerHooks
			if c.Bool(diagnosticArg) {
				hooks = trap.DiagnosticServerHooks
			}
			s, err := trap.NewServerFactory().NewServer(c.Context, &printer{w: c.App.Writer},
				trap.Address(c.String(addressArg)),
				trap.Port(c.Int(portArg)),
				trap.Community(c.String(communityArg)),
				trap.Hooks(hooks),
			)
			if err != nil {
				return err
			}
			<-c.Context.Done()
			return s.Close()
		},
	}
}

// printer writes one line per notification.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func (p *printer) NewMessage(msg common.MessageView, isInform bool, source net.Addr) {
	var values []string
	for v := range msg.Variables() {
		values = append(values, v.String())
	}
	kind := msg.Kind().String()
	if info := msg.TrapInfo(); info != nil {
		kind = fmt.Sprintf("%s enterprise=%s generic=%d specific=%d", kind, info.Enterprise, info.GenericTrap, info.SpecificTrap)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "%s %s: %s\n", source, kind, strings.Join(values, ", "))
}
