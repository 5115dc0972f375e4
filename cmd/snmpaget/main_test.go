package main

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/snmpasync/snmp/client"
	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/config"
	"github.com/damianoneill/snmpasync/testutil"
)

func agentValues() map[string]*common.TypedValue {
	return map[string]*common.TypedValue{
		"1.3.6.1.2.1.1.1.0": {Type: common.OctetString, Value: []byte("test-system")},
		"1.3.6.1.2.1.1.5.0": {Type: common.OctetString, Value: []byte("agent.example.com")},
	}
}

func target(name, address string, timeout time.Duration, oids ...string) config.Target {
	retries := 0
	return config.Target{
		Name:    name,
		Address: address,
		OIDs:    oids,
		Settings: config.Settings{
			Timeout: config.Duration{Duration: timeout},
			Retries: &retries,
		},
	}
}

func TestQueryTargets(t *testing.T) {
	up := testutil.NewAgent(t, agentValues())
	defer up.Close()
	down := testutil.NewAgent(t, agentValues())
	defer down.Close()
	down.Silence(true)

	targets := []config.Target{
		target("up", up.Addr(), 200*time.Millisecond, "1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.5.0"),
		target("down", down.Addr(), 20*time.Millisecond, "1.3.6.1.2.1.1.1.0"),
	}
	outcomes := queryTargets(context.Background(), targets, 1, client.LoggingHooks(client.NoOpLoggingHooks))
	assert.Len(t, outcomes, 2)
	assert.NoError(t, outcomes[0].err)
	assert.Equal(t, []string{"1.3.6.1.2.1.1.1.0 = test-system", "1.3.6.1.2.1.1.5.0 = agent.example.com"}, outcomes[0].values)
	assert.ErrorIs(t, outcomes[1].err, common.ErrTimeout)

	var out bytes.Buffer
	err := report(&out, outcomes)
	assert.EqualError(t, err, "1 of 2 targets failed")
	assert.Contains(t, out.String(), "up: 1.3.6.1.2.1.1.5.0 = agent.example.com\n")
	assert.Contains(t, out.String(), "down: error: ")
}

func TestQueryTargetPacketError(t *testing.T) {
	a := testutil.NewAgent(t, agentValues())
	defer a.Close()

	tgt := target("v1", a.Addr(), 200*time.Millisecond, "1.3.6.1.2.1.1.1.0", "1.3.6.1.4.1.99.0")
	tgt.Version = "1"
	_, err := queryTarget(context.Background(), &tgt, []client.SessionOption{client.LoggingHooks(client.NoOpLoggingHooks)})
	assert.Equal(t, &common.PacketError{Status: common.NoSuchName, Index: 2}, err)
}

func TestRunGetFromConfig(t *testing.T) {
	a := testutil.NewAgent(t, agentValues())
	defer a.Close()

	path := filepath.Join(t.TempDir(), "targets.toml")
	content := fmt.Sprintf("[defaults]\ntimeout = \"200ms\"\n\n[[target]]\nname = \"lab\"\naddress = %q\noids = [\"1.3.6.1.2.1.1.5.0\"]\n", a.Addr())
	assert.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	assert.NoError(t, app.Run([]string{"snmpaget", "get", "--config", path, "--target", "lab"}))
	assert.Equal(t, "lab: 1.3.6.1.2.1.1.5.0 = agent.example.com\n", out.String())

	err := app.Run([]string{"snmpaget", "get", "--config", path, "--target", "other"})
	assert.ErrorContains(t, err, `no target named "other"`)
}

func TestRunGetFromArguments(t *testing.T) {
	a := testutil.NewAgent(t, agentValues())
	defer a.Close()

	app := newApp()
	var out bytes.Buffer
	app.Writer = &out
	assert.NoError(t, app.Run([]string{"snmpaget", "get", "--timeout", "200ms", a.Addr(), "1.3.6.1.2.1.1.1.0"}))
	assert.Equal(t, a.Addr()+": 1.3.6.1.2.1.1.1.0 = test-system\n", out.String())

	assert.ErrorContains(t, app.Run([]string{"snmpaget", "get", a.Addr()}), "no OIDs given")
	assert.ErrorContains(t, app.Run([]string{"snmpaget", "get"}), "--config or ADDRESS is required")
}

func TestPrinter(t *testing.T) {
	msg := common.NewMessage(common.Trap2)
	defer msg.Release()
	assert.NoError(t, msg.AddValue(common.MustParseOID("1.3.6.1.2.1.1.5.0"), &common.TypedValue{Type: common.OctetString, Value: []byte("agent")}))

	var out bytes.Buffer
	p := &printer{w: &out}
	p.NewMessage(msg.View(), false, &net.UDPAddr{IP: net.IPv4(192, 0, 2, 1), Port: 40000})
	assert.Equal(t, "192.0.2.1:40000 trap2: 1.3.6.1.2.1.1.5.0 = agent\n", out.String())
}
