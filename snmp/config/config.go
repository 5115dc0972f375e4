// Package config loads SNMP target definitions from TOML files.
//
// A file holds a [defaults] table and any number of [[target]] tables. Settings missing from a
// target are taken from the defaults:
//
//	[defaults]
//	community = "public"
//	timeout = "500ms"
//	retries = 2
//
//	[[target]]
//	name = "core-1"
//	address = "10.0.0.1:161"
//	oids = ["1.3.6.1.2.1.1.1.0", "1.3.6.1.2.1.1.3.0"]
//
//	[[target]]
//	name = "edge-1"
//	address = "10.0.0.2:161"
//	user = "operator"
//	auth_protocol = "SHA"
//	auth_password = "maplesyrup"
package config

import (
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/imdario/mergo"
	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/client"
	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

// Duration is a time.Duration written in TOML as a string such as "1.5s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Settings are the session parameters shared by the defaults table and each target.
type Settings struct {
	Version     string   `toml:"version"`
	Community   string   `toml:"community"`
	Network     string   `toml:"network"`
	Timeout     Duration `toml:"timeout"`
	Retries     *int     `toml:"retries"`
	AsyncProbe  *bool    `toml:"async_probe"`
	ContextName string   `toml:"context_name"`

	User         string `toml:"user"`
	AuthProtocol string `toml:"auth_protocol"`
	AuthPassword string `toml:"auth_password"`
	PrivProtocol string `toml:"priv_protocol"`
	PrivPassword string `toml:"priv_password"`
}

// Target is one agent to be queried.
type Target struct {
	Name    string   `toml:"name"`
	Address string   `toml:"address"`
	OIDs    []string `toml:"oids"`
	Settings
}

// File is the decoded content of a configuration file.
type File struct {
	Defaults Settings `toml:"defaults"`
	Targets  []Target `toml:"target"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	f := &File{}
	meta, err := toml.DecodeFile(path, f)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	if err = f.resolve(meta); err != nil {
		return nil, errors.Wrapf(err, "load %s", path)
	}
	return f, nil
}

// Decode parses configuration held in memory.
func Decode(data string) (*File, error) {
	f := &File{}
	meta, err := toml.Decode(data, f)
	if err != nil {
		return nil, err
	}
	if err = f.resolve(meta); err != nil {
		return nil, err
	}
	return f, nil
}

// Rejects unknown keys, fills targets from the defaults and checks each target.
func (f *File) resolve(meta toml.MetaData) error {
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return errors.Errorf("unknown key %q", undecoded[0].String())
	}
	names := map[string]bool{}
	for i := range f.Targets {
		t := &f.Targets[i]
		if t.Name == "" {
			t.Name = t.Address
		}
		if names[t.Name] {
			return errors.Errorf("duplicate target %q", t.Name)
		}
		names[t.Name] = true
		if err := mergo.Merge(&t.Settings, f.Defaults); err != nil {
			return errors.Wrapf(err, "target %q", t.Name)
		}
		if err := t.validate(); err != nil {
			return errors.Wrapf(err, "target %q", t.Name)
		}
	}
	return nil
}

// Lookup returns the target with the given name.
func (f *File) Lookup(name string) (*Target, bool) {
	for i := range f.Targets {
		if f.Targets[i].Name == name {
			return &f.Targets[i], true
		}
	}
	return nil, false
}

func (t *Target) validate() error {
	if t.Address == "" {
		return errors.New("missing address")
	}
	if _, err := t.ObjectIDs(); err != nil {
		return err
	}
	_, err := t.Options()
	return err
}

// ObjectIDs parses the identifiers the target is to be queried for.
func (t *Target) ObjectIDs() ([]common.OID, error) {
	oids := make([]common.OID, 0, len(t.OIDs))
	for _, s := range t.OIDs {
		oid, err := common.ParseOID(s)
		if err != nil {
			return nil, err
		}
		oids = append(oids, oid)
	}
	return oids, nil
}

// Options converts the target settings to session options.
func (t *Target) Options() ([]client.SessionOption, error) {
	var opts []client.SessionOption
	version, err := parseVersion(t.Version)
	if err != nil {
		return nil, err
	}
	if t.Version != "" {
		opts = append(opts, client.WithVersion(version))
	}
	if t.Community != "" {
		opts = append(opts, client.Community(t.Community))
	}
	if t.Network != "" {
		opts = append(opts, client.Network(t.Network))
	}
	if t.Timeout.Duration > 0 {
		opts = append(opts, client.Timeout(t.Timeout.Duration))
	}
	if t.Retries != nil {
		opts = append(opts, client.Retries(*t.Retries))
	}
	if t.AsyncProbe != nil {
		opts = append(opts, client.AsyncProbe(*t.AsyncProbe))
	}
	if t.ContextName != "" {
		opts = append(opts, client.ContextName(t.ContextName))
	}

	switch {
	case t.User != "":
		if t.Version != "" && version != common.V3 {
			return nil, errors.Errorf("user %q requires version 3", t.User)
		}
		user, err := t.user()
		if err != nil {
			return nil, err
		}
		opts = append(opts, client.User(user))
	case version == common.V3 && t.Version != "":
		return nil, errors.New("version 3 requires a user")
	}
	return opts, nil
}

func (t *Target) user() (*usm.User, error) {
	auth, err := usm.ParseAuthProtocol(t.AuthProtocol)
	if err != nil {
		return nil, err
	}
	priv, err := usm.ParsePrivProtocol(t.PrivProtocol)
	if err != nil {
		return nil, err
	}
	user := &usm.User{
		Name:         t.User,
		AuthProtocol: auth,
		AuthPassword: t.AuthPassword,
		PrivProtocol: priv,
		PrivPassword: t.PrivPassword,
	}
	return user, user.Validate()
}

func parseVersion(s string) (common.Version, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "v") {
	case "":
		return common.V2c, nil
	case "1":
		return common.V1, nil
	case "2", "2c":
		return common.V2c, nil
	case "3":
		return common.V3, nil
	}
	return common.V2c, errors.Errorf("unknown version %q", s)
}
