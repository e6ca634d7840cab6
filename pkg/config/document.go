// Package config parses the declarative configuration document and
// validates it: reference integrity, duplicate ids, bridge-graph
// acyclicity, and interface subset containment (spec §4.C).
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/cuemby/hive/pkg/types"
)

// document is the raw TOML shape of the configuration file, named per
// spec §6: agents[], dnas[] (modules), instances[] with a nested
// storage table, bridges[], interfaces[] with a nested driver table,
// optional network and logger tables.
type document struct {
	Agents     []agentDoc     `toml:"agents"`
	DNAs       []dnaDoc       `toml:"dnas"`
	Instances  []instanceDoc  `toml:"instances"`
	Bridges    []bridgeDoc    `toml:"bridges"`
	Interfaces []interfaceDoc `toml:"interfaces"`
	Network    *networkDoc    `toml:"network"`
	Logger     loggerDoc      `toml:"logger"`
	Metrics    *metricsDoc    `toml:"metrics"`
}

type metricsDoc struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}

type agentDoc struct {
	ID           string `toml:"id"`
	DisplayName  string `toml:"display_name"`
	PublicKeyB64 string `toml:"public_key_b64"`
	KeyFileRef   string `toml:"key_file_ref"`
}

type dnaDoc struct {
	ID          string `toml:"id"`
	FileRef     string `toml:"file_ref"`
	ContentHash string `toml:"content_hash"`
}

type storageDoc struct {
	Type string `toml:"type"`
	Path string `toml:"path"`
}

type instanceDoc struct {
	ID       string     `toml:"id"`
	ModuleID string     `toml:"module_id"`
	AgentID  string     `toml:"agent_id"`
	Storage  storageDoc `toml:"storage"`
}

type bridgeDoc struct {
	CallerID string `toml:"caller_id"`
	CalleeID string `toml:"callee_id"`
	Handle   string `toml:"handle"`
}

type driverDoc struct {
	Type string `toml:"type"`
	Port int    `toml:"port"`
}

type interfaceDoc struct {
	ID        string    `toml:"id"`
	Driver    driverDoc `toml:"driver"`
	Instances []string  `toml:"instances"`
}

type networkDoc struct {
	HelperBinaryPath    string   `toml:"helper_binary_path"`
	WorkDir             string   `toml:"work_dir"`
	Mode                string   `toml:"mode"`
	BootstrapNodes      []string `toml:"bootstrap_nodes"`
	ExplicitIPCEndpoint string   `toml:"explicit_ipc_endpoint"`
}

type loggerDoc struct {
	Channel bool   `toml:"channel"`
	Level   string `toml:"level"`
	JSON    bool   `toml:"json"`
}

// ParseFile reads and parses a TOML configuration document from path.
func ParseFile(path string) (*types.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &types.ConfigError{Reason: fmt.Sprintf("could not read config file %q: %v", path, err)}
	}
	return Parse(data)
}

// Parse parses a TOML configuration document from raw bytes.
func Parse(data []byte) (*types.Configuration, error) {
	var doc document
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, &types.ConfigError{Reason: fmt.Sprintf("malformed configuration: %v", err)}
	}
	return doc.toConfiguration(), nil
}

func (d document) toConfiguration() *types.Configuration {
	cfg := &types.Configuration{
		Logger: types.LoggerDescriptor{
			UseChannelLogger: d.Logger.Channel,
			Level:            d.Logger.Level,
			JSON:             d.Logger.JSON,
		},
	}

	for _, a := range d.Agents {
		cfg.Agents = append(cfg.Agents, types.Agent{
			ID:           a.ID,
			DisplayName:  a.DisplayName,
			PublicKeyB64: a.PublicKeyB64,
			KeyFileRef:   a.KeyFileRef,
		})
	}

	for _, m := range d.DNAs {
		cfg.Modules = append(cfg.Modules, types.ModuleDescriptor{
			ID:          m.ID,
			FileRef:     m.FileRef,
			ContentHash: m.ContentHash,
		})
	}

	for _, i := range d.Instances {
		kind := types.StorageMemory
		if i.Storage.Type == string(types.StorageFile) {
			kind = types.StorageFile
		}
		cfg.Instances = append(cfg.Instances, types.InstanceDescriptor{
			ID:       i.ID,
			ModuleID: i.ModuleID,
			AgentID:  i.AgentID,
			Storage: types.StorageDescriptor{
				Kind: kind,
				Path: i.Storage.Path,
			},
		})
	}

	for _, b := range d.Bridges {
		cfg.Bridges = append(cfg.Bridges, types.Bridge{
			CallerID: b.CallerID,
			CalleeID: b.CalleeID,
			Handle:   b.Handle,
		})
	}

	for _, iface := range d.Interfaces {
		driver := types.DriverHTTP
		if iface.Driver.Type == string(types.DriverWebsocket) {
			driver = types.DriverWebsocket
		}
		cfg.Interfaces = append(cfg.Interfaces, types.InterfaceDescriptor{
			ID:            iface.ID,
			Driver:        driver,
			Port:          iface.Driver.Port,
			InstanceIDSet: iface.Instances,
		})
	}

	if d.Network != nil {
		cfg.Network = &types.NetworkDescriptor{
			HelperBinaryPath:    d.Network.HelperBinaryPath,
			WorkDir:             d.Network.WorkDir,
			Mode:                d.Network.Mode,
			BootstrapNodes:      d.Network.BootstrapNodes,
			ExplicitIPCEndpoint: d.Network.ExplicitIPCEndpoint,
		}
	}

	if d.Metrics != nil {
		cfg.Metrics = &types.MetricsDescriptor{
			Enabled:    d.Metrics.Enabled,
			ListenAddr: d.Metrics.ListenAddr,
		}
	}

	return cfg
}
