package main

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jailkit/jailkit/jail"
)

// definition is the YAML shape accepted by create -f.
type definition struct {
	Name       string         `yaml:"name"`
	Path       string         `yaml:"path"`
	Hostname   string         `yaml:"hostname"`
	IPs        []string       `yaml:"ips"`
	Parameters map[string]any `yaml:"parameters"`
	Limits     []struct {
		Resource string `yaml:"resource"`
		Action   string `yaml:"action"`
		Amount   string `yaml:"amount"`
		Per      string `yaml:"per"`
	} `yaml:"limits"`
}

func createCommand() *cobra.Command {
	var (
		file     string
		name     string
		path     string
		hostname string
		ips      []string
	)
	cmd := &cobra.Command{
		Use:   "create [key=value ...]",
		Short: "Create and start a new jail",
		Long: `Create and start a new jail.

The jail is described either by a YAML definition file (-f) or by flags,
optionally extended with key=value jail parameters.  The command prints
the new jail's jid on success.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			disableUsage(cmd)
			cfg := jail.Config{
				Name:     name,
				Root:     path,
				Hostname: hostname,
				Params:   map[string]jail.Value{},
			}
			if file != "" {
				if err := loadDefinition(file, &cfg); err != nil {
					return err
				}
			}
			for _, ip := range ips {
				addr, err := netip.ParseAddr(ip)
				if err != nil {
					return fmt.Errorf("invalid ip %q: %w", ip, err)
				}
				cfg.IPs = append(cfg.IPs, addr)
			}
			for _, arg := range args {
				key, raw, ok := strings.Cut(arg, "=")
				if !ok {
					return fmt.Errorf("parameter %q is not key=value", arg)
				}
				cfg.Params[key] = parseValue(raw)
			}
			j, err := jail.Create(cfg)
			if err != nil {
				return err
			}
			// The jail outlives this process.
			j.Release()
			fmt.Println(j.JID())
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML jail definition")
	cmd.Flags().StringVar(&name, "name", "", "jail name")
	cmd.Flags().StringVar(&path, "path", "", "jail root path")
	cmd.Flags().StringVar(&hostname, "hostname", "", "jail hostname")
	cmd.Flags().StringSliceVar(&ips, "ip", nil, "IP address to assign (repeatable)")
	return cmd
}

func loadDefinition(file string, cfg *jail.Config) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	def := definition{}
	if err := yaml.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("parse %s: %w", file, err)
	}
	if def.Name != "" {
		cfg.Name = def.Name
	}
	if def.Path != "" {
		cfg.Root = def.Path
	}
	if def.Hostname != "" {
		cfg.Hostname = def.Hostname
	}
	for _, ip := range def.IPs {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return fmt.Errorf("invalid ip %q: %w", ip, err)
		}
		cfg.IPs = append(cfg.IPs, addr)
	}
	for key, raw := range def.Parameters {
		v, err := yamlValue(raw)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", key, err)
		}
		cfg.Params[key] = v
	}
	for _, l := range def.Limits {
		cfg.Limits = append(cfg.Limits, jail.Limit{
			Resource: l.Resource,
			Action:   l.Action,
			Amount:   l.Amount,
			Per:      l.Per,
		})
	}
	return nil
}

func yamlValue(raw any) (jail.Value, error) {
	switch v := raw.(type) {
	case bool:
		return jail.BoolValue(v), nil
	case int:
		return jail.IntValue(int64(v)), nil
	case int64:
		return jail.IntValue(v), nil
	case uint64:
		return jail.UintValue(v), nil
	case string:
		return jail.StringValue(v), nil
	}
	return jail.Value{}, fmt.Errorf("unsupported value type %T", raw)
}

// parseValue guesses the type of a command-line parameter value.  The
// kernel's declared type has the final word at the marshal boundary.
func parseValue(raw string) jail.Value {
	switch raw {
	case "true":
		return jail.BoolValue(true)
	case "false":
		return jail.BoolValue(false)
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return jail.IntValue(n)
	}
	return jail.StringValue(raw)
}
