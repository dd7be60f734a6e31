package jail

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"text/template"
)

const configTemplate = `{{ .Name }} {
  path = "{{ .Root }}";
{{- if .Hostname }}
  host.hostname = "{{ .Hostname }}";
{{- end }}
{{- if .IP4 }}
  ip4.addr = {{ .IP4 }};
{{- end }}
{{- if .IP6 }}
  ip6.addr = {{ .IP6 }};
{{- end }}
{{- range .Params }}
  {{ . }};
{{- end }}
  persist;
}
`

// RenderConf renders the configuration as a jail.conf(5) block, suitable
// for handing to the jail(8) command.  The jail must be named; jail.conf
// syntax has no spelling for an anonymous jail.
func (cfg Config) RenderConf() (string, error) {
	if cfg.Name == "" {
		return "", fmt.Errorf("jail: conf: cannot render unnamed jail")
	}
	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return "", err
	}

	var ip4, ip6 bytes.Buffer
	for _, ip := range cfg.IPs {
		buf := &ip6
		if ip.Is4() {
			buf = &ip4
		}
		if buf.Len() > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(ip.String())
	}

	params := make([]string, 0, len(cfg.Params))
	for name, v := range cfg.Params {
		switch v.Kind() {
		case KindBool:
			if b, _ := v.AsBool(); b {
				params = append(params, name)
			} else {
				params = append(params, noName(name))
			}
		case KindString:
			params = append(params, fmt.Sprintf("%s = %q", name, v.String()))
		default:
			params = append(params, fmt.Sprintf("%s = %s", name, v.String()))
		}
	}
	sort.Strings(params)

	buf := bytes.Buffer{}
	err = tmpl.Execute(&buf, struct {
		Name     string
		Root     string
		Hostname string
		IP4      string
		IP6      string
		Params   []string
	}{
		Name:     cfg.Name,
		Root:     cfg.Root,
		Hostname: cfg.Hostname,
		IP4:      ip4.String(),
		IP6:      ip6.String(),
		Params:   params,
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteConf renders the configuration and writes it to path, refusing to
// overwrite an existing file.
func (cfg Config) WriteConf(path string) (err error) {
	config, err := cfg.RenderConf()
	if err != nil {
		return err
	}
	confFile, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("jail: conf should not already exist: %w", err)
	}
	defer func() {
		confFile.Close()
		if err != nil {
			os.Remove(confFile.Name())
		}
	}()
	_, err = confFile.Write([]byte(config))
	return err
}
