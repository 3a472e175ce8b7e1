package bootstrap

import (
	"embed"
	"fmt"
	"net/netip"
	"path"

	"github.com/infinytum/raymond/v2"

	"github.com/imamik/rayform/internal/config"
)

//go:embed templates/*.hbs
var templatesFS embed.FS

// Options parameterize both scripts.
type Options struct {
	PythonVersion string
	Package       string
	Venv          string
	Port          int
	// HeartbeatTimeoutMS is passed on worker join. Zero omits the flag.
	HeartbeatTimeoutMS int
}

// OptionsFromConfig reads Options from a defaulted configuration.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PythonVersion:      cfg.Ray.PythonVersion,
		Package:            cfg.Ray.Package,
		Venv:               cfg.Ray.Venv,
		Port:               cfg.Ray.Port,
		HeartbeatTimeoutMS: cfg.HeartbeatTimeout(),
	}
}

// Renderer produces bootstrap scripts. It is safe for concurrent use.
type Renderer struct {
	opts   Options
	head   string
	worker *raymond.Template
}

// NewRenderer parses the embedded templates and renders the coordinator
// script up front.
func NewRenderer(opts Options) (*Renderer, error) {
	if opts.Port < 1 || opts.Port > 65535 {
		return nil, fmt.Errorf("invalid cluster port %d", opts.Port)
	}
	if opts.HeartbeatTimeoutMS < 0 {
		return nil, fmt.Errorf("heartbeat timeout must not be negative")
	}

	install, err := readTemplate("install.sh.hbs")
	if err != nil {
		return nil, err
	}
	headTmpl, err := parseTemplate("head.sh.hbs", install)
	if err != nil {
		return nil, err
	}
	workerTmpl, err := parseTemplate("worker.sh.hbs", install)
	if err != nil {
		return nil, err
	}

	r := &Renderer{opts: opts, worker: workerTmpl}
	r.head, err = headTmpl.Exec(r.vars(""))
	if err != nil {
		return nil, fmt.Errorf("failed to render head script: %w", err)
	}
	return r, nil
}

// Head returns the coordinator script.
func (r *Renderer) Head() string {
	return r.head
}

// Worker returns the join script for a worker whose coordinator listens on
// address. address must be a literal IPv4 address.
func (r *Renderer) Worker(address string) (string, error) {
	if address == "" {
		return "", fmt.Errorf("coordinator address is empty")
	}
	ip, err := netip.ParseAddr(address)
	if err != nil || !ip.Is4() {
		return "", fmt.Errorf("coordinator address %q is not an IPv4 address", address)
	}

	script, err := r.worker.Exec(r.vars(ip.String()))
	if err != nil {
		return "", fmt.Errorf("failed to render worker script: %w", err)
	}
	return script, nil
}

// JoinCommand returns the final line of a worker script. It is also how an
// existing worker's user data is checked against the current coordinator.
func (r *Renderer) JoinCommand(address string) string {
	cmd := fmt.Sprintf("ray start --address='%s:%d'", address, r.opts.Port)
	if r.opts.HeartbeatTimeoutMS > 0 {
		cmd += fmt.Sprintf(" --heartbeat-timeout-milliseconds=%d", r.opts.HeartbeatTimeoutMS)
	}
	return cmd
}

func (r *Renderer) vars(address string) map[string]interface{} {
	vars := map[string]interface{}{
		"python":  r.opts.PythonVersion,
		"package": r.opts.Package,
		"venv":    r.opts.Venv,
		"port":    r.opts.Port,
	}
	if address != "" {
		vars["join"] = r.JoinCommand(address)
	}
	return vars
}

func readTemplate(name string) (string, error) {
	content, err := templatesFS.ReadFile(path.Join("templates", name))
	if err != nil {
		return "", fmt.Errorf("failed to read template %s: %w", name, err)
	}
	return string(content), nil
}

func parseTemplate(name, install string) (*raymond.Template, error) {
	src, err := readTemplate(name)
	if err != nil {
		return nil, err
	}
	tmpl, err := raymond.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	tmpl.RegisterPartial("install", install)
	return tmpl, nil
}
