package outputs

import (
	"encoding/json"
	"fmt"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/imamik/rayform/internal/config"
	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/util/naming"
)

// Output formats accepted by Encode.
const (
	FormatYAML = "yaml"
	FormatJSON = "json"
)

// Node is the published view of one instance.
type Node struct {
	Name       string `json:"name"`
	InstanceID string `json:"instance_id"`
	PrivateIP  string `json:"private_ip"`
	PublicIP   string `json:"public_ip,omitempty"`
}

// Document is the published outputs of one deployment.
type Document struct {
	Deployment  string            `json:"deployment"`
	Region      string            `json:"region,omitempty"`
	GeneratedAt time.Time         `json:"generated_at"`
	Outputs     map[string]string `json:"outputs"`
	Head        *Node             `json:"head,omitempty"`
	Workers     []Node            `json:"workers,omitempty"`
}

// Entry is a single named output.
type Entry struct {
	Key   string
	Value string
}

// Build collects outputs from provisioning state. The coordinator and all
// configured workers must be present.
func Build(cfg *config.Config, state *provisioning.State, now time.Time) (*Document, error) {
	if state.Head == nil {
		return nil, fmt.Errorf("coordinator has not been provisioned")
	}
	workers, err := state.Workers(cfg.WorkerCount())
	if err != nil {
		return nil, err
	}

	doc := &Document{
		Deployment:  cfg.Name,
		Region:      cfg.Region,
		GeneratedAt: now.UTC(),
		Outputs:     make(map[string]string, 2+2*len(workers)),
		Head:        publishedNode(state.Head),
	}
	doc.Outputs[naming.HeadPrivateIPOutput] = state.Head.PrivateIP
	if state.Head.PublicIP != "" {
		doc.Outputs[naming.HeadPublicIPOutput] = state.Head.PublicIP
	}
	for i, w := range workers {
		doc.Workers = append(doc.Workers, *publishedNode(w))
		doc.Outputs[naming.WorkerPrivateIPOutput(i)] = w.PrivateIP
		if w.PublicIP != "" {
			doc.Outputs[naming.WorkerPublicIPOutput(i)] = w.PublicIP
		}
	}
	return doc, nil
}

func publishedNode(n *provisioning.Node) *Node {
	return &Node{Name: n.Name, InstanceID: n.InstanceID, PrivateIP: n.PrivateIP, PublicIP: n.PublicIP}
}

// Entries returns the outputs in publication order: coordinator first, then
// workers from index 0, private before public.
func (d *Document) Entries() []Entry {
	var out []Entry
	add := func(key string) {
		if v, ok := d.Outputs[key]; ok {
			out = append(out, Entry{Key: key, Value: v})
		}
	}
	add(naming.HeadPrivateIPOutput)
	add(naming.HeadPublicIPOutput)
	for i := 0; ; i++ {
		if _, ok := d.Outputs[naming.WorkerPrivateIPOutput(i)]; !ok {
			break
		}
		add(naming.WorkerPrivateIPOutput(i))
		add(naming.WorkerPublicIPOutput(i))
	}
	return out
}

// Encode serializes the document as YAML or JSON.
func Encode(doc *Document, format string) ([]byte, error) {
	switch format {
	case FormatYAML, "":
		return yaml.Marshal(doc)
	case FormatJSON:
		data, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (use yaml or json)", format)
	}
}

// Decode parses a document written by Encode. JSON is valid YAML, so both
// formats are accepted.
func Decode(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse outputs: %w", err)
	}
	if doc.Deployment == "" {
		return nil, fmt.Errorf("outputs document has no deployment")
	}
	return &doc, nil
}
