package outputs

import (
	"fmt"
	"time"

	"github.com/imamik/rayform/internal/provisioning"
)

const phase = "outputs"

// Resource kinds reported to the observer.
const (
	KindFile   = "outputs_file"
	KindObject = "outputs_object"
)

// Provisioner publishes cluster outputs.
type Provisioner struct {
	publisher Publisher
	now       func() time.Time
}

// Option configures a Provisioner.
type Option func(*Provisioner)

// WithPublisher uploads the document when an S3 bucket is configured.
func WithPublisher(pub Publisher) Option {
	return func(p *Provisioner) { p.publisher = pub }
}

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Provisioner) { p.now = now }
}

// NewProvisioner creates a new outputs provisioner.
func NewProvisioner(opts ...Option) *Provisioner {
	p := &Provisioner{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements the provisioning.Phase interface.
func (p *Provisioner) Name() string {
	return phase
}

// Provision implements the provisioning.Phase interface.
func (p *Provisioner) Provision(ctx *provisioning.Context) error {
	doc, err := Build(ctx.Config, ctx.State, p.now())
	if err != nil {
		return fmt.Errorf("failed to collect outputs: %w", err)
	}

	file := ctx.Config.Outputs.File
	if err := WriteFile(doc, file); err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindFile, file, err)
		return err
	}
	provisioning.LogResource(ctx.Observer, provisioning.EventResourceUpdated, phase, KindFile, file, "")

	bucket := ctx.Config.Outputs.S3Bucket
	if bucket == "" {
		return nil
	}
	if p.publisher == nil {
		return fmt.Errorf("outputs.s3_bucket is set but no publisher is configured")
	}
	key := ObjectKey(ctx.Config)
	if err := Publish(ctx, p.publisher, ctx.Config, doc); err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindObject, key, err)
		return err
	}
	provisioning.LogResource(ctx.Observer, provisioning.EventResourceUpdated, phase, KindObject, key, "s3://"+bucket+"/"+key)
	return nil
}
