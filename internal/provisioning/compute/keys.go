package compute

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/imamik/rayform/internal/provisioning"
	"github.com/imamik/rayform/internal/util/keygen"
)

// ensureKeyPair records the key pair instances launch with. A configured
// key name must already exist; otherwise a key is generated, its private
// half written locally and its public half imported.
func (p *Provisioner) ensureKeyPair(ctx *provisioning.Context) error {
	name := ctx.Topology.KeyPair
	existing, err := ctx.Infra.GetKeyPair(ctx, name)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindKeyPair, name, err)
		return fmt.Errorf("failed to look up key pair %s: %w", name, err)
	}

	if !ctx.Config.GeneratesKeyPair() {
		if existing == nil {
			return fmt.Errorf("key pair %q does not exist in region", name)
		}
		ctx.State.KeyName = name
		provisioning.LogResource(ctx.Observer, provisioning.EventResourceExists, phase, KindKeyPair, name, existing.ID)
		return nil
	}

	keyPath := ctx.Config.Nodes.PrivateKeyPath
	if existing != nil {
		if _, err := os.Stat(keyPath); errors.Is(err, fs.ErrNotExist) {
			ctx.Observer.Printf("[%s] private key for %s not found at %s; SSH access needs the original key", phase, name, keyPath)
		}
		ctx.State.KeyName = name
		provisioning.LogResource(ctx.Observer, provisioning.EventResourceExists, phase, KindKeyPair, name, existing.ID)
		return nil
	}

	kp, err := keygen.Generate(ctx.Config.Nodes.KeyAlgorithm)
	if err != nil {
		return fmt.Errorf("failed to generate key pair: %w", err)
	}
	if err := kp.WritePrivateKey(keyPath); err != nil {
		return err
	}

	imported, err := ctx.Infra.EnsureKeyPair(ctx, name, strings.TrimSpace(string(kp.PublicKey)), ctx.Topology.Tags)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindKeyPair, name, err)
		return fmt.Errorf("failed to import key pair %s: %w", name, err)
	}
	ctx.State.KeyName = name
	provisioning.LogResource(ctx.Observer, provisioning.EventResourceCreated, phase, KindKeyPair, name, imported.ID)
	ctx.Observer.Printf("[%s] private key written to %s (%s)", phase, keyPath, kp.Fingerprint)
	return nil
}

// resolveImage records the AMI. An explicit image wins over the filter.
func (p *Provisioner) resolveImage(ctx *provisioning.Context) error {
	nodes := ctx.Config.Nodes
	if nodes.Image != "" {
		ctx.State.ImageID = nodes.Image
		return nil
	}
	if nodes.ImageFilter == nil {
		return fmt.Errorf("no image or image filter configured")
	}

	id, err := ctx.Infra.ResolveImage(ctx, nodes.ImageFilter.Name, nodes.ImageFilter.Owner)
	if err != nil {
		provisioning.LogResourceFailed(ctx.Observer, phase, KindImage, nodes.ImageFilter.Name, err)
		return err
	}
	ctx.State.ImageID = id
	provisioning.LogResource(ctx.Observer, provisioning.EventResourceExists, phase, KindImage, nodes.ImageFilter.Name, id)
	return nil
}
