package awscloud

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"

	"github.com/imamik/rayform/internal/util/labels"
)

// EnsureKeyPair imports publicKey under name unless a key pair with that
// name already exists.
func (c *RealClient) EnsureKeyPair(ctx context.Context, name, publicKey string, tags map[string]string) (*KeyPair, error) {
	return (&EnsureOperation[*KeyPair]{
		Name:         name,
		ResourceType: "key pair",
		Get:          c.GetKeyPair,
		Create: func(ctx context.Context) (*KeyPair, error) {
			if publicKey == "" {
				return nil, fmt.Errorf("no public key given for key pair %s", name)
			}
			out, err := c.ec2.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
				KeyName:           aws.String(name),
				PublicKeyMaterial: []byte(publicKey),
				TagSpecifications: labels.Specification(types.ResourceTypeKeyPair, withName(tags, name)),
			})
			if err != nil {
				return nil, err
			}
			return &KeyPair{
				ID:          aws.ToString(out.KeyPairId),
				Name:        aws.ToString(out.KeyName),
				Fingerprint: aws.ToString(out.KeyFingerprint),
				Tags:        withName(tags, name),
			}, nil
		},
	}).Execute(ctx, c)
}

// GetKeyPair returns the key pair with the given name, or nil.
func (c *RealClient) GetKeyPair(ctx context.Context, name string) (*KeyPair, error) {
	out, err := c.ec2.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{KeyNames: []string{name}})
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	if len(out.KeyPairs) == 0 {
		return nil, nil
	}
	return keyPairFromEC2(out.KeyPairs[0]), nil
}

// DeleteKeyPair deletes the key pair with the given name.
func (c *RealClient) DeleteKeyPair(ctx context.Context, name string) error {
	return (&DeleteOperation[*KeyPair]{
		Name:         name,
		ResourceType: "key pair",
		Get:          c.GetKeyPair,
		Delete: func(ctx context.Context, kp *KeyPair) error {
			_, err := c.ec2.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{KeyName: aws.String(kp.Name)})
			return err
		},
	}).Execute(ctx, c)
}

func keyPairFromEC2(kp types.KeyPairInfo) *KeyPair {
	return &KeyPair{
		ID:          aws.ToString(kp.KeyPairId),
		Name:        aws.ToString(kp.KeyName),
		Fingerprint: aws.ToString(kp.KeyFingerprint),
		Tags:        labels.FromEC2(kp.Tags),
	}
}
