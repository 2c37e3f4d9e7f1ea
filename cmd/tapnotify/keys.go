package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
	"github.com/layer-3/tapnotify/adapters/tokenizer"
	"github.com/layer-3/tapnotify/core"
	"github.com/urfave/cli/v2"
)

func keygenCommand() *cli.Command {
	return &cli.Command{
		Name:  "keygen",
		Usage: "generate the RSA key pair used to sign challenges",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "out",
				Usage: "directory for private.pem and public.pem",
				Value: "keys",
			},
			&cli.IntFlag{
				Name:  "bits",
				Usage: "RSA modulus size",
				Value: tokenizer.DefaultKeyBits,
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "overwrite existing keys",
			},
		},
		Action: func(c *cli.Context) error {
			dir := c.String("out")
			privatePath := filepath.Join(dir, "private.pem")
			publicPath := filepath.Join(dir, "public.pem")

			if !c.Bool("force") {
				for _, p := range []string{privatePath, publicPath} {
					if _, err := os.Stat(p); err == nil {
						return fmt.Errorf("%s already exists, use --force to overwrite", p)
					}
				}
			}

			keys, err := tokenizer.GenerateKeyPair(c.Int("bits"))
			if err != nil {
				return err
			}
			privatePEM, publicPEM, err := keys.EncodePEM()
			if err != nil {
				return err
			}

			if err := os.MkdirAll(dir, 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(privatePath, privatePEM, 0o600); err != nil {
				return err
			}
			if err := os.WriteFile(publicPath, publicPEM, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(c.App.Writer, "wrote %s and %s\n", privatePath, publicPath)
			return nil
		},
	}
}

func signCommand() *cli.Command {
	return &cli.Command{
		Name:      "sign",
		Usage:     "sign a base64 message and print the base64 signature",
		ArgsUsage: "<message-base64>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "private-key",
				Usage: "PEM private key",
				Value: "keys/private.pem",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return errors.New("expected exactly one message argument")
			}
			message, err := base64.StdEncoding.DecodeString(c.Args().First())
			if err != nil {
				return fmt.Errorf("message is not base64: %w", err)
			}

			privatePEM, err := os.ReadFile(c.String("private-key"))
			if err != nil {
				return fmt.Errorf("%w: %w", core.ErrKeyMaterialMissing, err)
			}
			priv, err := jwt.ParseRSAPrivateKeyFromPEM(privatePEM)
			if err != nil {
				return fmt.Errorf("%w: %w", core.ErrKeyMaterialMissing, err)
			}

			tk, err := tokenizer.NewRSATokenizer(&tokenizer.KeyPair{Private: priv, Public: &priv.PublicKey})
			if err != nil {
				return err
			}
			sig, err := tk.Sign(message)
			if err != nil {
				return err
			}

			fmt.Fprintln(c.App.Writer, base64.StdEncoding.EncodeToString(sig))
			return nil
		},
	}
}
