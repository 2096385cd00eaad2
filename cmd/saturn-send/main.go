// Copyright (C) 2026 ForYouPage Org
//
// This file is part of saturn-federation.
//
// saturn-federation is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// saturn-federation is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with saturn-federation.  If not, see <https://www.gnu.org/licenses/>.

// saturn-send signs and delivers a single activity to a remote inbox.
// It is a debugging and operations tool; the daemon's dispatcher is
// the delivery path for everything that must survive a remote outage.
//
// Usage:
//
//	saturn-send --key actor.pem --key-id https://a.example/users/alice#main-key \
//	    --inbox https://b.example/users/bob/inbox activity.json
//
// With no positional argument the activity is read from stdin.
package main

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/ForYouPage-Org/saturn-federation/pkg/client"
	"github.com/ForYouPage-Org/saturn-federation/pkg/httpsig"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "saturn-send: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		keyPath  = pflag.String("key", "", "PEM file with the RSA private key to sign with")
		keyID    = pflag.String("key-id", "", "key IRI the receiver resolves the public key from")
		inboxURL = pflag.String("inbox", "", "destination inbox URL")
		timeout  = pflag.Duration("timeout", 15*time.Second, "overall send timeout")
	)
	pflag.Parse()

	if *keyPath == "" || *keyID == "" || *inboxURL == "" {
		return errors.New("--key, --key-id and --inbox are required")
	}

	payload, err := readActivity(pflag.Args())
	if err != nil {
		return err
	}
	if !json.Valid(payload) {
		return errors.New("activity is not valid JSON")
	}

	privateKey, err := loadPrivateKey(*keyPath)
	if err != nil {
		return err
	}
	signer, err := httpsig.NewRSASigner(*keyID, privateKey)
	if err != nil {
		return err
	}
	c, err := client.New(client.Config{Signer: signer})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := c.SignAndSend(ctx, *inboxURL, payload); err != nil {
		return err
	}
	fmt.Printf("delivered to %s\n", *inboxURL)
	return nil
}

func readActivity(args []string) ([]byte, error) {
	if len(args) > 1 {
		return nil, fmt.Errorf("expected at most one activity file, got %d", len(args))
	}
	if len(args) == 1 {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return nil, fmt.Errorf("reading activity: %w", err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("reading activity from stdin: %w", err)
	}
	return data, nil
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading private key: %w", err)
	}
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("no PEM block in %s", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsing private key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is not RSA")
	}
	return key, nil
}
