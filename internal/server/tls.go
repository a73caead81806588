package server

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"os"

	"go.uber.org/zap"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/store"
)

// TLSFiles names the PEM files of the server's TLS setup.  With CAFile set
// clients must present a certificate signed by that CA (mutual TLS).
type TLSFiles struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

func (f TLSFiles) Enabled() bool {
	return f.CertFile != "" || f.KeyFile != "" || f.CAFile != ""
}

// Config loads the files into a server tls.Config.
func (f TLSFiles) Config() (*tls.Config, error) {
	if f.CertFile == "" || f.KeyFile == "" {
		return nil, errors.New("tls requires both a certificate and a key")
	}
	cert, err := tls.LoadX509KeyPair(f.CertFile, f.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load server key pair: %w", err)
	}
	cfg := &tls.Config{
		MinVersion:   tls.VersionTLS12,
		Certificates: []tls.Certificate{cert},
	}
	if f.CAFile == "" {
		return cfg, nil
	}

	pem, err := os.ReadFile(f.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA %s: %w", f.CAFile, err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("no certificates found in %s", f.CAFile)
	}
	cfg.ClientCAs = pool
	cfg.ClientAuth = tls.RequireAndVerifyClientCert
	return cfg, nil
}

// RunTLS is Run over TLS, with client certificate verification when
// files.CAFile is set.
func RunTLS(ctx context.Context, addr string, files TLSFiles, s store.UserStore, logger *zap.Logger) error {
	cfg, err := files.Config()
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return Serve(ctx, tls.NewListener(lis, cfg), s, logger)
}
