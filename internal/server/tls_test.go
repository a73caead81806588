package server_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/client"
	srv "github.com/afoley587/coding-challenges-2025/usersync/internal/server"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/store"
)

type testPKI struct {
	caFile, serverCert, serverKey, clientCert, clientKey string
}

// newTestPKI writes a throwaway CA plus a server and a client certificate
// signed by it.
func newTestPKI(t *testing.T) testPKI {
	t.Helper()
	dir := t.TempDir()

	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	caTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "usersync test ca"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IsCA:                  true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTmpl, caTmpl, &caKey.PublicKey, caKey)
	require.NoError(t, err)
	caCert, err := x509.ParseCertificate(caDER)
	require.NoError(t, err)

	issue := func(serial int64, usage x509.ExtKeyUsage, name string) (string, string) {
		key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		require.NoError(t, err)
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(serial),
			Subject:      pkix.Name{CommonName: name},
			NotBefore:    time.Now().Add(-time.Hour),
			NotAfter:     time.Now().Add(time.Hour),
			KeyUsage:     x509.KeyUsageDigitalSignature,
			ExtKeyUsage:  []x509.ExtKeyUsage{usage},
			IPAddresses:  []net.IP{net.ParseIP("127.0.0.1")},
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, caCert, &key.PublicKey, caKey)
		require.NoError(t, err)
		keyDER, err := x509.MarshalECPrivateKey(key)
		require.NoError(t, err)

		certFile := filepath.Join(dir, name+".pem")
		keyFile := filepath.Join(dir, name+"-key.pem")
		writePEM(t, certFile, "CERTIFICATE", der)
		writePEM(t, keyFile, "EC PRIVATE KEY", keyDER)
		return certFile, keyFile
	}

	pki := testPKI{caFile: filepath.Join(dir, "ca.pem")}
	writePEM(t, pki.caFile, "CERTIFICATE", caDER)
	pki.serverCert, pki.serverKey = issue(2, x509.ExtKeyUsageServerAuth, "server")
	pki.clientCert, pki.clientKey = issue(3, x509.ExtKeyUsageClientAuth, "client")
	return pki
}

func writePEM(t *testing.T, path, typ string, der []byte) {
	t.Helper()
	data := pem.EncodeToMemory(&pem.Block{Type: typ, Bytes: der})
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

func TestMutualTLS(t *testing.T) {
	pki := newTestPKI(t)

	files := srv.TLSFiles{CertFile: pki.serverCert, KeyFile: pki.serverKey, CAFile: pki.caFile}
	require.True(t, files.Enabled())
	cfg, err := files.Config()
	require.NoError(t, err)

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, tls.NewListener(lis, cfg), store.NewInMemoryStore(), nil) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	baseURL := "https://" + lis.Addr().String()

	withCert, err := client.NewClient(client.DialConfig{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		RootCA:     pki.caFile,
		ClientCert: pki.clientCert,
		ClientKey:  pki.clientKey,
	}, nil)
	require.NoError(t, err)
	defer withCert.Close()

	_, err = withCert.Load(context.Background())
	assert.NoError(t, err)

	withoutCert, err := client.NewClient(client.DialConfig{
		BaseURL: baseURL,
		Timeout: 2 * time.Second,
		RootCA:  pki.caFile,
	}, nil)
	require.NoError(t, err)
	defer withoutCert.Close()

	_, err = withoutCert.Load(context.Background())
	assert.Error(t, err, "server requires a client certificate")
}

func TestTLSFilesValidation(t *testing.T) {
	assert.False(t, srv.TLSFiles{}.Enabled())

	_, err := srv.TLSFiles{CAFile: "ca.pem"}.Config()
	assert.Error(t, err)

	_, err = srv.TLSFiles{CertFile: "missing.pem", KeyFile: "missing-key.pem"}.Config()
	assert.Error(t, err)
}
