// Package keystore loads the password-protected PKCS#12 bundle holding the certificate and key that the
// TLS listener of the mock collector presents.
package keystore

import (
	"crypto/tls"
	"crypto/x509"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/crypto/pkcs12"

	"github.com/rdara/mock-collector/internal/errortypes"
)

// DefaultPassword protects the embedded keystore. It is a test-only constant, not a secret.
const DefaultPassword = "changeit"

var (
	ErrKeystoreEmpty     = errors.New("keystore is empty")
	ErrKeystoreDecode    = errors.New("failed to decode PKCS#12 keystore")
	ErrCertificateExpiry = errors.New("keystore certificate is not valid")
)

//go:embed resources/keystore.p12
var embeddedKeystore []byte

var now = time.Now

// Load reads the keystore at path, or the embedded keystore if path is empty, and decodes it with password.
// All failures are reported as *errortypes.ConfigurationError.
func Load(path, password string) (tls.Certificate, error) {
	data := embeddedKeystore

	if path != "" {
		var err error

		data, err = os.ReadFile(path)
		if err != nil {
			return tls.Certificate{}, &errortypes.ConfigurationError{Err: fmt.Errorf("failed to read keystore %s: %w", path, err)}
		}
	}

	cert, err := Decode(data, password)
	if err != nil {
		return tls.Certificate{}, &errortypes.ConfigurationError{Err: err}
	}

	return cert, nil
}

// Decode turns the raw PKCS#12 bytes into a certificate usable by crypto/tls.
func Decode(data []byte, password string) (tls.Certificate, error) {
	if len(data) == 0 {
		return tls.Certificate{}, ErrKeystoreEmpty
	}

	key, leaf, err := pkcs12.Decode(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%w: %w", ErrKeystoreDecode, err)
	}

	if t := now(); t.Before(leaf.NotBefore) || t.After(leaf.NotAfter) {
		return tls.Certificate{}, fmt.Errorf("%w: valid from %s until %s", ErrCertificateExpiry,
			leaf.NotBefore.Format(time.DateOnly), leaf.NotAfter.Format(time.DateOnly))
	}

	return tls.Certificate{
		Certificate: [][]byte{leaf.Raw},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// CertPool returns a pool trusting the leaf of cert, for clients of the TLS listener.
func CertPool(cert tls.Certificate) (*x509.CertPool, error) {
	leaf := cert.Leaf
	if leaf == nil {
		if len(cert.Certificate) == 0 {
			return nil, ErrKeystoreEmpty
		}

		var err error

		leaf, err = x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
	}

	pool := x509.NewCertPool()
	pool.AddCert(leaf)

	return pool, nil
}
