package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

func selfSigned(t *testing.T) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	tpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "signer test"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		t.Fatal(err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatal(err)
	}
	return cert, key
}

func TestPKCS7SignerProducesDER(t *testing.T) {
	cert, key := selfSigned(t)
	s := &PKCS7Signer{Certificate: cert, Key: key}

	sig, err := s.Sign(context.Background(), []byte("document bytes"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) == 0 || sig[0] != 0x30 {
		t.Errorf("signature does not look like DER, first byte %#x", sig[0])
	}
}

func TestPKCS7SignerEstimate(t *testing.T) {
	cert, key := selfSigned(t)
	s := &PKCS7Signer{Certificate: cert, Key: key}

	est, err := s.EstimatedLength()
	if err != nil {
		t.Fatal(err)
	}
	sig, err := s.Sign(context.Background(), []byte("payload"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) > est {
		t.Errorf("estimate %d smaller than an actual signature %d", est, len(sig))
	}
}

func TestMockSigner(t *testing.T) {
	m := &MockSigner{Payload: []byte{1, 2, 3}, Length: 10}
	sig, err := m.Sign(context.Background(), []byte("anything"))
	if err != nil {
		t.Fatal(err)
	}
	if len(sig) != 3 {
		t.Errorf("payload length = %d", len(sig))
	}
	n, err := m.EstimatedLength()
	if err != nil {
		t.Fatal(err)
	}
	if n != 10 {
		t.Errorf("estimate = %d", n)
	}
}
