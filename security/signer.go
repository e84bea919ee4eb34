package security

import (
	"bytes"
	"context"
	"crypto"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/digitorus/pkcs7"
	"github.com/digitorus/timestamp"
	"golang.org/x/crypto/cryptobyte"
	cryptobyte_asn1 "golang.org/x/crypto/cryptobyte/asn1"
)

// TSA configures an RFC 3161 timestamp authority. A zero URL disables
// timestamping.
type TSA struct {
	URL      string
	Username string
	Password string
}

// Signer produces a detached signature over the document's byte ranges.
// The writer treats it as a black box; the returned bytes are spliced
// into the /Contents placeholder verbatim (hex-encoded).
type Signer interface {
	// Sign returns the detached signature (DER) over content.
	Sign(ctx context.Context, content []byte) ([]byte, error)

	// EstimatedLength returns an upper bound on the signature size in
	// bytes, used to size the /Contents placeholder before signing.
	EstimatedLength() (int, error)
}

// PKCS7Signer signs with a certificate and a crypto.Signer key, wrapping
// the result in a detached CMS SignedData, optionally augmented with a
// trusted timestamp token.
type PKCS7Signer struct {
	Certificate *x509.Certificate
	Key         crypto.Signer
	Chain       []*x509.Certificate
	Digest      crypto.Hash
	TSA         TSA

	// HTTPClient overrides the client used for the TSA call.
	HTTPClient *http.Client
}

func (s *PKCS7Signer) digest() crypto.Hash {
	if s.Digest.Available() {
		return s.Digest
	}
	return crypto.SHA256
}

func (s *PKCS7Signer) Sign(ctx context.Context, content []byte) ([]byte, error) {
	if s.Certificate == nil {
		return nil, errors.New("signing certificate is required")
	}
	if s.Key == nil {
		return nil, errors.New("signing key is required")
	}

	signedData, err := pkcs7.NewSignedData(content)
	if err != nil {
		return nil, fmt.Errorf("new signed data: %w", err)
	}
	signedData.SetDigestAlgorithm(digestOID(s.digest()))

	signingCertificate, err := s.signingCertificateAttribute()
	if err != nil {
		return nil, fmt.Errorf("signing certificate attribute: %w", err)
	}
	cfg := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{*signingCertificate},
	}
	if err := signedData.AddSignerChain(s.Certificate, s.Key, s.Chain, cfg); err != nil {
		return nil, fmt.Errorf("add signer chain: %w", err)
	}

	// The document content stays outside the CMS structure.
	signedData.Detach()

	if s.TSA.URL != "" {
		inner := signedData.GetSignedData()
		tsToken, err := s.fetchTimestamp(ctx, inner.SignerInfos[0].EncryptedDigest)
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		attr := pkcs7.Attribute{
			Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 14},
			Value: asn1.RawValue{FullBytes: tsToken},
		}
		if err := inner.SignerInfos[0].SetUnauthenticatedAttributes([]pkcs7.Attribute{attr}); err != nil {
			return nil, fmt.Errorf("attach timestamp token: %w", err)
		}
	}

	return signedData.Finish()
}

// EstimatedLength sums the degenerate-certificate sizes of the chain
// plus digest and TSA headroom, mirroring how much space the /Contents
// hex placeholder must reserve.
func (s *PKCS7Signer) EstimatedLength() (int, error) {
	if s.Certificate == nil {
		return 0, errors.New("signing certificate is required")
	}
	size := 1024 // CMS structure overhead
	size += s.digest().Size() * 2

	degenerated, err := pkcs7.DegenerateCertificate(s.Certificate.Raw)
	if err != nil {
		return 0, fmt.Errorf("degenerate certificate: %w", err)
	}
	size += len(degenerated)
	size += len(s.Certificate.RawIssuer)

	for _, cert := range s.Chain {
		d, err := pkcs7.DegenerateCertificate(cert.Raw)
		if err != nil {
			return 0, fmt.Errorf("degenerate chain certificate: %w", err)
		}
		size += len(d)
	}
	if s.TSA.URL != "" {
		size += 9000
	}
	return size, nil
}

// signingCertificateAttribute builds the ESS signing-certificate-v2
// signed attribute (RFC 5035) binding the signature to the certificate.
func (s *PKCS7Signer) signingCertificateAttribute() (*pkcs7.Attribute, error) {
	h := s.digest().New()
	h.Write(s.Certificate.Raw)

	var b cryptobyte.Builder
	b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // SigningCertificateV2
		b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // certs
			b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) { // ESSCertIDv2
				if s.digest() != crypto.SHA256 {
					b.AddASN1(cryptobyte_asn1.SEQUENCE, func(b *cryptobyte.Builder) {
						b.AddASN1ObjectIdentifier(digestOID(s.digest()))
					})
				}
				b.AddASN1OctetString(h.Sum(nil))
			})
		})
	})
	raw, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return &pkcs7.Attribute{
		Type:  asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47},
		Value: asn1.RawValue{FullBytes: raw},
	}, nil
}

func (s *PKCS7Signer) fetchTimestamp(ctx context.Context, signature []byte) ([]byte, error) {
	req, err := timestamp.CreateRequest(bytes.NewReader(signature), &timestamp.RequestOptions{
		Certificates: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.TSA.URL, bytes.NewReader(req))
	if err != nil {
		return nil, fmt.Errorf("prepare request (%s): %w", s.TSA.URL, err)
	}
	httpReq.Header.Add("Content-Type", "application/timestamp-query")
	httpReq.Header.Add("Content-Transfer-Encoding", "binary")
	if s.TSA.Username != "" && s.TSA.Password != "" {
		httpReq.SetBasicAuth(s.TSA.Username, s.TSA.Password)
	}

	client := s.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s: %w", s.TSA.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("timestamp authority returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	ts, err := timestamp.ParseResponse(body)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if _, err := pkcs7.Parse(ts.RawToken); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return ts.RawToken, nil
}

func digestOID(h crypto.Hash) asn1.ObjectIdentifier {
	switch h {
	case crypto.SHA1:
		return asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	case crypto.SHA384:
		return asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	case crypto.SHA512:
		return asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
	default:
		return asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1} // SHA-256
	}
}

// MockSigner signs nothing real; tests use it to exercise the splice
// mechanics without key material.
type MockSigner struct {
	Payload []byte
	Length  int
}

func (m *MockSigner) Sign(ctx context.Context, content []byte) ([]byte, error) {
	if len(content) == 0 {
		return nil, errors.New("empty content")
	}
	if m.Payload != nil {
		return m.Payload, nil
	}
	sum := hex.EncodeToString(content[:1])
	return []byte("mock-signature-" + sum), nil
}

func (m *MockSigner) EstimatedLength() (int, error) {
	if m.Length > 0 {
		return m.Length, nil
	}
	return 64, nil
}
