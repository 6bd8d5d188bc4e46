// ABOUTME: X.509 certificate extraction from PEM blobs found in signature
// ABOUTME: manifest layer annotations. Input is untrusted registry data.

package cosign

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"encoding/pem"
	"errors"
	"strings"
	"time"
	"unicode"

	"github.com/imageintel/imageintel/internal/errdefs"
)

var (
	// ErrInvalidNotBefore and ErrInvalidNotAfter mark a validity timestamp
	// that could not be represented as an absolute UTC instant.
	ErrInvalidNotBefore = errors.New("invalid not before")
	ErrInvalidNotAfter  = errors.New("invalid not after")

	// ErrInvalidValidity marks a window where not-before is not strictly
	// before not-after.
	ErrInvalidValidity = errors.New("certificate not before is not before not after")
)

var oidCommonName = asn1.ObjectIdentifier{2, 5, 4, 3}

// Certificate is the structured view of one signing certificate: subjects,
// validity window, and the extension map the signature claims are read from.
// Extension values are decoded as UTF-8 with control characters stripped so
// they are safe to render.
type Certificate struct {
	Subject string `json:"subject"`
	Issuer  string `json:"issuer"`

	CommonNames []string `json:"common_names"`

	NotBefore time.Time `json:"not_before"`
	NotAfter  time.Time `json:"not_after"`

	Extensions map[string]string `json:"extensions"`
}

// ParseCertificatePEM parses a PEM block believed to contain exactly one
// X.509 certificate. A malformed PEM envelope and a malformed DER payload
// inside a valid envelope are reported as distinct parse failures.
func ParseCertificatePEM(data []byte) (*Certificate, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errdefs.ParseFailure("malformed PEM envelope", nil)
	}
	if block.Type != "CERTIFICATE" {
		return nil, errdefs.ParseFailure("PEM block is not a certificate: "+block.Type, nil)
	}

	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, errdefs.ParseFailure("malformed x509 certificate", err)
	}

	notBefore, err := normalizeValidity(cert.NotBefore, ErrInvalidNotBefore)
	if err != nil {
		return nil, errdefs.ParseFailure("certificate validity", err)
	}
	notAfter, err := normalizeValidity(cert.NotAfter, ErrInvalidNotAfter)
	if err != nil {
		return nil, errdefs.ParseFailure("certificate validity", err)
	}
	if !notBefore.Before(notAfter) {
		return nil, errdefs.ParseFailure("certificate validity", ErrInvalidValidity)
	}

	extensions := make(map[string]string, len(cert.Extensions))
	for _, ext := range cert.Extensions {
		extensions[ext.Id.String()] = stripControl(string(ext.Value))
	}

	return &Certificate{
		Subject:     cert.Subject.String(),
		Issuer:      cert.Issuer.String(),
		CommonNames: commonNames(cert.Subject),
		NotBefore:   notBefore,
		NotAfter:    notAfter,
		Extensions:  extensions,
	}, nil
}

// normalizeValidity converts an X.509 validity bound to UTC and rejects
// instants outside the representable calendar range.
func normalizeValidity(t time.Time, cause error) (time.Time, error) {
	t = t.UTC()
	if t.IsZero() || t.Year() < 0 || t.Year() > 9999 {
		return time.Time{}, cause
	}
	return t, nil
}

func commonNames(subject pkix.Name) []string {
	var names []string
	for _, attr := range subject.Names {
		if !attr.Type.Equal(oidCommonName) {
			continue
		}
		if s, ok := attr.Value.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

// stripControl removes control characters from untrusted extension values,
// which otherwise end up in terminals and HTML.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
}
