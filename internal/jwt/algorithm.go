package jwt

import (
	"errors"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/aicacia/go-auth/internal/domain"
)

// ErrUnsupportedAlgorithm is returned when a tenant declares an algorithm
// with no implemented key-selection path.
var ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")

// ErrMissingKeyMaterial is returned when a tenant row carries no private
// key.
var ErrMissingKeyMaterial = errors.New("missing tenant key material")

// Algorithm is the closed set of supported signing algorithms. Only the
// symmetric HMAC family is implemented; the set is kept in sync with what
// key selection can actually serve.
type Algorithm string

const (
	AlgorithmHS256 Algorithm = "HS256"
	AlgorithmHS384 Algorithm = "HS384"
	AlgorithmHS512 Algorithm = "HS512"
)

// ParseAlgorithm maps a tenant's stored algorithm name to the closed set.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(name) {
	case AlgorithmHS256, AlgorithmHS384, AlgorithmHS512:
		return Algorithm(name), nil
	}
	return "", ErrUnsupportedAlgorithm
}

func (a Algorithm) signature() jose.SignatureAlgorithm {
	switch a {
	case AlgorithmHS384:
		return jose.HS384
	case AlgorithmHS512:
		return jose.HS512
	default:
		return jose.HS256
	}
}

// signingKey selects the key material used both to sign and to verify a
// tenant's tokens. Symmetric algorithms use the same private key for both.
func signingKey(tenant *domain.Tenant) (jose.SigningKey, error) {
	alg, err := ParseAlgorithm(tenant.Algorithm)
	if err != nil {
		return jose.SigningKey{}, err
	}
	if len(tenant.PrivateKey) == 0 {
		return jose.SigningKey{}, ErrMissingKeyMaterial
	}
	return jose.SigningKey{Algorithm: alg.signature(), Key: tenant.PrivateKey}, nil
}
