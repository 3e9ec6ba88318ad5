package key

import (
	"crypto/rsa"
	"fmt"

	"github.com/golang-jwt/jwt"
	"github.com/lestrrat-go/jwx/jwk"
)

const keyID = "everkeep-key-id"

type JWKS struct {
	Keys []interface{} `json:"keys"`
}

type KeyPair struct {
	Kid        string
	PrivateKey *rsa.PrivateKey
	PublicKey  *rsa.PublicKey
}

// NewKeyPairFromRSAPrivateKeyPem builds the server signing key pair
// from the pem content configured for the server.
func NewKeyPairFromRSAPrivateKeyPem(privateKeyPem string) (*KeyPair, error) {
	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(privateKeyPem))
	if err != nil {
		return nil, fmt.Errorf("unable to parse RSA private key: %v", err)
	}

	return &KeyPair{
		Kid:        keyID,
		PrivateKey: privateKey,
		PublicKey:  &privateKey.PublicKey}, nil
}

// JWK returns the public half of the key pair as a JWK,
// for publishing on the jwks endpoint.
func (keyPair *KeyPair) JWK() (jwk.Key, error) {
	keyPairJWK, err := jwk.New(keyPair.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("JWK: %v", err)
	}
	keyPairJWK.Set(jwk.KeyIDKey, keyPair.Kid)

	return keyPairJWK, nil
}

func ExportJWKAsJWKS(jwk jwk.Key) JWKS {
	return JWKS{Keys: []interface{}{jwk}}
}
