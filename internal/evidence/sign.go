package evidence

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"os"
	"strings"
)

const (
	privateKeyType = "ED25519 PRIVATE KEY"
	publicKeyType  = "ED25519 PUBLIC KEY"
)

// SignatureHeader metadata
type SignatureHeader struct {
	SchemaVersion string `json:"schema_version"`
	SigType       string `json:"sig_type"`
}

// SignatureEnvelope header + signature, persisted next to the artifact
// as a detached .sig file.
type SignatureEnvelope struct {
	Header    *SignatureHeader
	Signature []byte
}

// GenerateKeys writes a fresh ed25519 keypair as PEM files.
func GenerateKeys(privateKeyPath, publicKeyPath string) error {
	publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("failed to generate keypair: %w", err)
	}

	privateFile, err := os.OpenFile(privateKeyPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create private key file: %w", err)
	}
	defer privateFile.Close()

	if err := pem.Encode(privateFile, &pem.Block{Type: privateKeyType, Bytes: privateKey}); err != nil {
		return fmt.Errorf("failed to write private key: %w", err)
	}

	publicFile, err := os.Create(publicKeyPath)
	if err != nil {
		return fmt.Errorf("failed to create public key file: %w", err)
	}
	defer publicFile.Close()

	if err := pem.Encode(publicFile, &pem.Block{Type: publicKeyType, Bytes: publicKey}); err != nil {
		return fmt.Errorf("failed to write public key: %w", err)
	}

	return nil
}

// Sign produces a detached signature envelope over an evidence artifact
// as stored on disk.
func Sign(artifactPath, privateKeyPath string) ([]byte, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read evidence: %w", err)
	}

	key, err := loadKey(privateKeyPath, privateKeyType, ed25519.PrivateKeySize)
	if err != nil {
		return nil, err
	}

	sig := ed25519.Sign(ed25519.PrivateKey(key), data)
	return writeEnvelope(sig), nil
}

// Verify checks a detached signature envelope against the artifact.
func Verify(artifactPath string, envelope []byte, publicKeyPath string) (bool, error) {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return false, fmt.Errorf("failed to read evidence: %w", err)
	}

	key, err := loadKey(publicKeyPath, publicKeyType, ed25519.PublicKeySize)
	if err != nil {
		return false, err
	}

	parsed, err := ReadEnvelope(envelope)
	if err != nil {
		return false, err
	}

	return ed25519.Verify(ed25519.PublicKey(key), data, parsed.Signature), nil
}

func loadKey(path, wantType string, wantSize int) ([]byte, error) {
	keyData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	block, _ := pem.Decode(keyData)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}
	if block.Type != wantType {
		return nil, fmt.Errorf("invalid key type: expected %s, got %s", wantType, block.Type)
	}
	if len(block.Bytes) != wantSize {
		return nil, fmt.Errorf("invalid key size")
	}
	return block.Bytes, nil
}

// writeEnvelope serializes one header line plus the hex signature.
func writeEnvelope(sig []byte) []byte {
	header := SignatureHeader{
		SchemaVersion: "1.0",
		SigType:       "ed25519",
	}
	headerBytes, _ := json.Marshal(header)
	return []byte(string(headerBytes) + "\n" + hex.EncodeToString(sig))
}

// ReadEnvelope parses a detached signature file.
func ReadEnvelope(data []byte) (*SignatureEnvelope, error) {
	content := strings.TrimSpace(string(data))
	headerLine, sigLine, found := strings.Cut(content, "\n")
	if !found {
		return nil, fmt.Errorf("malformed signature: missing header")
	}

	var header SignatureHeader
	if err := json.Unmarshal([]byte(headerLine), &header); err != nil {
		return nil, fmt.Errorf("malformed signature header: %w", err)
	}
	if header.SigType != "ed25519" {
		return nil, fmt.Errorf("unsupported signature type %q", header.SigType)
	}

	sig, err := hex.DecodeString(strings.TrimSpace(sigLine))
	if err != nil {
		return nil, fmt.Errorf("malformed signature body: %w", err)
	}
	if len(sig) != ed25519.SignatureSize {
		return nil, fmt.Errorf("invalid signature size")
	}

	return &SignatureEnvelope{Header: &header, Signature: sig}, nil
}
