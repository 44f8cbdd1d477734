package nostr

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"

	"github.com/MrSnakeDoc/relayscope/internal/domain"
)

const secretKeyLen = 32

// KeySigner signs records with a local secp256k1 key (BIP-340 Schnorr).
type KeySigner struct {
	priv   *btcec.PrivateKey
	pubHex string
}

// NewKeySigner loads a hex-encoded 32-byte secret key.
func NewKeySigner(secretHex string) (*KeySigner, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(secretHex))
	if err != nil {
		return nil, fmt.Errorf("invalid secret key: %w", err)
	}
	if len(raw) != secretKeyLen {
		return nil, fmt.Errorf("invalid secret key: want %d bytes, got %d", secretKeyLen, len(raw))
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return newKeySigner(priv), nil
}

// GenerateKeySigner creates a signer with a fresh random key.
func GenerateKeySigner() (*KeySigner, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newKeySigner(priv), nil
}

func newKeySigner(priv *btcec.PrivateKey) *KeySigner {
	return &KeySigner{
		priv:   priv,
		pubHex: hex.EncodeToString(schnorr.SerializePubKey(priv.PubKey())),
	}
}

// PublicKey returns the x-only public key in hex.
func (s *KeySigner) PublicKey() string {
	return s.pubHex
}

// Sign builds and signs a record.
func (s *KeySigner) Sign(kind int, content string, tags []domain.Tag, createdAt time.Time) (*domain.Record, error) {
	if tags == nil {
		tags = []domain.Tag{}
	}
	rec := &domain.Record{
		PubKey:    s.pubHex,
		CreatedAt: createdAt.Unix(),
		Kind:      kind,
		Tags:      tags,
		Content:   content,
	}

	id := recordHash(rec)
	sig, err := schnorr.Sign(s.priv, id[:])
	if err != nil {
		return nil, fmt.Errorf("failed to sign record: %w", err)
	}

	rec.ID = hex.EncodeToString(id[:])
	rec.Sig = hex.EncodeToString(sig.Serialize())
	return rec, nil
}

// ComputeID returns the canonical record ID (hex sha256 of the serialized form).
func ComputeID(rec *domain.Record) string {
	id := recordHash(rec)
	return hex.EncodeToString(id[:])
}

// Verify checks a record's ID and signature.
func Verify(rec *domain.Record) bool {
	if rec == nil {
		return false
	}
	id := recordHash(rec)
	if hex.EncodeToString(id[:]) != rec.ID {
		return false
	}

	pubBytes, err := hex.DecodeString(rec.PubKey)
	if err != nil {
		return false
	}
	pub, err := schnorr.ParsePubKey(pubBytes)
	if err != nil {
		return false
	}
	sigBytes, err := hex.DecodeString(rec.Sig)
	if err != nil {
		return false
	}
	sig, err := schnorr.ParseSignature(sigBytes)
	if err != nil {
		return false
	}
	return sig.Verify(id[:], pub)
}

// recordHash hashes the serialized form [0,pubkey,created_at,kind,tags,content].
func recordHash(rec *domain.Record) [32]byte {
	return sha256.Sum256(serializeRecord(rec))
}

// serializeRecord writes the record in the exact byte form relays hash.
// Only \n \" \\ \r \t \b \f get short escapes, other control bytes are
// written as \u00XX, and every other byte (U+2028 included) passes through.
// encoding/json cannot produce this form.
func serializeRecord(rec *domain.Record) []byte {
	buf := make([]byte, 0, 128+len(rec.Content))
	buf = append(buf, "[0,"...)
	buf = appendString(buf, rec.PubKey)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, rec.CreatedAt, 10)
	buf = append(buf, ',')
	buf = strconv.AppendInt(buf, int64(rec.Kind), 10)
	buf = append(buf, ",["...)
	for i, tag := range rec.Tags {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf = append(buf, '[')
		for j, v := range tag {
			if j > 0 {
				buf = append(buf, ',')
			}
			buf = appendString(buf, v)
		}
		buf = append(buf, ']')
	}
	buf = append(buf, "],"...)
	buf = appendString(buf, rec.Content)
	return append(buf, ']')
}

const hexDigits = "0123456789abcdef"

func appendString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			buf = append(buf, '\\', '"')
		case '\\':
			buf = append(buf, '\\', '\\')
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				continue
			}
			buf = append(buf, c)
		}
	}
	return append(buf, '"')
}
