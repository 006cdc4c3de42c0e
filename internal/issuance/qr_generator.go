package issuance

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

// QRGenerator renders ticket identifiers as QR code PNGs. The payload is the
// bare identifier string; the scanning side decodes it optically and submits
// it for verification as-is.
type QRGenerator struct {
	size  int
	level qrcode.RecoveryLevel
}

func NewQRGenerator() *QRGenerator {
	return &QRGenerator{size: 256, level: qrcode.Medium}
}

func (g *QRGenerator) Encode(identifier string) ([]byte, error) {
	if identifier == "" {
		return nil, errors.New("ticket identifier is empty")
	}
	return qrcode.Encode(identifier, g.level, g.size)
}
