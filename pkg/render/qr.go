package render

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// EncodeQR returns PNG bytes for the given payload.
func EncodeQR(payload string, sizePx int) ([]byte, error) {
	if payload == "" {
		return nil, fmt.Errorf("qr payload required")
	}
	if sizePx <= 0 {
		sizePx = 256
	}
	data, err := qrcode.Encode(payload, qrcode.Medium, sizePx)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return data, nil
}
